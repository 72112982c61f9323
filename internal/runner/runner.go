package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sznuper/tempestmon/internal/accounts"
	"github.com/sznuper/tempestmon/internal/config"
	"github.com/sznuper/tempestmon/internal/hiera"
	"github.com/sznuper/tempestmon/internal/notify"
	"github.com/sznuper/tempestmon/internal/nrdp"
	"github.com/sznuper/tempestmon/internal/process"
	"github.com/sznuper/tempestmon/internal/results"
	"github.com/sznuper/tempestmon/internal/selector"
	"github.com/sznuper/tempestmon/internal/tempestconf"
)

// ConfigFile is where tempest reads its config inside a workdir.
var ConfigFile = filepath.Join("etc", "tempest.conf")

// Runner orchestrates the setup → run → parse → report → notify pipeline.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	resolver hiera.Resolver
}

// Option customizes a Runner.
type Option func(*Runner)

// WithOutput sets where child output and operator diagnostics are written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithResolver replaces the resolver built from the config.
func WithResolver(res hiera.Resolver) Option {
	return func(r *Runner) { r.resolver = res }
}

// New creates a Runner with the given config and logger.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, logger: logger, out: os.Stdout}
	for _, o := range opts {
		o(r)
	}
	if r.resolver == nil {
		r.resolver = NewResolver(cfg, logger)
	}
	return r
}

// NewResolver builds the hierarchy resolver selected in the config.
func NewResolver(cfg *config.Config, logger *slog.Logger) hiera.Resolver {
	if cfg.Resolver.Type == "file" {
		return &hiera.FileResolver{
			Dir:       cfg.Options.TempestDir,
			Hierarchy: cfg.Resolver.Hierarchy,
			Key:       cfg.Resolver.Key,
			Logger:    logger,
		}
	}
	return &hiera.CommandResolver{
		Command: cfg.Resolver.Command,
		Dir:     cfg.Options.TempestDir,
		Logger:  logger,
	}
}

// Request selects what a single run tests.
type Request struct {
	Environment string
	Site        string
	Flavor      string
	Test        string
	Host        string
	Image       string
	DryRun      bool
}

// RequestFromSchedule converts a configured schedule into a run request.
func RequestFromSchedule(s config.Schedule) Request {
	return Request{
		Environment: s.Environment,
		Site:        s.Site,
		Flavor:      s.Flavor,
		Test:        s.Test,
		Host:        s.Host,
		Image:       s.Image,
	}
}

// Setup prepares workdir for tempest: it runs the init command, resolves the
// layered settings and writes the merged tempest.conf. A non-zero init exit
// is returned as an *ExitError.
func (r *Runner) Setup(ctx context.Context, sel selector.Set, workdir string) error {
	log := r.logger.With("environment", sel.Environment, "site", sel.Site, "job", sel.Job)

	initCmd := r.cfg.Runner.InitCommand
	log.Info("initializing workdir", "workdir", workdir, "command", initCmd)
	res, err := process.Run(ctx, process.Opts{
		Command:    initCmd,
		Dir:        workdir,
		Virtualenv: r.cfg.Options.Virtualenv,
		Echo:       r.out,
	})
	if err != nil {
		return &StageError{Stage: "setup", Err: err}
	}
	if res.ExitCode != 0 {
		return &StageError{Stage: "setup", Err: &ExitError{Command: initCmd[0], Code: res.ExitCode}}
	}

	log.Info("resolving config")
	entries, err := r.resolver.Resolve(ctx, sel)
	if err != nil {
		return &StageError{Stage: "resolve", Err: err}
	}
	log.Debug("config resolved", "entries", entries.Len(), "sections", entries.Sections())

	path := filepath.Join(workdir, ConfigFile)
	if err := tempestconf.Write(entries, path, sel, r.cfg.Options.AccountsDir); err != nil {
		return &StageError{Stage: "write", Err: err}
	}

	accountsFile := tempestconf.AccountsFile(r.cfg.Options.AccountsDir, sel)
	if acct, err := accounts.Load(accountsFile); err != nil {
		log.Warn("accounts file not usable", "path", accountsFile, "error", err)
	} else {
		log.Debug("accounts file selected", "path", accountsFile, "account", acct.String())
	}

	log.Info("tempest config written", "path", path)
	return nil
}

// Run executes a single tempest check through the full pipeline.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	result := Result{
		CheckName: selector.CheckName(req.Site, req.Flavor, req.Test),
		Job:       selector.JobName(req.Environment, req.Flavor, req.Test),
		DryRun:    req.DryRun,
	}
	log := r.logger.With("check", result.CheckName)

	fail := func(stage string, err error, code int) Result {
		result.Err = err
		result.ErrStage = stage
		result.ExitCode = code
		result.Duration = time.Since(start)
		log.Error(stage+" failed", "error", err)
		return result
	}

	// Stage 1: Look up settings and selectors.
	env, err := r.cfg.Environment(req.Environment)
	if err != nil {
		return fail("prepare", err, 1)
	}
	result.TestID, err = r.cfg.TestID(req.Test)
	if err != nil {
		return fail("prepare", err, 1)
	}
	sel, err := selector.New(req.Environment, req.Site, result.Job, req.Host, req.Image)
	if err != nil {
		return fail("prepare", err, 1)
	}

	// Stage 2: Create the workdir and set tempest up in it.
	workdir, err := os.MkdirTemp("", r.cfg.Options.WorkdirPrefix)
	if err != nil {
		return fail("prepare", fmt.Errorf("creating workdir: %w", err), 1)
	}
	result.Workdir = workdir
	defer r.removeWorkdir(workdir)

	if err := r.Setup(ctx, sel, workdir); err != nil {
		stage := "setup"
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
			err = se.Err
		}
		var ee *ExitError
		if errors.As(err, &ee) {
			fmt.Fprintf(r.out, "setup return error: %d\n", ee.Code)
			return fail(stage, err, ee.Code)
		}
		return fail(stage, err, 1)
	}

	// Stage 3: Run the tests.
	cmd := make([]string, 0, len(r.cfg.Runner.TestCommand)+1)
	cmd = append(cmd, r.cfg.Runner.TestCommand...)
	cmd = append(cmd, result.TestID)
	log.Info("running tests", "command", cmd, "workdir", workdir)

	run, runErr := process.Run(ctx, process.Opts{
		Command:    cmd,
		Dir:        workdir,
		Virtualenv: r.cfg.Options.Virtualenv,
		Echo:       r.out,
		Timeout:    config.Timeout(r.cfg.Runner.Timeout),
	})
	r.removeWorkdir(workdir)

	// Stage 4: Summarize the output.
	if run != nil {
		result.Lines = run.Lines
		result.TestExitCode = run.ExitCode
	}
	if runErr != nil {
		result.Err = runErr
		result.ErrStage = "run"
		log.Error("test run failed", "error", runErr)
		result.TestExitCode = -1
		result.Outcome = results.Outcome{
			Kind: results.Unparsed,
			Text: "Test run error: " + runErr.Error(),
			Err:  runErr,
		}
	} else {
		result.Outcome = results.Summarize(result.Lines)
		if result.Outcome.Kind == results.Unparsed {
			log.Warn("test output not parsed", "error", result.Outcome.Err)
		}
	}
	result.State = nrdp.StateFromExitCode(result.TestExitCode)
	result.ExitCode = int(result.State)
	log.Debug("tests finished", "exit_code", result.TestExitCode, "state", result.State, "outcome", result.Outcome.Kind)

	// Stage 5: Report to NRDP.
	fmt.Fprintf(r.out, "Sending result to NRDP: %s: %s\n", result.CheckName, result.Outcome.Text)
	if req.DryRun {
		log.Info("dry-run, not submitting", "url", env.NRDPURL)
	} else {
		client := nrdp.NewClient(env.NRDPURL, env.NRDPToken)
		client.HTTPClient = &http.Client{Timeout: config.Timeout(env.Timeout)}
		d := client.Submit(ctx, nrdp.NewServiceResult(env.Hostname, result.CheckName, result.State, result.Outcome.Text))
		result.Delivery = &d
		if d.Status == nrdp.TransportFailed {
			fmt.Fprintf(r.out, "ERROR: Cannot connect to Nagios NRDP URL %s: %s\n", env.NRDPURL, d.Err)
			log.Error("report failed", "url", env.NRDPURL, "error", d.Err)
		} else if d.Message != "" {
			fmt.Fprintf(r.out, "NRDP Returned: %s\n", d.Message)
		}
	}

	// Stage 6: Notify chat services on CRITICAL.
	if result.State == nrdp.StateCritical {
		r.notify(log, &result, req)
	}

	result.Duration = time.Since(start)
	log.Info("check completed", "state", result.State, "duration", result.Duration)
	return result
}

func (r *Runner) notify(log *slog.Logger, result *Result, req Request) {
	if len(r.cfg.Notify) == 0 {
		return
	}

	data := notify.BuildTemplateData(
		map[string]string{
			"name":     req.Environment,
			"site":     req.Site,
			"hostname": r.cfg.Environments[req.Environment].Hostname,
		},
		map[string]string{
			"name":      result.CheckName,
			"state":     result.State.String(),
			"output":    result.Outcome.Text,
			"exit_code": fmt.Sprint(result.TestExitCode),
		},
	)

	targets, err := notify.ResolveTargets(mapNotifyRefs(r.cfg.Notify), mapServiceDefs(r.cfg.Services), r.cfg.Template, data)
	if err != nil {
		result.Err = err
		result.ErrStage = "notify"
		log.Error("template failed", "error", err)
		return
	}

	result.Rendered = make(map[string]string, len(targets))
	for _, t := range targets {
		result.Rendered[t.ServiceName] = t.Message
	}

	for _, t := range targets {
		if req.DryRun {
			if err := notify.Validate(t); err != nil {
				result.Err = err
				result.ErrStage = "notify"
				log.Error("notify validation failed (dry-run)", "service", t.ServiceName, "error", err)
				return
			}
			result.Notified = append(result.Notified, t.ServiceName)
			log.Debug("would notify (dry-run)", "service", t.ServiceName, "message", t.Message)
			continue
		}

		log.Info("sending notification", "service", t.ServiceName)
		if err := notify.Send(t); err != nil {
			result.Err = err
			result.ErrStage = "notify"
			log.Error("notify failed", "service", t.ServiceName, "error", err)
			return
		}
		result.Notified = append(result.Notified, t.ServiceName)
	}
}

func (r *Runner) removeWorkdir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		r.logger.Warn("removing workdir", "workdir", dir, "error", err)
	}
}

func mapNotifyRefs(targets []config.NotifyTarget) []notify.NotifyRef {
	refs := make([]notify.NotifyRef, len(targets))
	for i, t := range targets {
		refs[i] = notify.NotifyRef{
			ServiceName: t.Service,
			Template:    t.Template,
			Params:      t.Params,
		}
	}
	return refs
}

func mapServiceDefs(services map[string]config.Service) map[string]notify.ServiceDef {
	defs := make(map[string]notify.ServiceDef, len(services))
	for name, svc := range services {
		defs[name] = notify.ServiceDef{
			URL:    svc.URL,
			Params: svc.Params,
		}
	}
	return defs
}
