// Package process runs tempest's child processes, streaming their combined
// output line by line.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"
)

// NoiseFilters drop interpreter warnings that test runners print but that
// carry no information about the tests.
var NoiseFilters = []*regexp.Regexp{
	regexp.MustCompile(`: \w+Warning: `),
	regexp.MustCompile(`self\._sock = None`),
}

// drainDelay bounds how long output is read after a timeout, for
// descendants that left the process group but still hold the pipe.
const drainDelay = 2 * time.Second

// Result holds the captured output of a finished process.
type Result struct {
	Lines    []string
	ExitCode int
	Duration time.Duration
}

// Opts configures a process run.
type Opts struct {
	Command    []string
	Dir        string
	Virtualenv string
	Env        []string
	// Echo receives every kept line as it is read. Nil discards.
	Echo io.Writer
	// Filters drop matching lines. Nil uses NoiseFilters.
	Filters []*regexp.Regexp
	// Timeout of zero waits forever.
	Timeout time.Duration
}

// Run starts the command and reads its merged stdout and stderr until it
// exits. Lines are trimmed, filtered, echoed and captured in order.
// Non-zero exit codes are captured (not treated as errors).
// Timeouts are treated as errors.
func Run(ctx context.Context, opts Opts) (*Result, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("empty command")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, lookPath(opts.Command[0], opts.Virtualenv), opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts)
	// Runners such as ostestr fork workers; a timeout kills the whole group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	defer r.Close()
	cmd.Stdout = w
	cmd.Stderr = w

	start := time.Now()
	if err := cmd.Start(); err != nil {
		w.Close()
		return nil, fmt.Errorf("starting %s: %w", opts.Command[0], err)
	}
	// The child holds its own copy of the write end.
	w.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = r.SetReadDeadline(time.Now().Add(drainDelay))
	})
	defer stop()

	filters := opts.Filters
	if filters == nil {
		filters = NoiseFilters
	}
	result := &Result{}

	// Lines may be of any length.
	reader := bufio.NewReader(r)
	var readErr error
	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			line := strings.TrimSpace(raw)
			if !filtered(line, filters) {
				result.Lines = append(result.Lines, line)
				if opts.Echo != nil {
					fmt.Fprintln(opts.Echo, line)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	err = cmd.Wait()
	result.Duration = time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%s timed out after %s", opts.Command[0], opts.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("running %s: %w", opts.Command[0], err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%s timed out after %s", opts.Command[0], opts.Timeout)
	}
	if readErr != nil {
		return result, fmt.Errorf("reading %s output: %w", opts.Command[0], readErr)
	}

	return result, nil
}

func filtered(line string, filters []*regexp.Regexp) bool {
	for _, f := range filters {
		if f.MatchString(line) {
			return true
		}
	}
	return false
}

func buildEnv(opts Opts) []string {
	env := os.Environ()
	if opts.Virtualenv != "" {
		bin := filepath.Join(opts.Virtualenv, "bin")
		env = setEnv(env, "VIRTUAL_ENV", opts.Virtualenv)
		env = setEnv(env, "PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	for _, kv := range opts.Env {
		k, v, _ := strings.Cut(kv, "=")
		env = setEnv(env, k, v)
	}
	return env
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
