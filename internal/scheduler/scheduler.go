// Package scheduler runs configured tempest checks on cron schedules. Runs
// never overlap: tempest shares accounts and a cloud, so every schedule
// waits for the one in progress.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sznuper/tempestmon/internal/config"
)

// RunFunc executes one scheduled check.
type RunFunc func(ctx context.Context, s config.Schedule)

// Entry describes a loaded schedule.
type Entry struct {
	Name string
	Next time.Time
}

type Scheduler struct {
	logger *slog.Logger
	cron   *cron.Cron

	runMu sync.Mutex // held for the duration of a run

	mu      sync.Mutex
	ctx     context.Context
	entries []entry
}

type entry struct {
	name string
	id   cron.EntryID
}

func New(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		logger: logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		ctx: context.Background(),
	}
}

// Load replaces every schedule. When any cron expression is invalid nothing
// changes and the error is returned.
func (s *Scheduler) Load(schedules []config.Schedule, run RunFunc) error {
	parsed := make([]cron.Schedule, len(schedules))
	for i, sc := range schedules {
		p, err := cron.ParseStandard(sc.Cron)
		if err != nil {
			return fmt.Errorf("schedule %q: invalid cron %q: %w", sc.Name, sc.Cron, err)
		}
		parsed[i] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		s.cron.Remove(e.id)
	}
	s.entries = s.entries[:0]
	for i, sc := range schedules {
		id := s.cron.Schedule(parsed[i], s.job(sc, run))
		s.entries = append(s.entries, entry{name: sc.Name, id: id})
		s.logger.Info("schedule loaded", "schedule", sc.Name, "cron", sc.Cron, "test", sc.Test)
	}
	return nil
}

func (s *Scheduler) job(sc config.Schedule, run RunFunc) cron.Job {
	return cron.FuncJob(func() {
		s.runMu.Lock()
		defer s.runMu.Unlock()

		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}

		s.logger.Info("schedule triggered", "schedule", sc.Name)
		run(ctx, sc)
	})
}

// Entries lists the loaded schedules with their next activation.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Entry{Name: e.name, Next: s.cron.Entry(e.id).Next})
	}
	return out
}

// Start runs the schedules until ctx is done, then waits for the run in
// progress to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
