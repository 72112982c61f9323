package runner

import (
	"fmt"
	"time"

	"github.com/sznuper/tempestmon/internal/nrdp"
	"github.com/sznuper/tempestmon/internal/results"
)

// Result captures the outcome of one tempest run through the pipeline.
// Errors are stored in Err/ErrStage rather than returned, so the caller always
// has something to display.
type Result struct {
	CheckName    string
	Job          string
	TestID       string
	Workdir      string
	Lines        []string        // test runner output, in order
	TestExitCode int             // exit status of the test command
	Outcome      results.Outcome // parsed summary or fallback
	State        nrdp.State
	Delivery     *nrdp.Delivery    // nil when not submitted
	Rendered     map[string]string // service name → rendered message
	Notified     []string          // services notified (or would-notify)
	DryRun       bool
	Duration     time.Duration
	ExitCode     int    // process exit code for the CLI
	Err          error
	ErrStage     string // "prepare", "setup", "resolve", "write", "run", "notify"
}

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// ExitError reports a setup child process that exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}
