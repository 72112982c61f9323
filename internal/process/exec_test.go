package process

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeExecutable(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func tempScript(t *testing.T, content string) string {
	t.Helper()
	return writeExecutable(t, t.TempDir(), "run.sh", content)
}

func TestRun_CapturesAndEchoes(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\necho '  Ran: 1 tests in 1.0 sec.  '\necho '- Passed: 1'\n")

	var echo bytes.Buffer
	result, err := Run(context.Background(), Opts{Command: []string{script}, Echo: &echo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Ran: 1 tests in 1.0 sec.", "- Passed: 1"}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Errorf("lines = %q, want %q", result.Lines, want)
	}
	if echo.String() != "Ran: 1 tests in 1.0 sec.\n- Passed: 1\n" {
		t.Errorf("echo = %q", echo.String())
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestRun_MergesStderrInOrder(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\necho one\necho two >&2\necho three\n")

	result, err := Run(context.Background(), Opts{Command: []string{script}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Errorf("lines = %q, want %q", result.Lines, want)
	}
}

func TestRun_FiltersNoise(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\n"+
		"echo '/usr/lib/python3/site.py:1: DeprecationWarning: the imp module is deprecated'\n"+
		"echo 'self._sock = None'\n"+
		"echo 'Details: boom'\n")

	result, err := Run(context.Background(), Opts{Command: []string{script}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Lines, []string{"Details: boom"}) {
		t.Errorf("lines = %q, want only the details line", result.Lines)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\necho failing\nexit 3\n")

	result, err := Run(context.Background(), Opts{Command: []string{script}})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if len(result.Lines) != 1 {
		t.Errorf("lines = %q, want 1 line", result.Lines)
	}
}

func TestRun_Timeout(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\nexec sleep 10\n")

	_, err := Run(context.Background(), Opts{
		Command: []string{script},
		Timeout: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %q, want timeout message", err.Error())
	}
}

func TestRun_TimeoutKillsDescendants(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\nsleep 4 &\nwait\n")

	start := time.Now()
	_, err := Run(context.Background(), Opts{
		Command: []string{script},
		Timeout: 200 * time.Millisecond,
	})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run returned after %s, want the background sleep killed", elapsed)
	}
}

func TestRun_LongLine(t *testing.T) {
	script := tempScript(t, "#!/bin/sh\nhead -c 2097152 /dev/zero | tr '\\0' x\necho\nseq 1 200000\n")

	done := make(chan struct{})
	var (
		result *Result
		err    error
	)
	go func() {
		defer close(done)
		result, err = Run(context.Background(), Opts{Command: []string{script}})
	}()

	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("Run blocked on a line longer than 1 MiB")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Lines) != 200001 {
		t.Fatalf("lines = %d, want 200001", len(result.Lines))
	}
	if len(result.Lines[0]) != 2097152 {
		t.Errorf("first line length = %d, want 2097152", len(result.Lines[0]))
	}
	if result.Lines[200000] != "200000" {
		t.Errorf("last line = %q, want %q", result.Lines[200000], "200000")
	}
}

func TestRun_Dir(t *testing.T) {
	dir := t.TempDir()
	script := tempScript(t, "#!/bin/sh\nls\n")
	writeExecutable(t, dir, "marker", "")

	result, err := Run(context.Background(), Opts{Command: []string{script}, Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Lines, []string{"marker"}) {
		t.Errorf("lines = %q, want [marker]", result.Lines)
	}
}

func TestRun_Virtualenv(t *testing.T) {
	venv := t.TempDir()
	if err := os.Mkdir(filepath.Join(venv, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeExecutable(t, filepath.Join(venv, "bin"), "tempest-fake", "#!/bin/sh\necho venv=$VIRTUAL_ENV\necho extra=$EXTRA\n")

	result, err := Run(context.Background(), Opts{
		Command:    []string{"tempest-fake"},
		Virtualenv: venv,
		Env:        []string{"EXTRA=1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"venv=" + venv, "extra=1"}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Errorf("lines = %q, want %q", result.Lines, want)
	}
}

func TestRun_MissingCommand(t *testing.T) {
	_, err := Run(context.Background(), Opts{Command: []string{filepath.Join(t.TempDir(), "nope")}})
	if err == nil {
		t.Fatal("expected error for missing command")
	}

	_, err = Run(context.Background(), Opts{})
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestLookPath(t *testing.T) {
	venv := t.TempDir()
	if err := os.Mkdir(filepath.Join(venv, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeExecutable(t, filepath.Join(venv, "bin"), "ostestr", "")

	if got := lookPath("ostestr", venv); got != filepath.Join(venv, "bin", "ostestr") {
		t.Errorf("lookPath = %q, want venv copy", got)
	}
	if got := lookPath("hiera", venv); got != "hiera" {
		t.Errorf("lookPath = %q, want bare name", got)
	}
	if got := lookPath("./setup", venv); got != "./setup" {
		t.Errorf("lookPath = %q, want unchanged path", got)
	}
}
