package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sznuper/tempestmon/internal/nrdp"
	"github.com/sznuper/tempestmon/internal/runner"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func printResult(w io.Writer, r runner.Result) {
	mark := okStyle.Render("✓")
	if r.Err != nil || r.State != nrdp.StateOK {
		mark = failStyle.Render("✗")
	}

	if r.Err != nil && r.Outcome.Text == "" {
		fmt.Fprintf(w, "%s Check: %s\n", mark, r.CheckName)
		fmt.Fprintf(w, "  Error (%s): %s\n", r.ErrStage, r.Err)
		return
	}

	fmt.Fprintf(w, "%s Check: %s %s %s\n", mark, r.CheckName, r.State, dimStyle.Render(r.Duration.Round(100*time.Millisecond).String()))
	fmt.Fprintf(w, "  Output: %s\n", r.Outcome.Text)

	switch {
	case r.DryRun:
		fmt.Fprintln(w, "  Report: skipped (dry-run)")
	case r.Delivery != nil:
		fmt.Fprintf(w, "  Report: %s\n", r.Delivery.Status)
	}

	if len(r.Notified) > 0 {
		label := "Notified"
		if r.DryRun {
			label = "Would notify"
		}
		fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(r.Notified, ", "))
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  Error (%s): %s\n", r.ErrStage, r.Err)
	}
}
