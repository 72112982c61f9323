// Package results turns tempest runner output into a one-line summary for
// the monitoring check.
//
// The patterns below describe the runner's free-text output. They are an
// implicit contract with the upstream tool: when its format drifts, Summarize
// degrades to an Unparsed outcome instead of failing the run.
package results

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ElapsedPattern matches the runner's closing "Ran: N tests in X sec." line.
	ElapsedPattern = regexp.MustCompile(`^Ran: \d+ tests in (\d+(?:\.\d*)?|\.\d+) sec\.$`)

	// StatPattern matches the "- Passed: 12" style count lines.
	StatPattern = regexp.MustCompile(`^- (\w+): (\d+)$`)

	// FailurePattern captures failure messages from subunit details,
	// assertion errors and tempest exception lines. A line wrapped as a
	// printed bytes value (b'...') loses the wrapper's closing quote; a plain
	// line is captured to its end.
	FailurePattern = regexp.MustCompile(`(?m)` +
		`^b['"]Details: (.*)['"]$|` +
		`^Details: (.*)$|` +
		`^b['"]AssertionError: .*: (.*)['"]$|` +
		`^AssertionError: .*: (.*)$|` +
		`^b['"]tempest\.(?:.*\.)?exceptions\..*: (.*)['"]$|` +
		`^tempest\.(?:.*\.)?exceptions\..*: (.*)$`)
)

// ErrNoElapsed is returned when no elapsed time line was printed, which
// means the run never completed meaningfully.
var ErrNoElapsed = errors.New("no elapsed time line in test output")

// Stat is one outcome count, e.g. Passed: 12. Text is the count as printed;
// Count is zero when it does not fit an int.
type Stat struct {
	Label string
	Text  string
	Count int
}

// Summary is the structured form of one run's output.
type Summary struct {
	Stats    []Stat
	Elapsed  float64
	Failures []string
}

// Counts returns the stats keyed by label.
func (s *Summary) Counts() map[string]int {
	counts := make(map[string]int, len(s.Stats))
	for _, st := range s.Stats {
		counts[st.Label] = st.Count
	}
	return counts
}

// StatsText joins the stats as "Label: Count" pairs.
func (s *Summary) StatsText() string {
	parts := make([]string, len(s.Stats))
	for i, st := range s.Stats {
		parts[i] = st.Label + ": " + st.Text
	}
	return strings.Join(parts, ", ")
}

// FailuresText joins the failure messages.
func (s *Summary) FailuresText() string {
	return strings.Join(s.Failures, ", ")
}

// String renders the summary sent as the check output.
func (s *Summary) String() string {
	return fmt.Sprintf("Test(s) %s in %.1fs %s", s.StatsText(), s.Elapsed, s.FailuresText())
}

// Parse extracts the summary from the runner's output lines. It is pure:
// the same lines always give the same summary.
func Parse(lines []string) (*Summary, error) {
	s, err := parse(lines)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func parse(lines []string) (*Summary, error) {
	s := &Summary{
		Stats:    parseStats(lines),
		Failures: parseFailures(lines),
	}

	elapsed, err := parseElapsed(lines)
	if err != nil {
		return s, err
	}
	s.Elapsed = elapsed
	return s, nil
}

// parseElapsed concatenates the captured times of every matching line
// before converting, so two "Ran:" lines yield an invalid number.
func parseElapsed(lines []string) (float64, error) {
	var digits strings.Builder
	for _, l := range lines {
		if m := ElapsedPattern.FindStringSubmatch(l); m != nil {
			digits.WriteString(m[1])
		}
	}
	if digits.Len() == 0 {
		return 0, ErrNoElapsed
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing elapsed time %q: %w", digits.String(), err)
	}
	return v, nil
}

func parseStats(lines []string) []Stat {
	var stats []Stat
	for _, l := range lines {
		m := StatPattern.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			n = 0
		}
		stats = append(stats, Stat{Label: m[1], Text: m[2], Count: n})
	}
	return stats
}

func parseFailures(lines []string) []string {
	text := strings.Join(lines, "\n")

	var failures []string
	seen := make(map[string]bool)
	for _, m := range FailurePattern.FindAllStringSubmatch(text, -1) {
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			msg := DecodeFragment(group).Text
			if seen[msg] {
				continue
			}
			seen[msg] = true
			failures = append(failures, msg)
		}
	}
	return failures
}
