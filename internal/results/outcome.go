package results

import "fmt"

// OutcomeKind separates output that matched the expected format from output
// that did not.
type OutcomeKind int

const (
	Parsed OutcomeKind = iota
	Unparsed
)

func (k OutcomeKind) String() string {
	if k == Unparsed {
		return "unparsed"
	}
	return "parsed"
}

// Outcome is what gets reported for a run.
type Outcome struct {
	Kind    OutcomeKind
	Summary *Summary // nil when Unparsed
	Text    string
	Err     error // why the output was Unparsed
}

// Summarize parses lines and never fails: output without a usable elapsed
// time still reports its counts and failures, with the time shown as "?".
func Summarize(lines []string) Outcome {
	s, err := parse(lines)
	if err != nil {
		return Outcome{
			Kind: Unparsed,
			Text: fmt.Sprintf("Test(s) %s in ?s %s", s.StatsText(), s.FailuresText()),
			Err:  err,
		}
	}
	return Outcome{Kind: Parsed, Summary: s, Text: s.String()}
}
