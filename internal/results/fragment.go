package results

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// FragmentKind tells whether a failure fragment was decoded.
type FragmentKind int

const (
	// Raw fragments are kept verbatim.
	Raw FragmentKind = iota
	// Structured fragments were dict-like literals carrying a message.
	Structured
)

func (k FragmentKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "raw"
}

// Fragment is a failure message after best-effort decoding.
type Fragment struct {
	Kind FragmentKind
	Text string
}

// DecodeFragment replaces a dict-like literal such as
// {'message': 'Quota exceeded', 'code': 413} with its message. Anything that
// does not decode to a mapping with a message key is returned Raw.
func DecodeFragment(s string) Fragment {
	raw := Fragment{Kind: Raw, Text: s}
	if !strings.Contains(s, "message") || !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return raw
	}

	var v map[string]any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return raw
	}
	msg, ok := v["message"]
	if !ok || msg == nil {
		return raw
	}
	return Fragment{Kind: Structured, Text: fmt.Sprint(msg)}
}
