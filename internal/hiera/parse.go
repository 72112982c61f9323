package hiera

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// ErrEmpty is returned when the hierarchy yields no document at all.
var ErrEmpty = errors.New("hierarchy returned no config")

// Parse reads a YAML document whose top-level keys are sections and whose
// nested keys are scalar settings. Scalars keep their literal text, so
// numbers and booleans round-trip unchanged into the INI file.
func Parse(data []byte) (*Entries, error) {
	body, err := parseBody(data)
	if err != nil {
		return nil, err
	}
	return fromNode(body)
}

func parseBody(data []byte) (ast.Node, error) {
	f, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if len(f.Docs) == 0 || f.Docs[0].Body == nil {
		return nil, ErrEmpty
	}
	return f.Docs[0].Body, nil
}

func fromNode(n ast.Node) (*Entries, error) {
	sections, ok := mappingValues(n)
	if !ok {
		return nil, fmt.Errorf("malformed config: expected a mapping of sections, got %s", n.Type())
	}

	entries := NewEntries()
	for _, s := range sections {
		name := keyText(s)
		entries.AddSection(name)

		if isNull(s.Value) {
			continue
		}
		keys, ok := mappingValues(s.Value)
		if !ok {
			return nil, fmt.Errorf("malformed config: section %q is not a mapping", name)
		}
		for _, kv := range keys {
			key := keyText(kv)
			val, ok := scalarText(kv.Value)
			if !ok {
				return nil, fmt.Errorf("malformed config: %s.%s is not a scalar", name, key)
			}
			entries.Set(name, key, val)
		}
	}
	return entries, nil
}

// lookup returns the value node stored under key in a top-level mapping.
func lookup(n ast.Node, key string) (ast.Node, bool) {
	values, ok := mappingValues(n)
	if !ok {
		return nil, false
	}
	for _, kv := range values {
		if keyText(kv) == key {
			return kv.Value, true
		}
	}
	return nil, false
}

func isNull(n ast.Node) bool {
	if n == nil {
		return true
	}
	_, ok := unwrap(n).(*ast.NullNode)
	return ok
}

func mappingValues(n ast.Node) ([]*ast.MappingValueNode, bool) {
	switch m := unwrap(n).(type) {
	case *ast.MappingNode:
		return m.Values, true
	case *ast.MappingValueNode:
		return []*ast.MappingValueNode{m}, true
	default:
		return nil, false
	}
}

func unwrap(n ast.Node) ast.Node {
	for {
		switch v := n.(type) {
		case *ast.TagNode:
			n = v.Value
		case *ast.AnchorNode:
			n = v.Value
		default:
			return n
		}
	}
}

func keyText(kv *ast.MappingValueNode) string {
	if s, ok := scalarText(kv.Key); ok {
		return s
	}
	return kv.Key.GetToken().Value
}

func scalarText(n ast.Node) (string, bool) {
	switch v := unwrap(n).(type) {
	case *ast.StringNode:
		return v.Value, true
	case *ast.LiteralNode:
		return v.Value.Value, true
	case *ast.NullNode:
		return "", true
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.InfinityNode, *ast.NanNode:
		return v.GetToken().Value, true
	default:
		return "", false
	}
}
