package hiera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/sznuper/tempestmon/internal/selector"
)

// Resolver produces the resolved entries for a selector set.
type Resolver interface {
	Resolve(ctx context.Context, sel selector.Set) (*Entries, error)
}

// DefaultCommand queries hiera for the hash-merged "config" key as YAML.
var DefaultCommand = []string{"hiera", "-f", "yaml", "-h", "-c", "hiera.yaml", "config"}

// CommandResolver shells out to an external hierarchical lookup tool.
type CommandResolver struct {
	Command []string
	Dir     string
	Logger  *slog.Logger
}

// Resolve runs the lookup command with environment, site and job bound and
// parses its YAML output. Any failure is fatal for the run.
func (r *CommandResolver) Resolve(ctx context.Context, sel selector.Set) (*Entries, error) {
	command := r.Command
	if len(command) == 0 {
		command = DefaultCommand
	}

	args := make([]string, 0, len(command)+2)
	args = append(args, command[1:]...)
	vars := sel.Vars()
	for _, name := range []string{"environment", "site", "job"} {
		args = append(args, name+"="+vars[name])
	}

	cmd := exec.CommandContext(ctx, command[0], args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if r.Logger != nil {
		r.Logger.Debug("resolving config", "command", command[0], "args", args, "dir", r.Dir)
	}
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", command[0], err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", command[0], err)
	}

	entries, err := Parse(out)
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", command[0], err)
	}
	return entries, nil
}

// DefaultKey is the top-level key read from every hierarchy layer.
const DefaultKey = "config"

// FileResolver resolves entries from a hierarchy of YAML files without an
// external tool. Hierarchy paths are Go templates (with sprig functions)
// over the selector variables, listed highest priority first.
type FileResolver struct {
	Dir       string
	Hierarchy []string
	Key       string
	Logger    *slog.Logger
}

// Resolve merges every existing layer, lowest priority first, so values from
// more specific layers win per (section, key).
func (r *FileResolver) Resolve(_ context.Context, sel selector.Set) (*Entries, error) {
	key := r.Key
	if key == "" {
		key = DefaultKey
	}

	merged := NewEntries()
	found := 0
	for i := len(r.Hierarchy) - 1; i >= 0; i-- {
		rel, err := renderPath(r.Hierarchy[i], sel.Vars())
		if err != nil {
			return nil, err
		}
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.Dir, rel)
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			r.debug("hierarchy layer missing", "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading hierarchy layer: %w", err)
		}

		layer, err := parseLayer(data, key)
		if err != nil {
			return nil, fmt.Errorf("hierarchy layer %s: %w", path, err)
		}
		if layer == nil {
			r.debug("hierarchy layer has no key", "path", path, "key", key)
			continue
		}
		r.debug("hierarchy layer loaded", "path", path, "entries", layer.Len())
		merged.Merge(layer)
		found++
	}

	if found == 0 {
		return nil, fmt.Errorf("%w for key %q", ErrEmpty, key)
	}
	return merged, nil
}

func (r *FileResolver) debug(msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.Debug(msg, args...)
	}
}

func parseLayer(data []byte, key string) (*Entries, error) {
	body, err := parseBody(data)
	if errors.Is(err, ErrEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	node, ok := lookup(body, key)
	if !ok || isNull(node) {
		return nil, nil
	}
	return fromNode(node)
}

func renderPath(tmpl string, vars map[string]string) (string, error) {
	t, err := template.New("hierarchy").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing hierarchy path %q: %w", tmpl, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("rendering hierarchy path %q: %w", tmpl, err)
	}
	return buf.String(), nil
}
