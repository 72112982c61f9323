// Package tempestconf merges resolved settings into tempest's INI config
// file.
package tempestconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/sznuper/tempestmon/internal/hiera"
	"github.com/sznuper/tempestmon/internal/selector"
)

const (
	// OperatorAccountsFile is used for jobs carrying the operator prefix.
	OperatorAccountsFile = "tempest-operator.yaml"

	sectionCompute = "compute"
	sectionAuth    = "auth"

	keyAvailabilityZone = "availability_zone"
	keyImageRef         = "image_ref"
	keyAccountsFile     = "test_accounts_file"
)

func init() {
	// oslo.config refuses assignments before the first section header.
	ini.DefaultHeader = true
}

var loadOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	AllowBooleanKeys:    true,
}

// Write merges entries into the INI file at path, applies the selector
// driven overrides and points auth.test_accounts_file at the credentials
// file picked from accountsDir. Sections and keys that are not touched are
// kept as they were. The file is replaced atomically.
func Write(entries *hiera.Entries, path string, sel selector.Set, accountsDir string) error {
	cfg, err := load(path)
	if err != nil {
		return err
	}

	if err := Merge(cfg, entries); err != nil {
		return err
	}

	if sel.PinsHost() {
		if err := pinHost(cfg, sel.Host); err != nil {
			return err
		}
	}

	if sel.Image != "" {
		cfg.Section(sectionCompute).Key(keyImageRef).SetValue(sel.Image)
	}

	cfg.Section(sectionAuth).Key(keyAccountsFile).SetValue(AccountsFile(accountsDir, sel))

	return save(cfg, path)
}

// Merge creates missing sections and sets every resolved key. The DEFAULT
// pseudo-section is never created explicitly, and an unnamed section is
// rejected rather than folded into it.
func Merge(cfg *ini.File, entries *hiera.Entries) error {
	for _, name := range entries.Sections() {
		if name == ini.DefaultSection {
			continue
		}
		if name == "" {
			return errors.New("adding section: empty section name")
		}
		if _, err := cfg.GetSection(name); err == nil {
			continue
		}
		if _, err := cfg.NewSection(name); err != nil {
			return fmt.Errorf("adding section %q: %w", name, err)
		}
	}
	for _, e := range entries.All() {
		cfg.Section(e.Section).Key(e.Key).SetValue(e.Value)
	}
	return nil
}

// AccountsFile picks the credentials file: the operator file for operator
// jobs, else the site's file, else the environment's file.
func AccountsFile(dir string, sel selector.Set) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	switch {
	case sel.OperatorJob():
		return filepath.Join(dir, OperatorAccountsFile)
	case sel.Site != "":
		return filepath.Join(dir, sel.Site+".yaml")
	default:
		return filepath.Join(dir, sel.Environment+".yaml")
	}
}

func pinHost(cfg *ini.File, host string) error {
	key, err := lookupKey(cfg, sectionCompute, keyAvailabilityZone)
	if err != nil {
		return fmt.Errorf("pinning host %s: %w", host, err)
	}
	cfg.Section(sectionCompute).Key(keyAvailabilityZone).SetValue(key.String() + ":" + host)
	return nil
}

// lookupKey reads a key from a section, falling back to DEFAULT.
func lookupKey(cfg *ini.File, section, name string) (*ini.Key, error) {
	if sec, err := cfg.GetSection(section); err == nil && sec.HasKey(name) {
		return sec.Key(name), nil
	}
	if def := cfg.Section(ini.DefaultSection); def.HasKey(name) {
		return def.Key(name), nil
	}
	return nil, fmt.Errorf("no option %q in section %q", name, section)
}

func load(path string) (*ini.File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ini.Empty(loadOptions), nil
	}
	cfg, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("reading tempest config: %w", err)
	}
	return cfg, nil
}

func save(cfg *ini.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing tempest config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := cfg.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing tempest config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing tempest config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("writing tempest config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing tempest config: %w", err)
	}
	return nil
}
