package tempestconf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/ini.v1"

	"github.com/sznuper/tempestmon/internal/hiera"
	"github.com/sznuper/tempestmon/internal/selector"
)

const existingConf = `[DEFAULT]
log_dir = /var/log/tempest

[oslo_concurrency]
lock_path = /tmp/tempest-lock

[compute]
availability_zone = nova
flavor_ref = 1
`

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etc", "tempest.conf")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatal(err)
	}
	return path
}

func readConf(t *testing.T, path string) *ini.File {
	t.Helper()
	cfg, err := ini.Load(path)
	if err != nil {
		t.Fatalf("loading %s: %v", path, err)
	}
	return cfg
}

func sel(t *testing.T, env, site, job, host, image string) selector.Set {
	t.Helper()
	s, err := selector.New(env, site, job, host, image)
	if err != nil {
		t.Fatalf("selector.New: %v", err)
	}
	return s
}

func mustWrite(t *testing.T, entries *hiera.Entries, path string, s selector.Set) {
	t.Helper()
	if err := Write(entries, path, s, "/srv/accounts"); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func checkKey(t *testing.T, cfg *ini.File, section, key, want string) {
	t.Helper()
	if got := cfg.Section(section).Key(key).String(); got != want {
		t.Errorf("%s.%s = %q, want %q", section, key, got, want)
	}
}

func TestWrite_NonDestructiveMerge(t *testing.T) {
	path := writeConf(t, existingConf)

	entries := hiera.NewEntries()
	entries.Set("compute", "image_ref", "cirros")
	entries.Set("identity", "uri_v3", "https://keystone:5000/v3")
	entries.Set("DEFAULT", "debug", "true")

	mustWrite(t, entries, path, sel(t, "production", "", "", "", ""))

	cfg := readConf(t, path)
	checkKey(t, cfg, "oslo_concurrency", "lock_path", "/tmp/tempest-lock")
	checkKey(t, cfg, "compute", "availability_zone", "nova")
	checkKey(t, cfg, "compute", "flavor_ref", "1")
	checkKey(t, cfg, "compute", "image_ref", "cirros")
	checkKey(t, cfg, "identity", "uri_v3", "https://keystone:5000/v3")
	checkKey(t, cfg, "DEFAULT", "log_dir", "/var/log/tempest")
	checkKey(t, cfg, "DEFAULT", "debug", "true")
}

func TestWrite_PreservesMode(t *testing.T) {
	path := writeConf(t, existingConf)
	mustWrite(t, hiera.NewEntries(), path, sel(t, "production", "", "", "", ""))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".tempest.conf.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestWrite_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "tempest.conf")

	entries := hiera.NewEntries()
	entries.Set("compute", "image_ref", "cirros")

	mustWrite(t, entries, path, sel(t, "testing", "", "", "", ""))

	cfg := readConf(t, path)
	checkKey(t, cfg, "compute", "image_ref", "cirros")
	checkKey(t, cfg, "auth", "test_accounts_file", "/srv/accounts/testing.yaml")
}

func TestWrite_DefaultHeaderWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempest.conf")

	entries := hiera.NewEntries()
	entries.Set("DEFAULT", "debug", "true")

	mustWrite(t, entries, path, sel(t, "testing", "", "", "", ""))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[DEFAULT]") {
		t.Errorf("file does not start with [DEFAULT]:\n%s", data)
	}
}

func TestWrite_HostPinning(t *testing.T) {
	tests := []struct {
		name       string
		site, host string
		want       string
	}{
		{"site and host", "a", "b", "nova:b"},
		{"host only", "", "b", "nova"},
		{"site only", "a", "", "nova"},
		{"neither", "", "", "nova"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConf(t, existingConf)
			mustWrite(t, hiera.NewEntries(), path, sel(t, "production", tt.site, "", tt.host, ""))

			checkKey(t, readConf(t, path), "compute", "availability_zone", tt.want)
		})
	}
}

func TestWrite_HostPinningUsesResolvedZone(t *testing.T) {
	path := writeConf(t, existingConf)

	entries := hiera.NewEntries()
	entries.Set("compute", "availability_zone", "melbourne-qh2")

	mustWrite(t, entries, path, sel(t, "production", "melbourne", "", "qh2-rcc10", ""))

	checkKey(t, readConf(t, path), "compute", "availability_zone", "melbourne-qh2:qh2-rcc10")
}

func TestWrite_HostPinningWithoutZone(t *testing.T) {
	path := writeConf(t, "[compute]\nflavor_ref = 1\n")

	err := Write(hiera.NewEntries(), path, sel(t, "production", "a", "", "b", ""), "/srv/accounts")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "availability_zone") {
		t.Errorf("error = %q, want it to name availability_zone", err)
	}
}

func TestWrite_ImageOverride(t *testing.T) {
	path := writeConf(t, existingConf)

	entries := hiera.NewEntries()
	entries.Set("compute", "image_ref", "resolved-image")

	mustWrite(t, entries, path, sel(t, "production", "", "", "", "community-image"))

	checkKey(t, readConf(t, path), "compute", "image_ref", "community-image")
}

func TestWrite_AccountsFileOverridesResolved(t *testing.T) {
	path := writeConf(t, existingConf)

	entries := hiera.NewEntries()
	entries.Set("auth", "test_accounts_file", "/resolved/accounts.yaml")

	mustWrite(t, entries, path, sel(t, "production", "s1", "", "", ""))

	checkKey(t, readConf(t, path), "auth", "test_accounts_file", "/srv/accounts/s1.yaml")
}

func TestWrite_EmptySectionNameLeavesFileAlone(t *testing.T) {
	path := writeConf(t, existingConf)

	entries := hiera.NewEntries()
	entries.Set("", "debug", "true")

	if err := Write(entries, path, sel(t, "production", "", "", "", ""), "/srv/accounts"); err == nil {
		t.Fatal("expected error")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != existingConf {
		t.Errorf("file changed after failed write:\n%s", data)
	}
}

func TestAccountsFile_Precedence(t *testing.T) {
	tests := []struct {
		name string
		sel  selector.Set
		want string
	}{
		{"operator job wins", selector.Set{Environment: "production", Site: "s1", Job: "check-foo"}, "/srv/accounts/tempest-operator.yaml"},
		{"site", selector.Set{Environment: "production", Site: "s1"}, "/srv/accounts/s1.yaml"},
		{"site with non-operator job", selector.Set{Environment: "testing", Site: "s1", Job: "nagios_smoke"}, "/srv/accounts/s1.yaml"},
		{"environment", selector.Set{Environment: "production"}, "/srv/accounts/production.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccountsFile("/srv/accounts", tt.sel); got != tt.want {
				t.Errorf("AccountsFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccountsFile_RelativeDir(t *testing.T) {
	got := AccountsFile("accounts", selector.Set{Environment: "production"})
	if !filepath.IsAbs(got) {
		t.Errorf("AccountsFile() = %q, want an absolute path", got)
	}
	if filepath.Base(got) != "production.yaml" {
		t.Errorf("base = %q, want production.yaml", filepath.Base(got))
	}
}

func TestMerge_SkipsDefaultCreation(t *testing.T) {
	cfg := ini.Empty()

	entries := hiera.NewEntries()
	entries.Set("DEFAULT", "debug", "true")
	entries.AddSection("network")

	if err := Merge(cfg, entries); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	checkKey(t, cfg, ini.DefaultSection, "debug", "true")
	if _, err := cfg.GetSection("network"); err != nil {
		t.Errorf("network section not created: %v", err)
	}
	count := 0
	for _, n := range cfg.SectionStrings() {
		if n == ini.DefaultSection {
			count++
		}
	}
	if count != 1 {
		t.Errorf("DEFAULT appears %d times, want 1", count)
	}
}

func TestMerge_EmptySectionName(t *testing.T) {
	cfg := ini.Empty()

	entries := hiera.NewEntries()
	entries.AddSection("")

	err := Merge(cfg, entries)
	if err == nil || !strings.Contains(err.Error(), "empty section name") {
		t.Errorf("Merge() error = %v, want empty section name", err)
	}
}
