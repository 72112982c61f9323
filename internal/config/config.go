package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/a8m/envsubst"
	"github.com/goccy/go-yaml"
)

var (
	ErrUnknownEnvironment = errors.New("unknown environment")
	ErrUnknownTest        = errors.New("unknown test")
)

type Config struct {
	Options      Options                `yaml:"options"`
	Environments map[string]Environment `yaml:"environments" validate:"required,dive"`
	Tests        map[string]string      `yaml:"tests" validate:"required,dive,required"`
	Resolver     Resolver               `yaml:"resolver"`
	Runner       Runner                 `yaml:"runner"`
	Services     map[string]Service     `yaml:"services" validate:"dive"`
	Notify       []NotifyTarget         `yaml:"notify" validate:"dive"`
	Template     string                 `yaml:"template"`
	Schedules    []Schedule             `yaml:"schedules" validate:"unique=Name,dive"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

// Options are plain strings so each one can be overridden by a CLI flag.
type Options struct {
	TempestDir    string `yaml:"tempest_dir"`
	AccountsDir   string `yaml:"accounts_dir"`
	Virtualenv    string `yaml:"virtualenv"`
	WorkdirPrefix string `yaml:"workdir_prefix"`
	LogLevel      string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Environment holds the NRDP settings for one environment.
type Environment struct {
	NRDPURL   string `yaml:"nrdp_url" validate:"required,url"`
	NRDPToken string `yaml:"nrdp_token" validate:"required"`
	Hostname  string `yaml:"hostname" validate:"required"`
	Timeout   string `yaml:"timeout"`
}

type Resolver struct {
	Type      string   `yaml:"type" validate:"omitempty,oneof=hiera file"`
	Command   []string `yaml:"command"`
	Hierarchy []string `yaml:"hierarchy" validate:"required_if=Type file"`
	Key       string   `yaml:"key"`
}

type Runner struct {
	InitCommand []string `yaml:"init_command"`
	TestCommand []string `yaml:"test_command"`
	Timeout     string   `yaml:"timeout"`
}

type Service struct {
	URL    string            `yaml:"url" validate:"required"`
	Params map[string]string `yaml:"params"`
}

// Schedule is a recurring run used by the daemon.
type Schedule struct {
	Name        string `yaml:"name" validate:"required"`
	Cron        string `yaml:"cron" validate:"required"`
	Environment string `yaml:"environment" validate:"required,oneof=production testing development"`
	Site        string `yaml:"site"`
	Flavor      string `yaml:"flavor"`
	Test        string `yaml:"test" validate:"required"`
	Host        string `yaml:"host"`
	Image       string `yaml:"image"`
}

// NotifyTarget handles a plain service name string or an object with overrides.
type NotifyTarget struct {
	Service  string            `yaml:"service" validate:"required"`
	Template string            `yaml:"template"`
	Params   map[string]string `yaml:"params"`
}

func (n *NotifyTarget) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		n.Service = str
		return nil
	}

	type notifyAlias NotifyTarget
	var obj notifyAlias
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("notify: must be a service name string or an object with service/template/params")
	}
	*n = NotifyTarget(obj)
	return nil
}

// Environment returns the settings for the named environment.
func (c *Config) Environment(name string) (Environment, error) {
	env, ok := c.Environments[name]
	if !ok {
		return Environment{}, fmt.Errorf("%w %q", ErrUnknownEnvironment, name)
	}
	return env, nil
}

// TestID returns the runner test id for a test name.
func (c *Config) TestID(name string) (string, error) {
	id, ok := c.Tests[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownTest, name)
	}
	return id, nil
}

// Timeout parses an optional duration string; empty means no timeout.
func Timeout(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	data, err = envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expanding env vars: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg.Path = path

	return &cfg, nil
}
