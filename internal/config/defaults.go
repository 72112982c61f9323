package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sznuper/tempestmon/internal/hiera"
)

const (
	DefaultVirtualenv    = "/opt/tempest"
	DefaultWorkdirPrefix = "tempest_"
	DefaultLogLevel      = "info"
)

var (
	DefaultInitCommand = []string{"tempest", "init"}
	DefaultTestCommand = []string{"ostestr", "--serial", "-n"}
)

var validate = validator.New()

// Prepare fills in defaults and validates the config. Call it after CLI
// overrides have been applied.
func (c *Config) Prepare() error {
	c.applyDefaults()
	return c.Validate()
}

func (c *Config) applyDefaults() {
	o := &c.Options
	if o.TempestDir == "" {
		o.TempestDir = filepath.Dir(c.Path)
	}
	if abs, err := filepath.Abs(o.TempestDir); err == nil {
		o.TempestDir = abs
	}
	if o.AccountsDir == "" {
		o.AccountsDir = filepath.Join(o.TempestDir, "accounts")
	}
	if o.Virtualenv == "" {
		o.Virtualenv = DefaultVirtualenv
	}
	if o.WorkdirPrefix == "" {
		o.WorkdirPrefix = DefaultWorkdirPrefix
	}
	if o.LogLevel == "" {
		o.LogLevel = DefaultLogLevel
	}

	if c.Resolver.Type == "" {
		c.Resolver.Type = "hiera"
	}
	if len(c.Resolver.Command) == 0 {
		c.Resolver.Command = hiera.DefaultCommand
	}
	if c.Resolver.Key == "" {
		c.Resolver.Key = hiera.DefaultKey
	}

	if len(c.Runner.InitCommand) == 0 {
		c.Runner.InitCommand = DefaultInitCommand
	}
	if len(c.Runner.TestCommand) == 0 {
		c.Runner.TestCommand = DefaultTestCommand
	}
}

// Validate checks struct tags and cross references between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := checkDuration("runner.timeout", c.Runner.Timeout); err != nil {
		return err
	}
	for name, env := range c.Environments {
		if err := checkDuration("environments."+name+".timeout", env.Timeout); err != nil {
			return err
		}
	}
	for _, n := range c.Notify {
		if _, ok := c.Services[n.Service]; !ok {
			return fmt.Errorf("invalid config: notify references unknown service %q", n.Service)
		}
	}
	for _, s := range c.Schedules {
		if _, ok := c.Tests[s.Test]; !ok {
			return fmt.Errorf("invalid config: schedule %q references unknown test %q", s.Name, s.Test)
		}
		if _, ok := c.Environments[s.Environment]; !ok {
			return fmt.Errorf("invalid config: schedule %q references unconfigured environment %q", s.Name, s.Environment)
		}
	}
	return nil
}

func checkDuration(field, s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid config: %s: %w", field, err)
	}
	return nil
}
