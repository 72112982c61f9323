// Package accounts reads tempest pre-provisioned credentials files.
package accounts

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// DefaultDomain is used when an account omits its domain ids.
const DefaultDomain = "default"

// Account is the first entry of a credentials file.
type Account struct {
	Username        string `yaml:"username" validate:"required"`
	ProjectName     string `yaml:"project_name" validate:"required"`
	Password        string `yaml:"password" validate:"required"`
	ProjectDomainID string `yaml:"project_domain_id"`
	UserDomainID    string `yaml:"user_domain_id"`
}

// String never includes the password.
func (a Account) String() string {
	return fmt.Sprintf("%s@%s (user domain %s, project domain %s)",
		a.Username, a.ProjectName, a.UserDomainID, a.ProjectDomainID)
}

var validate = validator.New()

// Load reads the credentials file at path and returns its first account.
func Load(path string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var list []Account
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("accounts file %s has no accounts", path)
	}

	a := list[0]
	if err := validate.Struct(a); err != nil {
		return nil, fmt.Errorf("accounts file %s: %w", path, err)
	}
	if a.ProjectDomainID == "" {
		a.ProjectDomainID = DefaultDomain
	}
	if a.UserDomainID == "" {
		a.UserDomainID = DefaultDomain
	}
	return &a, nil
}
