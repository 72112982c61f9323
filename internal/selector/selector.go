// Package selector holds the named inputs that parameterize config
// resolution and credential choice for a single run.
package selector

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environments lists the accepted values for Set.Environment.
var Environments = []string{"production", "testing", "development"}

// OperatorJobPrefix marks jobs that run with the operator account.
const OperatorJobPrefix = "check"

// Set is the selector set for one run. Build it with New; it is passed by
// value and never mutated afterwards.
type Set struct {
	Environment string `validate:"required,oneof=production testing development"`
	Site        string
	Job         string
	Host        string
	Image       string
}

var validate = validator.New()

// New validates and returns a selector set.
func New(environment, site, job, host, image string) (Set, error) {
	s := Set{
		Environment: environment,
		Site:        site,
		Job:         job,
		Host:        host,
		Image:       image,
	}
	if err := validate.Struct(s); err != nil {
		return Set{}, fmt.Errorf("invalid environment %q (want one of %s)",
			environment, strings.Join(Environments, ", "))
	}
	return s, nil
}

// OperatorJob reports whether the job carries the operator prefix.
func (s Set) OperatorJob() bool {
	return strings.HasPrefix(s.Job, OperatorJobPrefix)
}

// PinsHost reports whether the run pins instances to a single hypervisor.
// Both a site and a host are required.
func (s Set) PinsHost() bool {
	return s.Site != "" && s.Host != ""
}

// Vars returns the variables bound when querying the config hierarchy.
func (s Set) Vars() map[string]string {
	return map[string]string{
		"environment": s.Environment,
		"site":        s.Site,
		"job":         s.Job,
	}
}

// JobName derives the job name used for config resolution from a test
// flavor or test name.
func JobName(environment, flavor, test string) string {
	if flavor != "" {
		return "nagios_" + environment + "_" + flavor
	}
	return "nagios_" + test
}

// CheckName builds the monitoring check name from the non-empty fragments.
func CheckName(site, flavor, test string) string {
	pieces := []string{"tempest"}
	for _, p := range []string{site, flavor, test} {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return strings.Join(pieces, "_")
}
