// Package nrdp submits passive check results to a Nagios NRDP endpoint.
package nrdp

import (
	"encoding/xml"
	"fmt"
)

// State is a Nagios check state.
type State int

// Only OK and CRITICAL are ever produced.
const (
	StateOK       State = 0
	StateCritical State = 2
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// StateFromExitCode maps a test run's exit status to a check state. Zero is
// OK, anything else is CRITICAL, including negative codes reported for runs
// killed by a signal.
func StateFromExitCode(code int) State {
	if code == 0 {
		return StateOK
	}
	return StateCritical
}

// CheckResult is a single passive service check result.
type CheckResult struct {
	XMLName     xml.Name `xml:"checkresult"`
	Type        string   `xml:"type,attr"`
	CheckType   string   `xml:"checktype,attr"`
	Hostname    string   `xml:"hostname"`
	ServiceName string   `xml:"servicename"`
	State       State    `xml:"state"`
	Output      string   `xml:"output"`
}

// NewServiceResult builds a passive service check result.
func NewServiceResult(hostname, serviceName string, state State, output string) CheckResult {
	return CheckResult{
		Type:        "service",
		CheckType:   "1",
		Hostname:    hostname,
		ServiceName: serviceName,
		State:       state,
		Output:      output,
	}
}

type checkResults struct {
	XMLName xml.Name      `xml:"checkresults"`
	Results []CheckResult `xml:"checkresult"`
}

// Marshal serializes results into the XMLDATA document.
func Marshal(results ...CheckResult) ([]byte, error) {
	body, err := xml.Marshal(checkResults{Results: results})
	if err != nil {
		return nil, fmt.Errorf("encoding check results: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
