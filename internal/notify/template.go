package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultTemplate is used when neither the config nor the target sets one.
const DefaultTemplate = `{{check.state_emoji}} {{check.state}} {{check.name}} ({{env.name}}): {{check.output}}`

// TemplateData holds all data available to notification templates.
type TemplateData struct {
	Env   map[string]string
	Check map[string]string
}

// BuildTemplateData constructs template data from the run's environment
// and check fields.
func BuildTemplateData(env map[string]string, checkFields map[string]string) TemplateData {
	envCopy := make(map[string]string, len(env))
	for k, v := range env {
		envCopy[k] = v
	}

	// Copy check fields and add derived state_emoji.
	check := make(map[string]string, len(checkFields)+1)
	for k, v := range checkFields {
		check[k] = v
	}
	check["state_emoji"] = stateEmoji(check["state"])

	return TemplateData{
		Env:   envCopy,
		Check: check,
	}
}

// stateEmoji covers the two states a run can report.
func stateEmoji(state string) string {
	switch strings.ToLower(state) {
	case "critical":
		return "\U0001f534" // 🔴
	case "ok":
		return "\U0001f7e2" // 🟢
	default:
		return "\u2753" // ❓
	}
}

// Render executes a Go text/template string with Sprig functions and the
// custom accessor functions (check, env).
func Render(tmplStr string, data TemplateData) (string, error) {
	funcMap := sprig.TxtFuncMap()

	// Register accessor functions so {{check.state}} works:
	// "check" returns the check map, then ".state" accesses a key.
	funcMap["check"] = func() map[string]string { return data.Check }
	funcMap["env"] = func() map[string]string { return data.Env }

	t, err := template.New("notify").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
