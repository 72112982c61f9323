package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Resolve finds the executable a command name runs as. Names containing a
// path separator are checked as-is; bare names are looked up in the
// virtualenv's bin directory first, then in PATH.
func Resolve(name, venv string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return checkExecutable(name)
	}
	if venv != "" {
		if path, err := checkExecutable(filepath.Join(venv, "bin", name)); err == nil {
			return path, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("command not found: %s", name)
	}
	return path, nil
}

func checkExecutable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("command not found: %s", path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("command is a directory: %s", path)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("command is not executable: %s", path)
	}
	return path, nil
}

// lookPath prefers the virtualenv's copy of a bare command name.
func lookPath(name, venv string) string {
	if venv == "" || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if path, err := checkExecutable(filepath.Join(venv, "bin", name)); err == nil {
		return path
	}
	return name
}
