// Package pathutil resolves user-supplied directory arguments.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolutePath turns a -d argument into an absolute path. An empty
// path means the working directory and a leading "~" expands to the home
// directory. Symlinks are resolved in the longest existing prefix; the
// missing tail (directories the command is about to create) is appended
// unchanged.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}

	existing, tail := splitExisting(abs)
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		resolved = existing
	}
	return filepath.Join(append([]string{resolved}, tail...)...), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// splitExisting returns the deepest ancestor of abs that exists and the
// path elements below it, top-down.
func splitExisting(abs string) (string, []string) {
	var tail []string
	current := abs
	for {
		if _, err := os.Lstat(current); err == nil {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
	}
	return current, tail
}
