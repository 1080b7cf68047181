// Package validation checks names and paths that come from untrusted input
// (URL path segments, archive listings) before they touch the filesystem.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidFilename is wrapped by every ValidateFilename failure.
var ErrInvalidFilename = errors.New("invalid file name")

// ErrOutsideDirectory is returned when a path resolves outside its base.
var ErrOutsideDirectory = errors.New("path escapes base directory")

// ValidateFilename accepts a single path element suitable for
// filepath.Join(dir, name). It rejects empty names, "." and "..", path
// separators, and control characters (a decoded %00 or %0A in a URL).
func ValidateFilename(name string) error {
	switch name {
	case "":
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	case ".", "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	}
	if i := strings.IndexFunc(name, unicode.IsControl); i >= 0 {
		r, _ := utf8.DecodeRuneInString(name[i:])
		return fmt.Errorf("%w: %q contains control character %U", ErrInvalidFilename, name, r)
	}
	return nil
}

// ValidatePathInDirectory checks that path, resolved against baseDir when
// relative, stays inside baseDir. Symlinks are not followed.
func ValidatePathInDirectory(path, baseDir string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}
	if baseDir == "" {
		return errors.New("base directory cannot be empty")
	}

	base, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return fmt.Errorf("%w: %s (base: %s)", ErrOutsideDirectory, path, baseDir)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s (base: %s)", ErrOutsideDirectory, path, baseDir)
	}
	return nil
}
