// Package paths provides utilities for destination path handling in downloads.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rescale/dlxt/internal/constants"
)

// CollisionPolicy governs what happens when a destination path already
// exists at registration time.
type CollisionPolicy int

const (
	// Skip drops the source; nothing is created or opened.
	Skip CollisionPolicy = iota
	// Rename picks the lowest free "stemN.ext" name, N starting at 2.
	Rename
	// Replace reuses the path and truncates it on open.
	Replace
)

// ErrUnknownPolicy is returned by ParseCollisionPolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("unknown collision policy")

// String returns the config/flag spelling of the policy.
func (p CollisionPolicy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Rename:
		return "rename"
	case Replace:
		return "replace"
	default:
		return "unknown(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParseCollisionPolicy parses "skip", "rename" or "replace" (case-insensitive).
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return Skip, nil
	case "rename":
		return Rename, nil
	case "replace":
		return Replace, nil
	default:
		return Skip, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Resolution is the outcome of resolving one destination name.
type Resolution struct {
	Path     string // Full destination path (empty when Skip is set)
	Name     string // Final file name; differs from the requested one after a rename
	Skip     bool   // Destination exists and the policy is Skip
	Renamed  bool   // A numbered alternate was chosen
	Replaced bool   // Destination exists and will be truncated
}

// Resolve computes the destination for name inside dir under policy.
//
// Example: with "a.txt" and "a2.txt" present in dir, Rename resolves "a.txt"
// to "a3.txt". A name without an extension renames as "name2", "name3", ...
func Resolve(dir, name string, policy CollisionPolicy) (Resolution, error) {
	path := filepath.Join(dir, name)

	exists, err := pathExists(path)
	if err != nil {
		return Resolution{}, err
	}
	if !exists {
		return Resolution{Path: path, Name: name}, nil
	}

	switch policy {
	case Skip:
		return Resolution{Name: name, Skip: true}, nil
	case Replace:
		return Resolution{Path: path, Name: name, Replaced: true}, nil
	case Rename:
		stem, ext := splitExt(name)
		for suffix := 2; ; suffix++ {
			candidate := stem + strconv.Itoa(suffix) + ext
			candidatePath := filepath.Join(dir, candidate)
			exists, err := pathExists(candidatePath)
			if err != nil {
				return Resolution{}, err
			}
			if !exists {
				return Resolution{Path: candidatePath, Name: candidate, Renamed: true}, nil
			}
		}
	default:
		return Resolution{}, fmt.Errorf("%w: %v", ErrUnknownPolicy, policy)
	}
}

// OpenDestination opens a resolved path for writing. Existing content is
// truncated, so a shorter replacement never leaves stale trailing bytes.
func OpenDestination(res Resolution) (*os.File, error) {
	if res.Skip || res.Path == "" {
		return nil, fmt.Errorf("no destination to open for %q", res.Name)
	}
	return os.OpenFile(res.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePerm)
}

// splitExt splits at the right-most dot. "f.tar.gz" -> ("f.tar", ".gz");
// "README" -> ("README", ""); ".bashrc" -> (".bashrc", "").
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", path, err)
}
