// Package diskspace provides utilities for checking available disk space
// before writing extracted data.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/rescale/dlxt/internal/constants"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, humanize.IBytes(uint64(e.RequiredBytes)), humanize.IBytes(uint64(e.AvailableBytes)))
}

// CheckAvailableSpace checks if there is sufficient disk space available for a file operation.
// It checks the filesystem containing targetPath's directory, which must exist.
//
// Parameters:
//   - targetPath: The path where the file will be created (can be non-existent)
//   - requiredBytes: The number of bytes needed
//   - safetyMargin: Multiplier for safety (e.g., 1.15 for 15% buffer)
//
// Returns an InsufficientSpaceError if there is not enough space. If the
// filesystem cannot be queried the check passes and the write fails naturally.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	available, err := availableBytes(filepath.Dir(targetPath))
	if err != nil {
		return nil
	}

	requiredWithMargin := int64(float64(requiredBytes) * safetyMargin)
	if available < requiredWithMargin {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  requiredWithMargin,
			AvailableBytes: available,
		}
	}
	return nil
}

// CheckForExtraction checks that the filesystem holding target has room for
// output derived from an input of inputBytes, plus the extraction buffer.
// Decompressed output usually exceeds its input, so this only catches
// filesystems that are clearly too small.
func CheckForExtraction(target string, inputBytes int64) error {
	return CheckAvailableSpace(target, inputBytes, 1+constants.DiskSpaceBufferPercent)
}

// GetAvailableSpace returns the available space in bytes for the filesystem
// containing the given path. Returns 0 if unable to determine.
func GetAvailableSpace(path string) int64 {
	available, err := availableBytes(filepath.Dir(path))
	if err != nil {
		return 0
	}
	return available
}

// IsInsufficientSpaceError checks if an error is (or wraps) an InsufficientSpaceError
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
