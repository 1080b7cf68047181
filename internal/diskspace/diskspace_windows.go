//go:build windows

package diskspace

import (
	"golang.org/x/sys/windows"
)

// availableBytes uses GetDiskFreeSpaceEx, which honors per-user quotas.
func availableBytes(dir string) (int64, error) {
	pathPtr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return 0, err
	}
	return int64(freeBytesAvailable), nil
}
