//go:build windows

package service

import "golang.org/x/sys/windows"

// freeDiskSpace returns the free bytes available on the volume holding
// path, or -1 when it cannot be determined.
func freeDiskSpace(path string) int64 {
	var free, total, avail uint64
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return -1
	}
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &avail); err != nil {
		return -1
	}
	return int64(free)
}
