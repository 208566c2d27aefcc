//go:build !windows

package service

import "golang.org/x/sys/unix"

// freeDiskSpace returns the free bytes available on the volume holding
// path, or -1 when it cannot be determined.
func freeDiskSpace(path string) int64 {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}
	return int64(fs.Bavail) * int64(fs.Bsize)
}
