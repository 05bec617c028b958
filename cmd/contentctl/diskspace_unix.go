//go:build !windows && !wasm

package main

import "golang.org/x/sys/unix"

// availableDiskMB returns the free space in MB on the filesystem
// holding path, grounded on the teacher's own checkDiskSpace
// (cmd/bd/daemon_health_unix.go), used here as a serve pre-flight
// sanity check before a bolt-backed daemon starts writing.
func availableDiskMB(path string) (uint64, bool) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, false
	}
	bavail := stat.Bavail
	bsize := stat.Bsize
	if bavail < 0 {
		bavail = 0
	}
	if bsize < 0 {
		bsize = 0
	}
	return uint64(bavail) * uint64(bsize) / (1024 * 1024), true
}
