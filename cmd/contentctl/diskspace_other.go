//go:build windows || wasm

package main

// availableDiskMB has no portable implementation on this platform; the
// serve pre-flight check simply skips the disk-space warning.
func availableDiskMB(path string) (uint64, bool) {
	return 0, false
}
