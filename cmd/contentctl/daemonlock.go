package main

import (
	"fmt"

	"github.com/gofrs/flock"
)

// daemonLockFileName is the lock file contentctl serve holds for the
// lifetime of the process, preventing a second daemon instance from
// running against the same storage path concurrently. Grounded on the
// teacher's own JSONLLock (cmd/bd/jsonl_lock.go), which uses
// github.com/gofrs/flock the same way: TryLock, hold for the process
// lifetime, Unlock on shutdown.
const daemonLockFileName = ".contentctl.lock"

type daemonLock struct {
	flock *flock.Flock
}

func acquireDaemonLock(path string) (*daemonLock, error) {
	f := flock.New(path)
	locked, err := f.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("daemon lock %s is held by another contentctl serve process", path)
	}
	return &daemonLock{flock: f}, nil
}

func (l *daemonLock) release() error {
	return l.flock.Unlock()
}
