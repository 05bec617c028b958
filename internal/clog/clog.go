// Package clog is the content engine's ambient logging surface: plain
// fmt-to-stderr, gated by an environment variable and a runtime
// verbosity flag, rather than a structured logging framework. Grounded
// on beads' internal/debug, which the teacher itself uses everywhere
// instead of zap/logrus (those only appear as transitive dependencies
// of unrelated subsystems in the teacher's own go.mod).
package clog

import (
	"fmt"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	verbose = os.Getenv("CONTENTENGINE_DEBUG") != ""
)

// SetVerbose toggles debug-level output at runtime (e.g. from a --debug
// CLI flag), independent of the environment variable.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

func isVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// Debugf prints only when verbose logging is enabled.
func Debugf(format string, args ...interface{}) {
	if isVerbose() {
		fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
	}
}

// Infof always prints informational progress to stderr.
func Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[info] "+format+"\n", args...)
}

// Warnf prints a warning; used for the "silent recovery" paths spec
// calls out (modified_content on a missing page, JS reference
// canonicalization, etc).
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[warn] "+format+"\n", args...)
}

// Errorf prints an error. Programmer and integrity errors (spec §7)
// are logged here before the journal is deliberately left uncleaned.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[error] "+format+"\n", args...)
}
