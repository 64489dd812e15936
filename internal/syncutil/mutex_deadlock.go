//go:build deadlock

// Package syncutil holds the mutex types used for shared bridge state.
// Build with -tags=deadlock to swap in lock-order and timeout detection.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockDetection reports whether the detector is compiled in.
const DeadlockDetection = true

// lockTimeout is far above any hold in the read loop; a lock held this long is a bug.
const lockTimeout = 15 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = lockTimeout
}

// Mutex is a mutual exclusion lock.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	deadlock.RWMutex
}
