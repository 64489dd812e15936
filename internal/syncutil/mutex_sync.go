//go:build !deadlock

// Package syncutil holds the mutex types used for shared bridge state.
// Build with -tags=deadlock to swap in lock-order and timeout detection.
package syncutil

import "sync"

// DeadlockDetection reports whether the detector is compiled in.
const DeadlockDetection = false

// Mutex is a mutual exclusion lock.
//
//nolint:gocritic // the embedding is the wrapper
type Mutex struct {
	sync.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock.
//
//nolint:gocritic // the embedding is the wrapper
type RWMutex struct {
	sync.RWMutex
}
