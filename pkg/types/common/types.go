// Package common holds the small set of shared types used across the engine's
// domain and application layers.
package common

import (
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for a UUID v4 identifier.
type ID string

// NewID mints a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == "" }

// Metadata is an open-ended key-value bag attached to run diagnostics.
type Metadata map[string]interface{}

// RunStatus represents the lifecycle state of a valuation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
