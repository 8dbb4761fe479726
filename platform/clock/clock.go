// Package clock abstracts time for deterministic tests.
// This is part of the platform layer and contains no business logic.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// System uses the system time in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. Intended for tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.T
}
