// Package clock abstracts wall time and timers so scheduling code can be
// driven by a fake clock in tests.
package clock

import "time"

// Clock supplies the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already
	// ran or was already stopped.
	Stop() bool
}

// Real is the system clock.
type Real struct{}

// New returns the system clock.
func New() Clock {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
