package tasks

import "time"

// Timer is an armed one-shot timer. Stop reports whether it prevented the
// callback from firing.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock time and timer arming so tests can advance
// virtual time instead of sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewClock returns the wall-clock implementation.
func NewClock() Clock { return realClock{} }
