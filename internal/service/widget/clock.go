package widget

import "time"

// Task is a scheduled callback that can be cancelled before it runs.
type Task interface {
	// Stop prevents the task from running. It reports false when the task
	// already ran or was stopped.
	Stop() bool
}

// Clock schedules delayed callbacks on wall-clock time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Task
}

type realClock struct{}

// RealClock returns a Clock backed by the runtime timers.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

func (realClock) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// Loop runs callbacks serialised with every other mutation of one widget session.
type Loop interface {
	// AfterFunc schedules f to run on the loop after d. f reports whether it
	// changed visible state.
	AfterFunc(d time.Duration, f func() bool) Task
	// Go runs work off the loop and then runs the function it returns on the
	// loop. apply reports whether it changed visible state.
	Go(work func() (apply func() bool))
}
