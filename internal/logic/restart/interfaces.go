package restart

import "time"

// Scheduler resolves the next occurrence of a restart schedule.
type Scheduler interface {
	NextAfter(
		spec,
		tz string,
		after time.Time,
	) (time.Time, error)
}

// Trigger starts the shutdown of the own process.
type Trigger func() error
