package chrono

import (
	"time"
)

var central *time.Location

func init() {
	var err error
	central, err = time.LoadLocation("America/Chicago")
	if err != nil {
		panic(err)
	}
}

// Central returns a [*time.Location] for America/Chicago, the timezone the
// generation schedules are published in.
func Central() *time.Location {
	return central
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time, the timezone of the time will default to America/Chicago.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(central)
}

// FixedTime always returns the same instant, it is used in tests.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(central)
}
