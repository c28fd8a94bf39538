// Package clock provides an abstract monotonic millisecond time source.
// The round engine never calls time.Now directly so that boundary
// conditions around closing_time can be tested deterministically.
package clock

import "time"

// Clock returns the current time as milliseconds since the Unix epoch.
type Clock interface {
	NowMillis() uint64
}

// System is a Clock backed by the real wall clock.
type System struct{}

// NewSystem returns a Clock backed by time.Now.
func NewSystem() System { return System{} }

func (System) NowMillis() uint64 {
	return uint64(time.Now().UTC().UnixMilli())
}

// Manual is a Clock whose value is set explicitly, for deterministic
// tests of the closing_time and finish boundaries.
type Manual struct {
	millis uint64
}

// NewManual returns a Manual clock starting at the given time.
func NewManual(startMillis uint64) *Manual {
	return &Manual{millis: startMillis}
}

func (m *Manual) NowMillis() uint64 { return m.millis }

// Set moves the clock to an arbitrary point in time.
func (m *Manual) Set(millis uint64) { m.millis = millis }

// Advance moves the clock forward by the given number of milliseconds.
func (m *Manual) Advance(deltaMillis uint64) { m.millis += deltaMillis }
