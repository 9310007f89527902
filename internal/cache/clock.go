package cache

import "time"

// Clock supplies the current time. A nil Clock reads the system clock.
type Clock func() time.Time

// Now returns the current time in UTC, truncated to microseconds so that
// values survive a round trip through every supported SQL driver unchanged.
func (c Clock) Now() time.Time {
	var now time.Time
	if c == nil {
		now = time.Now()
	} else {
		now = c()
	}
	return now.UTC().Truncate(time.Microsecond)
}

// Now is the system Clock.
func Now() time.Time { return time.Now() }

// FixedClock returns a Clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
