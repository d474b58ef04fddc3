// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock. Times are reported in Location, or UTC when
// Location is nil.
type Clock struct {
	Location *time.Location
}

// New returns a UTC clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c Clock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}
