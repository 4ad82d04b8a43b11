// Package system provides the wall clock used to age early-access releases.
package system

import "time"

// Clock reports the wall clock in UTC, or a frozen instant when built with
// Fixed.
type Clock struct {
	frozen time.Time
}

// New returns a Clock that follows the wall clock.
func New() *Clock {
	return &Clock{}
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) *Clock {
	return &Clock{frozen: t.UTC()}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	if c != nil && !c.frozen.IsZero() {
		return c.frozen
	}
	return time.Now().UTC()
}
