// Package clock provides the time source and wall-clock parsing shared by the
// propagation, synchronisation and conversation layers.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// DefaultZone is used when no time zone is configured.
const DefaultZone = "Asia/Singapore"

var layouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Clock reports the current instant in a fixed location and parses stored
// datetimes in that location.
type Clock struct {
	mu  sync.Mutex
	loc *time.Location
	now func() time.Time
	set *time.Time
}

// New returns a clock in loc using the system time.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// Load resolves the IANA zone name (DefaultZone when empty) into a clock.
func Load(zone string) (*Clock, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return New(loc), nil
}

// Fixed returns a clock frozen at t, for tests and replays.
func Fixed(loc *time.Location, t time.Time) *Clock {
	c := New(loc)
	c.Set(t)
	return c
}

// Now returns the current instant in the clock's location.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set != nil {
		return c.set.In(c.loc)
	}
	return c.now().In(c.loc)
}

// Set freezes the clock at t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.set = &t
	c.mu.Unlock()
}

// Advance moves a frozen clock forward by d. A running clock is frozen first.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := c.now()
	if c.set != nil {
		base = *c.set
	}
	next := base.Add(d)
	c.set = &next
	return next.In(c.loc)
}

func (c *Clock) Location() *time.Location { return c.loc }

// Parse reads a stored datetime. Values carrying an explicit offset (RFC 3339)
// keep it; anything else is wall-clock time in the clock's location.
func (c *Clock) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse datetime: empty value")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(c.loc), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse datetime: unrecognised value %q", s)
}

// Window parses start and end. ok is false when either fails to parse.
func (c *Clock) Window(start, end string) (from, to time.Time, ok bool) {
	from, err := c.Parse(start)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to, err = c.Parse(end)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
