// Package session decides which trading session (calendar day in a reference
// timezone) every bar belongs to. Labels and time features both go through it.
package session

import (
	"fmt"
	"time"
)

// Day is a calendar date in the calendar's timezone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Day) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// Calendar buckets timestamps into sessions.
type Calendar struct {
	loc      *time.Location
	naive    bool
	openMin  int
	closeMin int
}

// NewCalendar loads tz. With naive set, timestamps are read as wall-clock time
// in tz whatever location they carry; otherwise they are converted into tz.
// open and close ("09:30", "16:00") restrict which bars define a session's
// open and close; both empty means every bar counts.
func NewCalendar(tz string, naive bool, open, close string) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("session timezone %q: %w", tz, err)
	}
	c := &Calendar{loc: loc, naive: naive, openMin: -1, closeMin: -1}
	if open == "" && close == "" {
		return c, nil
	}
	if c.openMin, err = parseClock(open); err != nil {
		return nil, fmt.Errorf("session open: %w", err)
	}
	if c.closeMin, err = parseClock(close); err != nil {
		return nil, fmt.Errorf("session close: %w", err)
	}
	if c.closeMin <= c.openMin {
		return nil, fmt.Errorf("session close %s not after open %s", close, open)
	}
	return c, nil
}

// UTC is a whole-day calendar in UTC.
func UTC() *Calendar { return &Calendar{loc: time.UTC, openMin: -1, closeMin: -1} }

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Local returns t in the calendar's timezone.
func (c *Calendar) Local(t time.Time) time.Time {
	if c.naive {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
	}
	return t.In(c.loc)
}

// DayOf returns the session day of t.
func (c *Calendar) DayOf(t time.Time) Day {
	l := c.Local(t)
	return Day{Year: l.Year(), Month: l.Month(), Day: l.Day()}
}

// InHours reports whether t falls within the regular-hours window, both ends included.
func (c *Calendar) InHours(t time.Time) bool {
	if c.openMin < 0 {
		return true
	}
	l := c.Local(t)
	m := l.Hour()*60 + l.Minute()
	return m >= c.openMin && m <= c.closeMin
}

// Session is one day's rows. First and Last are the rows that define the
// session open and close: the first and last in-hours bars, or the first and
// last bars of the day when none is in hours.
type Session struct {
	Day   Day
	Rows  []int
	First int
	Last  int
}

// Sessions groups a chronologically sorted index into sessions, in order.
func (c *Calendar) Sessions(index []time.Time) []Session {
	var out []Session
	for i, t := range index {
		d := c.DayOf(t)
		if len(out) == 0 || out[len(out)-1].Day != d {
			out = append(out, Session{Day: d, First: -1, Last: -1})
		}
		s := &out[len(out)-1]
		s.Rows = append(s.Rows, i)
		if c.InHours(t) {
			if s.First < 0 {
				s.First = i
			}
			s.Last = i
		}
	}
	for k := range out {
		if out[k].First < 0 {
			out[k].First = out[k].Rows[0]
			out[k].Last = out[k].Rows[len(out[k].Rows)-1]
		}
	}
	return out
}

// SessionEnd returns the last instant of session day d in the calendar zone.
func (c *Calendar) SessionEnd(d Day) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
