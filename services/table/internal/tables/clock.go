package tables

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	DefaultDuration = 120
	MaxDuration     = 12 * 60
)

// ClockTime is a wall-clock time of day in minutes since midnight. Branch
// hours and reservation times carry no timezone.
type ClockTime int

// ParseClock accepts "HH:MM" or "HH:MM:SS"; seconds are dropped.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return ClockTime(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseDate parses a calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d.UTC(), nil
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type OperatingHours struct {
	Open  string `json:"open" bson:"open" validate:"required,clock"`
	Close string `json:"close" bson:"close" validate:"required,clock"`
}

// Contains reports whether t falls inside the hours, both ends inclusive.
// When close is earlier than open the hours run past midnight.
func (h OperatingHours) Contains(t ClockTime) (bool, error) {
	open, err := ParseClock(h.Open)
	if err != nil {
		return false, err
	}
	closing, err := ParseClock(h.Close)
	if err != nil {
		return false, err
	}
	if closing >= open {
		return t >= open && t <= closing, nil
	}
	return t >= open || t <= closing, nil
}

// Interval is a half-open span of absolute time [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(date time.Time, at ClockTime, minutes int) Interval {
	start := startOfDay(date).Add(time.Duration(at) * time.Minute)
	return Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

// Overlaps reports whether i and o share any instant. Intervals that only
// touch at an endpoint do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}
