// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
datetime.go - calendar Date, wall-clock Time, and instant Timestamp

The three temporal types the Data API distinguishes. Date and Time are
timezone-free; Timestamp is an absolute instant serialized as epoch millis
inside {"$date": ...} for collections.
*/

package datatypes

import (
	"fmt"
	"time"
)

// Date is a validated calendar date without a timezone, wire form "2006-01-02".
type Date struct {
	year  int
	month int
	day   int
}

// NewDate constructs a Date, rejecting impossible calendar dates
// (e.g. February 30th).
func NewDate(year, month, day int) (Date, error) {
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("date: month %d out of range", month)
	}
	if day < 1 || day > daysIn(year, month) {
		return Date{}, fmt.Errorf("date: day %d out of range for %04d-%02d", day, year, month)
	}
	return Date{year: year, month: month, day: day}, nil
}

// ParseDate parses the "2006-01-02" form with strict calendar validation.
func ParseDate(s string) (Date, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(s, "%4d-%2d-%2d", &y, &m, &d); err != nil || len(s) != 10 {
		return Date{}, fmt.Errorf("date: invalid form %q, want YYYY-MM-DD", s)
	}
	return NewDate(y, m, d)
}

// DateOf extracts the calendar date of t in its location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: int(m), day: d}
}

func daysIn(year, month int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Year returns the year component.
func (d Date) Year() int { return d.year }

// Month returns the month component (1-12).
func (d Date) Month() int { return d.month }

// Day returns the day component (1-31).
func (d Date) Day() int { return d.day }

// In returns midnight of the date in the given location.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, loc)
}

// Equal reports component equality.
func (d Date) Equal(other Date) bool { return d == other }

// Compare orders dates chronologically: -1, 0, or +1.
func (d Date) Compare(other Date) int {
	a := [3]int{d.year, d.month, d.day}
	b := [3]int{other.year, other.month, other.day}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day)
}

// Time is a validated wall-clock time without a date or timezone,
// wire form "15:04:05.999999999" with optional fractional seconds.
type Time struct {
	hour  int
	min   int
	sec   int
	nanos int
}

// NewTime constructs a Time, validating each component.
func NewTime(hour, minute, second, nanos int) (Time, error) {
	if hour < 0 || hour > 23 {
		return Time{}, fmt.Errorf("time: hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return Time{}, fmt.Errorf("time: minute %d out of range", minute)
	}
	if second < 0 || second > 59 {
		return Time{}, fmt.Errorf("time: second %d out of range", second)
	}
	if nanos < 0 || nanos > 999_999_999 {
		return Time{}, fmt.Errorf("time: nanos %d out of range", nanos)
	}
	return Time{hour: hour, min: minute, sec: second, nanos: nanos}, nil
}

// ParseTime parses "HH:MM:SS" with optional ".fraction" up to nanoseconds.
func ParseTime(s string) (Time, error) {
	base := s
	frac := ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			base, frac = s[:i], s[i+1:]
			break
		}
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(base, "%2d:%2d:%2d", &h, &m, &sec); err != nil || len(base) != 8 {
		return Time{}, fmt.Errorf("time: invalid form %q, want HH:MM:SS[.fraction]", s)
	}
	nanos := 0
	if frac != "" {
		if len(frac) > 9 {
			return Time{}, fmt.Errorf("time: fraction %q exceeds nanosecond precision", frac)
		}
		for _, c := range frac {
			if c < '0' || c > '9' {
				return Time{}, fmt.Errorf("time: invalid fraction %q", frac)
			}
			nanos = nanos*10 + int(c-'0')
		}
		for i := len(frac); i < 9; i++ {
			nanos *= 10
		}
	}
	return NewTime(h, m, sec, nanos)
}

// TimeOf extracts the wall-clock time of t in its location.
func TimeOf(t time.Time) Time {
	return Time{hour: t.Hour(), min: t.Minute(), sec: t.Second(), nanos: t.Nanosecond()}
}

// Hour returns the hour (0-23).
func (t Time) Hour() int { return t.hour }

// Minute returns the minute (0-59).
func (t Time) Minute() int { return t.min }

// Second returns the second (0-59).
func (t Time) Second() int { return t.sec }

// Nanosecond returns the sub-second component in nanoseconds.
func (t Time) Nanosecond() int { return t.nanos }

// Equal reports component equality.
func (t Time) Equal(other Time) bool { return t == other }

// Compare orders times within a day: -1, 0, or +1.
func (t Time) Compare(other Time) int {
	a := [4]int{t.hour, t.min, t.sec, t.nanos}
	b := [4]int{other.hour, other.min, other.sec, other.nanos}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t Time) String() string {
	if t.nanos == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.hour, t.min, t.sec)
	}
	s := fmt.Sprintf("%02d:%02d:%02d.%09d", t.hour, t.min, t.sec, t.nanos)
	for len(s) > 9 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}

// Timestamp is an absolute instant. Collections carry it as
// {"$date": epochMillis}; tables as an RFC 3339 string.
type Timestamp struct {
	t time.Time
}

// NewTimestamp wraps a time.Time, normalizing to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC()}
}

// TimestampFromUnixMilli constructs a Timestamp from epoch milliseconds.
func TimestampFromUnixMilli(ms int64) Timestamp {
	return Timestamp{t: time.UnixMilli(ms).UTC()}
}

// ParseTimestamp parses an RFC 3339 instant.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp: %w", err)
	}
	return Timestamp{t: t.UTC()}, nil
}

// Time returns the instant as a time.Time in UTC.
func (ts Timestamp) Time() time.Time { return ts.t }

// UnixMilli returns epoch milliseconds, the collection wire form.
func (ts Timestamp) UnixMilli() int64 { return ts.t.UnixMilli() }

// Equal reports instant equality.
func (ts Timestamp) Equal(other Timestamp) bool { return ts.t.Equal(other.t) }

// Compare orders instants chronologically: -1, 0, or +1.
func (ts Timestamp) Compare(other Timestamp) int { return ts.t.Compare(other.t) }

func (ts Timestamp) String() string {
	return ts.t.Format(time.RFC3339Nano)
}
