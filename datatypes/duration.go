// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"fmt"
	"strings"
)

// Duration is a calendar-aware span of time matching the Data API's duration
// columns: months, days, and sub-day nanoseconds are tracked separately
// because a month has no fixed length.
//
// The wire form is ISO 8601 ("P1Y2M3DT4H5M6.007S"), with an optional leading
// sign applying to every component.
type Duration struct {
	negative bool
	months   int64
	days     int64
	nanos    int64
}

// NewDuration constructs a Duration from components. All components must share
// the same sign; pass them non-negative with negative=true for a negative span.
func NewDuration(negative bool, months, days, nanos int64) (Duration, error) {
	if months < 0 || days < 0 || nanos < 0 {
		return Duration{}, fmt.Errorf("duration: components must be non-negative (use the negative flag)")
	}
	return Duration{negative: negative, months: months, days: days, nanos: nanos}, nil
}

// ParseDuration parses the ISO 8601 duration form. Years fold into months
// (1Y = 12M) and weeks into days (1W = 7D); hours, minutes, and fractional
// seconds fold into nanoseconds.
func ParseDuration(s string) (Duration, error) {
	orig := s
	var d Duration
	if strings.HasPrefix(s, "-") {
		d.negative = true
		s = s[1:]
	}
	if len(s) < 2 || s[0] != 'P' {
		return Duration{}, fmt.Errorf("duration: invalid form %q", orig)
	}
	s = s[1:]

	inTime := false
	seen := false
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime {
				return Duration{}, fmt.Errorf("duration: duplicate T in %q", orig)
			}
			inTime = true
			s = s[1:]
			continue
		}
		num, frac, rest, err := scanDurationNumber(s)
		if err != nil {
			return Duration{}, fmt.Errorf("duration: %v in %q", err, orig)
		}
		if len(rest) == 0 {
			return Duration{}, fmt.Errorf("duration: missing unit in %q", orig)
		}
		unit, rest := rest[0], rest[1:]
		if frac != 0 && unit != 'S' {
			return Duration{}, fmt.Errorf("duration: fractional %c component in %q", unit, orig)
		}
		switch {
		case !inTime && unit == 'Y':
			d.months += num * 12
		case !inTime && unit == 'M':
			d.months += num
		case !inTime && unit == 'W':
			d.days += num * 7
		case !inTime && unit == 'D':
			d.days += num
		case inTime && unit == 'H':
			d.nanos += num * int64(3600_000_000_000)
		case inTime && unit == 'M':
			d.nanos += num * int64(60_000_000_000)
		case inTime && unit == 'S':
			d.nanos += num*int64(1_000_000_000) + frac
		default:
			return Duration{}, fmt.Errorf("duration: unexpected unit %c in %q", unit, orig)
		}
		seen = true
		s = rest
	}
	if !seen {
		return Duration{}, fmt.Errorf("duration: empty form %q", orig)
	}
	return d, nil
}

// scanDurationNumber reads an unsigned integer with an optional fractional
// part, returning the integer, the fraction scaled to nanoseconds, and the rest.
func scanDurationNumber(s string) (num, fracNanos int64, rest string, err error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		num = num*10 + int64(s[i]-'0')
		i++
	}
	if i == 0 {
		return 0, 0, "", fmt.Errorf("expected digit, got %q", s)
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			fracNanos = fracNanos*10 + int64(s[i]-'0')
			i++
		}
		digits := i - start
		if digits == 0 || digits > 9 {
			return 0, 0, "", fmt.Errorf("invalid fraction")
		}
		for ; digits < 9; digits++ {
			fracNanos *= 10
		}
	}
	return num, fracNanos, s[i:], nil
}

// Months returns the month component.
func (d Duration) Months() int64 { return d.months }

// Days returns the day component.
func (d Duration) Days() int64 { return d.days }

// Nanoseconds returns the sub-day component in nanoseconds.
func (d Duration) Nanoseconds() int64 { return d.nanos }

// IsNegative reports whether the span points backwards in time.
func (d Duration) IsNegative() bool { return d.negative }

// IsZero reports whether every component is zero.
func (d Duration) IsZero() bool {
	return d.months == 0 && d.days == 0 && d.nanos == 0
}

// Equal reports component equality. Zero durations compare equal regardless
// of sign.
func (d Duration) Equal(other Duration) bool {
	if d.IsZero() && other.IsZero() {
		return true
	}
	return d == other
}

// Compare orders durations by (months, days, nanos), negatives first.
// Month-vs-day comparison is positional, not calendar-resolved.
func (d Duration) Compare(other Duration) int {
	sa, sb := d.sign(), other.sign()
	if sa != sb {
		if sa < sb {
			return -1
		}
		return 1
	}
	a := [3]int64{d.months, d.days, d.nanos}
	b := [3]int64{other.months, other.days, other.nanos}
	for i := range a {
		if a[i] != b[i] {
			less := a[i] < b[i]
			if sa < 0 {
				less = !less
			}
			if less {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (d Duration) sign() int {
	if d.IsZero() {
		return 0
	}
	if d.negative {
		return -1
	}
	return 1
}

// String renders the ISO 8601 form, "PT0S" for zero.
func (d Duration) String() string {
	if d.IsZero() {
		return "PT0S"
	}
	var b strings.Builder
	if d.negative {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if y := d.months / 12; y > 0 {
		fmt.Fprintf(&b, "%dY", y)
	}
	if m := d.months % 12; m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if d.days > 0 {
		fmt.Fprintf(&b, "%dD", d.days)
	}
	if d.nanos > 0 {
		b.WriteByte('T')
		n := d.nanos
		if h := n / 3600_000_000_000; h > 0 {
			fmt.Fprintf(&b, "%dH", h)
			n %= 3600_000_000_000
		}
		if m := n / 60_000_000_000; m > 0 {
			fmt.Fprintf(&b, "%dM", m)
			n %= 60_000_000_000
		}
		if n > 0 {
			sec, frac := n/1_000_000_000, n%1_000_000_000
			if frac == 0 {
				fmt.Fprintf(&b, "%dS", sec)
			} else {
				fs := fmt.Sprintf("%09d", frac)
				fs = strings.TrimRight(fs, "0")
				fmt.Fprintf(&b, "%d.%sS", sec, fs)
			}
		}
	}
	return b.String()
}
