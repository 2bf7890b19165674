// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"testing"
	"time"
)

func TestVectorBase64RoundTrip(t *testing.T) {
	v := NewVector([]float32{1, 0.5, -2.25, 3})

	enc := v.AsBase64()
	back, err := NewVectorFromBase64(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !v.Equal(back) {
		t.Errorf("round-trip mismatch: %v != %v", v.Components(), back.Components())
	}
	if back.Dimension() != 4 {
		t.Errorf("dimension: expected 4, got %d", back.Dimension())
	}
}

func TestVectorFromBase64Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"truncated floats", "AAAA"}, // 3 bytes decoded, not a multiple of 4
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVectorFromBase64(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestVectorImmutable(t *testing.T) {
	src := []float32{1, 2, 3}
	v := NewVector(src)
	src[0] = 99
	if v.Components()[0] != 1 {
		t.Error("vector shares storage with constructor argument")
	}

	comps := v.Components()
	comps[1] = 99
	if v.Components()[1] != 2 {
		t.Error("Components() leaks internal storage")
	}
}

func TestBlobForms(t *testing.T) {
	b := NewBlob([]byte{0xde, 0xad, 0xbe, 0xef})
	if b.AsBase64() != "3q2+7w==" {
		t.Errorf("unexpected base64: %s", b.AsBase64())
	}
	back, err := NewBlobFromBase64(b.AsBase64())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !b.Equal(back) {
		t.Error("base64 round-trip mismatch")
	}
	if b.Len() != 4 {
		t.Errorf("expected length 4, got %d", b.Len())
	}
}

func TestUUIDCaseInsensitiveEquality(t *testing.T) {
	lower, err := ParseUUID("018e5f4c-aaaa-7bbb-8ccc-0123456789ab")
	if err != nil {
		t.Fatalf("parse lower: %v", err)
	}
	upper, err := ParseUUID("018E5F4C-AAAA-7BBB-8CCC-0123456789AB")
	if err != nil {
		t.Fatalf("parse upper: %v", err)
	}
	if !lower.Equal(upper) {
		t.Error("case-differing hex forms should be equal")
	}
	if lower.String() != "018e5f4c-aaaa-7bbb-8ccc-0123456789ab" {
		t.Errorf("canonical form should be lowercase, got %s", lower.String())
	}
}

func TestUUIDVersions(t *testing.T) {
	v4 := NewUUIDv4()
	if v4.Version() != 4 {
		t.Errorf("expected version 4, got %d", v4.Version())
	}
	v7, err := NewUUIDv7()
	if err != nil {
		t.Fatalf("v7 generation: %v", err)
	}
	if v7.Version() != 7 {
		t.Errorf("expected version 7, got %d", v7.Version())
	}
}

func TestObjectIDTimestampAndUniqueness(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewObjectIDAt(at)
	b := NewObjectIDAt(at)

	if a.Equal(b) {
		t.Error("two generated ObjectIDs should differ")
	}
	if !a.Timestamp().Equal(at) {
		t.Errorf("timestamp: expected %v, got %v", at, a.Timestamp())
	}

	parsed, err := ParseObjectID(a.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(a) {
		t.Error("hex round-trip mismatch")
	}
}

func TestParseObjectIDInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "zzzzzzzzzzzzzzzzzzzzzzzz", "0123456789abcdef012345678"} {
		if _, err := ParseObjectID(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestDateValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "2000-01-01", false},
		{"leap day", "2024-02-29", false},
		{"non-leap feb 29", "2023-02-29", true},
		{"month 13", "2024-13-01", true},
		{"day 0", "2024-01-00", true},
		{"garbage", "not-a-date", true},
		{"truncated", "2024-01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.String() != tt.input {
				t.Errorf("round-trip: expected %q, got %q", tt.input, d.String())
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	a, _ := ParseDate("2000-01-01")
	b, _ := ParseDate("2000-01-02")
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("date ordering broken")
	}
}

func TestTimeParse(t *testing.T) {
	tm, err := ParseTime("13:45:30.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tm.Hour() != 13 || tm.Minute() != 45 || tm.Second() != 30 || tm.Nanosecond() != 500_000_000 {
		t.Errorf("unexpected components: %v", tm)
	}
	if tm.String() != "13:45:30.5" {
		t.Errorf("string form: got %q", tm.String())
	}

	for _, bad := range []string{"24:00:00", "12:60:00", "12:00:61", "12:00", "12:00:00.0000000001"} {
		if _, err := ParseTime(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestTimestampEpochMillis(t *testing.T) {
	ts := TimestampFromUnixMilli(946684800000) // 2000-01-01T00:00:00Z
	if ts.Time().Year() != 2000 {
		t.Errorf("expected year 2000, got %d", ts.Time().Year())
	}
	if ts.UnixMilli() != 946684800000 {
		t.Errorf("epoch millis round-trip: got %d", ts.UnixMilli())
	}
}

func TestDurationParseAndFormat(t *testing.T) {
	tests := []struct {
		input  string
		months int64
		days   int64
		nanos  int64
		neg    bool
		out    string
	}{
		{"P1Y2M3D", 14, 3, 0, false, "P1Y2M3D"},
		{"PT1H30M", 0, 0, 5400_000_000_000, false, "PT1H30M"},
		{"P2W", 0, 14, 0, false, "P14D"},
		{"-P1DT0.5S", 0, 1, 500_000_000, true, "-P1DT0.5S"},
		{"PT0S", 0, 0, 0, false, "PT0S"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if d.Months() != tt.months || d.Days() != tt.days || d.Nanoseconds() != tt.nanos || d.IsNegative() != tt.neg {
				t.Errorf("components: got (%d,%d,%d,neg=%v)", d.Months(), d.Days(), d.Nanoseconds(), d.IsNegative())
			}
			if d.String() != tt.out {
				t.Errorf("format: expected %q, got %q", tt.out, d.String())
			}
		})
	}

	for _, bad := range []string{"", "P", "1D", "P1X", "P1.5D", "--P1D"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDurationZeroSignEquality(t *testing.T) {
	pos, _ := ParseDuration("PT0S")
	neg, _ := ParseDuration("-P0D")
	if !pos.Equal(neg) {
		t.Error("zero durations should be equal regardless of sign")
	}
}

func TestInetAddress(t *testing.T) {
	v4, err := ParseInetAddress("192.168.1.1")
	if err != nil {
		t.Fatalf("parse v4: %v", err)
	}
	if !v4.IsV4() {
		t.Error("expected IPv4")
	}

	v6, err := ParseInetAddress("2001:db8::1")
	if err != nil {
		t.Fatalf("parse v6: %v", err)
	}
	if v6.IsV4() {
		t.Error("expected IPv6")
	}

	mapped, err := ParseInetAddress("::ffff:192.168.1.1")
	if err != nil {
		t.Fatalf("parse mapped: %v", err)
	}
	if !v4.Equal(mapped) {
		t.Error("4-in-6 mapped address should equal its IPv4 form")
	}

	for _, bad := range []string{"not-an-ip", "300.1.1.1", "fe80::1%eth0", "10.0.0.0/8"} {
		if _, err := ParseInetAddress(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestBigNumberPrecision(t *testing.T) {
	n, err := ParseBigNumber("123456789012345678901234567890.1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.String() != "123456789012345678901234567890.1" {
		t.Errorf("precision lost: %s", n.String())
	}
	if n.IsInteger() {
		t.Error("value has a fractional part")
	}
	if _, ok := n.Int64(); ok {
		t.Error("value should not fit an int64")
	}

	small := BigNumberFromInt(42)
	if got, ok := small.Int64(); !ok || got != 42 {
		t.Errorf("int64 round-trip: got %d, ok=%v", got, ok)
	}

	a, _ := ParseBigNumber("1.0")
	b, _ := ParseBigNumber("1.00")
	if !a.Equal(b) {
		t.Error("1.0 should equal 1.00 numerically")
	}
}
