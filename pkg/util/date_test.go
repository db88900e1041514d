package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMilli(t *testing.T) {
	ms := time.Date(2024, 10, 10, 10, 10, 10, 5e8, time.UTC).UnixMilli()
	got, ok := ParseTime(strconv.FormatInt(ms, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != ms {
		t.Fatalf("unexpected unix ms %v", got.UnixMilli())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestFormatHeld(t *testing.T) {
	cases := map[time.Duration]string{
		-time.Second:                                 "0s",
		42 * time.Second:                             "42s",
		3*time.Minute + 4*time.Second:                "3m 4s",
		2*time.Hour + 3*time.Minute + 59*time.Second: "2h 3m",
		26*time.Hour + 5*time.Minute:                 "1d 2h 5m",
	}
	for d, want := range cases {
		if got := FormatHeld(d); got != want {
			t.Fatalf("FormatHeld(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestParseFloat(t *testing.T) {
	v, ok := ParseFloat(" 64123.50000000")
	if !ok || v != 64123.5 {
		t.Fatalf("unexpected %v %v", v, ok)
	}
	if _, ok := ParseFloat("abc"); ok {
		t.Fatalf("expected failure")
	}
}
