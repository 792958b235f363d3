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

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	to := time.Date(2024, 10, 10, 22, 50, 0, 0, time.UTC)

	f, tt := AlignFromTo(from, to, "4h")
	if f != time.Date(2024, 10, 10, 8, 0, 0, 0, time.UTC) {
		t.Fatalf("from not aligned: %v", f)
	}
	if tt != time.Date(2024, 10, 10, 20, 0, 0, 0, time.UTC) {
		t.Fatalf("to not aligned: %v", tt)
	}

	f, tt = AlignFromTo(from, to, "1h")
	if f != time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC) || tt != time.Date(2024, 10, 10, 22, 0, 0, 0, time.UTC) {
		t.Fatalf("1h alignment: %v %v", f, tt)
	}
}
