package binance

import (
	"net/url"
	"testing"
	"time"
)

func TestKlineRowBar(t *testing.T) {
	row := klineRow{
		float64(1700000000000), "100.5", "101.2", "99.8", "100.9", "1234.5",
		float64(1700003599999), "x", "y", "z",
	}
	b, err := row.bar()
	if err != nil {
		t.Fatalf("bar: %v", err)
	}
	if b.OpenTime != 1700000000000 {
		t.Fatalf("open time: %d", b.OpenTime)
	}
	if b.Open != 100.5 || b.High != 101.2 || b.Low != 99.8 || b.Close != 100.9 || b.Volume != 1234.5 {
		t.Fatalf("ohlcv: %+v", b)
	}
}

func TestKlineRowBarMalformed(t *testing.T) {
	if _, err := (klineRow{float64(1), "1"}).bar(); err == nil {
		t.Fatalf("short row accepted")
	}
	if _, err := (klineRow{"not-a-number", "1", "1", "1", "1", "1"}).bar(); err == nil {
		t.Fatalf("non-numeric open time accepted")
	}
	if _, err := (klineRow{float64(1), "1", "1", "oops", "1", "1"}).bar(); err == nil {
		t.Fatalf("bad price string accepted")
	}
	if _, err := (klineRow{float64(1), "1", "1", 1.0, "1", "1"}).bar(); err == nil {
		t.Fatalf("non-string price field accepted")
	}
}

func TestSignDeterministic(t *testing.T) {
	c := New("https://fapi.binance.com", "key", "secret", time.Second)

	q := url.Values{}
	q.Set("symbol", "BTCUSDT")
	q.Set("timestamp", "1700000000000")

	first := c.sign(q)
	if len(first) != 64 {
		t.Fatalf("signature length: %d", len(first))
	}

	q2 := url.Values{}
	q2.Set("timestamp", "1700000000000")
	q2.Set("symbol", "BTCUSDT")
	if second := c.sign(q2); second != first {
		t.Fatalf("signature must not depend on insertion order: %s vs %s", first, second)
	}

	other := New("https://fapi.binance.com", "key", "other-secret", time.Second)
	if other.sign(q) == first {
		t.Fatalf("different secrets must not collide")
	}
}

func TestTrimSlash(t *testing.T) {
	if got := trimSlash("https://x/"); got != "https://x" {
		t.Fatalf("got %q", got)
	}
	if got := trimSlash("https://x"); got != "https://x" {
		t.Fatalf("got %q", got)
	}
	if got := trimSlash(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
