package repository

import "testing"

func TestParseTimeframe(t *testing.T) {
	for _, s := range []string{"M1", "M30", "H1", "H12", "D1", "W1", "MN1"} {
		tf, ok := ParseTimeframe(s)
		if !ok {
			t.Fatalf("expected %q to parse", s)
		}
		if string(tf) != s {
			t.Fatalf("got %q, want %q", tf, s)
		}
	}
}

func TestParseTimeframeInvalid(t *testing.T) {
	for _, s := range []string{"", "m1", "M7", "H5", "1M", "D2"} {
		if _, ok := ParseTimeframe(s); ok {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}
