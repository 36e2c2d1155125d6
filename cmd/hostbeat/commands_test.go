package main

import (
	"testing"
	"time"
)

func TestParseEvery(t *testing.T) {
	cases := []struct {
		expr    string
		want    time.Duration
		wantErr bool
	}{
		{"@every 5m", 5 * time.Minute, false},
		{"  @every 30s  ", 30 * time.Second, false},
		{"@every 1h30m", 90 * time.Minute, false},
		{"@every -5m", 0, true},
		{"@every 0s", 0, true},
		{"@every soon", 0, true},
		{"*/5 * * * *", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := parseEvery(c.expr)
		if c.wantErr {
			if err == nil {
				t.Fatalf("parseEvery(%q): want error", c.expr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEvery(%q): %v", c.expr, err)
		}
		if got != c.want {
			t.Fatalf("parseEvery(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}
