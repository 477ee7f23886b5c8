package cmd

import (
	"testing"
	"time"

	"github.com/ProhibitedTV/StreamPulse/internal/config"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		err   bool
	}{
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"5m", 5 * time.Minute, false},
		{"2h30m", 2*time.Hour + 30*time.Minute, false},
		{"90s", 90 * time.Second, false},
		{"invalid", 0, true},
		{"", 0, true},
		{"d", 0, true},
	}

	for _, tt := range tests {
		got, err := parseInterval(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("parseInterval(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseInterval(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInterval(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRefreshTicks(t *testing.T) {
	cfg := &config.Config{
		RotationInterval: "10s",
		RefreshMultiple:  30,
	}

	ticks, err := refreshTicks(cfg, "")
	if err != nil {
		t.Fatalf("refreshTicks: %v", err)
	}
	if ticks != 30 {
		t.Fatalf("ticks = %d, want 30 (5m of 10s rotations)", ticks)
	}

	ticks, err = refreshTicks(cfg, "1m")
	if err != nil {
		t.Fatalf("refreshTicks with override: %v", err)
	}
	if ticks != 6 {
		t.Fatalf("ticks = %d, want 6 with --refresh=1m", ticks)
	}

	if _, err := refreshTicks(cfg, "bogus"); err == nil {
		t.Fatal("expected error for bogus override")
	}

	// Refresh shorter than one rotation clamps to one tick.
	ticks, err = refreshTicks(cfg, "1s")
	if err != nil {
		t.Fatalf("refreshTicks with short override: %v", err)
	}
	if ticks != 1 {
		t.Fatalf("ticks = %d, want clamp to 1", ticks)
	}
}
