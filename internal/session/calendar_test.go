package session

import (
	"testing"
	"time"
)

func TestIsOpenAt(t *testing.T) {
	c, err := NewCalendar("America/New_York")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	ny, _ := time.LoadLocation("America/New_York")

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"mid-session weekday", time.Date(2025, 6, 4, 12, 0, 0, 0, ny), true},
		{"exact open", time.Date(2025, 6, 4, 9, 30, 0, 0, ny), true},
		{"just before open", time.Date(2025, 6, 4, 9, 29, 59, 0, ny), false},
		{"exact close", time.Date(2025, 6, 4, 16, 0, 0, 0, ny), false},
		{"just before close", time.Date(2025, 6, 4, 15, 59, 0, 0, ny), true},
		{"saturday", time.Date(2025, 6, 7, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2025, 6, 8, 12, 0, 0, 0, ny), false},
		{"weekday evening", time.Date(2025, 6, 4, 20, 0, 0, 0, ny), false},
		// UTC noon is 08:00 in New York during DST — pre-open.
		{"utc offset handled", time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsOpenAt(tt.at); got != tt.want {
				t.Fatalf("IsOpenAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNewCalendar_InvalidTimezone(t *testing.T) {
	if _, err := NewCalendar("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestIsOpen_UsesInjectedClock(t *testing.T) {
	c, _ := NewCalendar("America/New_York")
	ny, _ := time.LoadLocation("America/New_York")

	c.now = func() time.Time { return time.Date(2025, 6, 4, 10, 0, 0, 0, ny) }
	if !c.IsOpen() {
		t.Fatal("expected open during session")
	}

	c.now = func() time.Time { return time.Date(2025, 6, 4, 3, 0, 0, 0, ny) }
	if c.IsOpen() {
		t.Fatal("expected closed overnight")
	}
}
