package attendance

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name        string
		dates       []string
		period      int
		wantPct     float64
		wantPresent int
	}{
		{"none", nil, 30, 0, 0},
		{"five days", []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05"}, 30, 16.7, 5},
		{"duplicates collapse", []string{"2026-03-01", "2026-03-01", "2026-03-02"}, 30, 6.7, 2},
		{"capped", manyDates(45), 30, 100, 45},
		{"zero period uses default", []string{"2026-03-01"}, 0, 3.3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.dates, tt.period)
			if s.Percentage != tt.wantPct {
				t.Errorf("Percentage = %v, want %v", s.Percentage, tt.wantPct)
			}
			if s.DaysPresent != tt.wantPresent {
				t.Errorf("DaysPresent = %d, want %d", s.DaysPresent, tt.wantPresent)
			}
			if len(s.Dates) != tt.wantPresent {
				t.Errorf("expected %d dates, got %d", tt.wantPresent, len(s.Dates))
			}
		})
	}
}

func TestSummarize_SortsDates(t *testing.T) {
	s := Summarize([]string{"2026-03-05", "2026-03-01"}, 30)
	if s.Dates[0] != "2026-03-01" {
		t.Errorf("expected ascending dates, got %v", s.Dates)
	}
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 9, 0, time.UTC)
	e := NewEvent(7, "Alice", now)
	if e.Date != "2026-03-02" || e.Time != "08:05:09" {
		t.Errorf("unexpected stamp %s %s", e.Date, e.Time)
	}
	if e.UID != 7 || e.Name != "Alice" || !e.Timestamp.Equal(now) {
		t.Errorf("unexpected event %+v", e)
	}
}

func manyDates(n int) []string {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := range n {
		out[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}
