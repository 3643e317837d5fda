// Package attendance builds check-in events and presence summaries.
package attendance

import (
	"math"
	"sort"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// NewEvent stamps a check-in for uid at now (local wall clock).
func NewEvent(uid int64, name string, now time.Time) database.AttendanceEvent {
	return database.AttendanceEvent{
		UID:       uid,
		Name:      name,
		Date:      now.Format(constants.DateLayout),
		Time:      now.Format(constants.TimeLayout),
		Timestamp: now,
	}
}

// Summary is the presence report for one identity.
type Summary struct {
	Dates       []string `json:"dates"`
	Percentage  float64  `json:"percentage"`
	DaysPresent int      `json:"days_present"`
}

// Summarize computes the share of periodDays covered by distinct dates, capped at 100%.
func Summarize(dates []string, periodDays int) Summary {
	if periodDays <= 0 {
		periodDays = constants.PresencePeriodDays
	}
	seen := make(map[string]struct{}, len(dates))
	unique := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}
	sort.Strings(unique)

	pct := min(float64(len(unique))/float64(periodDays)*100, 100)
	return Summary{
		Dates:       unique,
		Percentage:  round1(pct),
		DaysPresent: len(unique),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
