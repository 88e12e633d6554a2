package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"terrasync/internal/model"
)

// manualHorizon pushes manual-only schedules far enough out that the due
// query never picks them up.
const manualHorizon = 100 * 365 * 24 * time.Hour

// ParseClock splits an "HH:MM" string into its hour and minute.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", clock)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}

	return hour, minute, nil
}

// NextRun computes when a schedule is next due, strictly after now.
func NextRun(s *model.SyncSchedule, now time.Time) time.Time {
	hour, minute, err := ParseClock(s.Time)
	if err != nil {
		hour, minute = 0, 0
	}

	switch s.Frequency {
	case model.FrequencyManual:
		return now.Add(manualHorizon)

	case model.FrequencyHourly:
		next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, now.Location())
		if now.Minute() >= minute {
			next = next.Add(time.Hour)
		}
		return next

	case model.FrequencyDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case model.FrequencyWeekly:
		days := (s.DayOfWeek - int(now.Weekday()) + 7) % 7
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).
			AddDate(0, 0, days)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case model.FrequencyMonthly:
		next := monthlyAt(now.Year(), now.Month(), s.DayOfMonth, hour, minute, now.Location())
		if !next.After(now) {
			year, month := now.Year(), now.Month()+1
			next = monthlyAt(year, month, s.DayOfMonth, hour, minute, now.Location())
		}
		return next

	default:
		return now.Add(manualHorizon)
	}
}

// monthlyAt places day-of-month within the intended month, clamping to its
// last day instead of overflowing into the next one.
func monthlyAt(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}
