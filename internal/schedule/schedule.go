// Package schedule evaluates recurrence rules against wall-clock time.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowMinutes is how long a reminder stays actionable after its trigger
// instant, so a patient who opens the app late is still caught up.
const WindowMinutes = 30

// Schedule is a recurrence rule: a set of weekday names plus a single
// time-of-day at minute resolution.
type Schedule struct {
	Days      []string `json:"days"`
	TimeOfDay string   `json:"time_of_day"` // HH:MM, 24-hour
}

// Evaluation is the result of checking a schedule against an instant.
type Evaluation struct {
	// InWindow is true when the instant falls inside the 0..30 minute
	// span after the scheduled time on a scheduled weekday.
	InWindow bool
	// ExactTrigger is true only on the exact scheduled minute. This is
	// the single instant per day eligible for an automated send.
	ExactTrigger bool
}

// Evaluate checks whether now is actionable for the schedule. Pure: no side
// effects, rounds to the minute internally, safe to call on every tick.
func Evaluate(s Schedule, now time.Time) Evaluation {
	if !containsDay(s.Days, now.Weekday().String()) {
		return Evaluation{}
	}

	schedMinutes, err := MinutesOfDay(s.TimeOfDay)
	if err != nil {
		return Evaluation{}
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	diff := nowMinutes - schedMinutes

	return Evaluation{
		InWindow:     diff >= 0 && diff <= WindowMinutes,
		ExactTrigger: diff == 0,
	}
}

// Validate reports whether the schedule is well-formed: a non-empty weekday
// set of real weekday names and a valid 24-hour HH:MM time.
func Validate(s Schedule) error {
	if len(s.Days) == 0 {
		return fmt.Errorf("schedule has no days")
	}
	for _, d := range s.Days {
		if !validDayName(d) {
			return fmt.Errorf("unknown weekday %q", d)
		}
	}
	if _, err := MinutesOfDay(s.TimeOfDay); err != nil {
		return err
	}
	return nil
}

// MinutesOfDay parses an HH:MM 24-hour time into minutes since midnight.
func MinutesOfDay(hhmm string) (int, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h*60 + m, nil
}

// Format12Hour renders an HH:MM 24-hour time as "H:MM AM/PM" for message
// content.
func Format12Hour(hhmm string) string {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return ""
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return ""
	}
	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
	}
	hour = hour % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%s %s", hour, parts[1], ampm)
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if strings.EqualFold(d, day) {
			return true
		}
	}
	return false
}

func validDayName(day string) bool {
	switch strings.ToLower(day) {
	case "sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday":
		return true
	}
	return false
}
