package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock hour and minute in 24-hour form.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Reached reports whether t is at or after target on the same day. There is
// no day rollover: 00:01 has not reached 23:59.
func (t TimeOfDay) Reached(target TimeOfDay) bool {
	if t.Hour != target.Hour {
		return t.Hour > target.Hour
	}
	return t.Minute >= target.Minute
}

// TargetTime is now in zone plus minutesAhead, reduced to hour and minute.
func TargetTime(now time.Time, zone *time.Location, minutesAhead int) TimeOfDay {
	if zone != nil {
		now = now.In(zone)
	}
	t := now.Add(time.Duration(minutesAhead) * time.Minute)
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseDisplayedTime converts the text of the map's hour, minute and AM/PM
// elements to 24-hour form. The marker may be English or Chinese
// (上午/下午); an unrecognised marker leaves the hour as displayed.
func ParseDisplayedTime(hourText, minuteText, marker string) (TimeOfDay, error) {
	hourText = strings.TrimSpace(hourText)
	minuteText = strings.TrimSpace(minuteText)
	if hourText == "" || minuteText == "" {
		return TimeOfDay{}, fmt.Errorf("blank clock text (hour=%q minute=%q)", hourText, minuteText)
	}

	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse hour %q: %w", hourText, err)
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse minute %q: %w", minuteText, err)
	}

	hour = to24Hour(hour, marker)
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("clock out of range: %d:%d", hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func to24Hour(hour int, marker string) int {
	m := strings.ToUpper(strings.TrimSpace(marker))
	switch {
	case strings.Contains(m, "下午") || strings.Contains(m, "PM"):
		if hour < 12 {
			return hour + 12
		}
	case strings.Contains(m, "上午") || strings.Contains(m, "AM"):
		if hour == 12 {
			return 0
		}
	}
	return hour
}
