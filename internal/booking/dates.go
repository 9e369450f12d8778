package booking

import (
	"fmt"
	"sync"
	"time"
)

// All date arithmetic ("today", selectable dates) happens in one fixed
// civil timezone, regardless of user or server locale.
const TimezoneName = "Asia/Singapore"

const isoDateLayout = "2006-01-02"

// DateWindowDays is how many calendar dates are offered for selection:
// today plus the next eight days.
const DateWindowDays = 9

var (
	tzOnce sync.Once
	tz     *time.Location
)

// Timezone returns the fixed target timezone. Falls back to UTC only
// if the IANA database is unavailable.
func Timezone() *time.Location {
	tzOnce.Do(func() {
		loc, err := time.LoadLocation(TimezoneName)
		if err != nil {
			loc = time.UTC
		}
		tz = loc
	})
	return tz
}

// UpcomingDates returns the selectable dates (today..+8 inclusive) as
// midnight timestamps in the target timezone.
func UpcomingDates(now time.Time) []time.Time {
	local := now.In(Timezone())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Timezone())
	out := make([]time.Time, 0, DateWindowDays)
	for i := 0; i < DateWindowDays; i++ {
		out = append(out, day.AddDate(0, 0, i))
	}
	return out
}

// FormatISODate renders a timestamp as YYYY-MM-DD in the target timezone.
func FormatISODate(t time.Time) string {
	return t.In(Timezone()).Format(isoDateLayout)
}

// ValidISODate reports whether s is a well-formed YYYY-MM-DD date.
func ValidISODate(s string) bool {
	_, err := time.Parse(isoDateLayout, s)
	return err == nil && len(s) == len(isoDateLayout)
}

// CompleteDate recomposes a short "MM-DD" date (as carried in callback
// payloads, which must stay small) into a full ISO date using the
// current year in the target timezone.
func CompleteDate(monthDay string, now time.Time) (string, error) {
	iso := fmt.Sprintf("%d-%s", now.In(Timezone()).Year(), monthDay)
	if !ValidISODate(iso) {
		return "", fmt.Errorf("invalid month-day %q", monthDay)
	}
	return iso, nil
}
