package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gameaday/ia-helper-sub003/internal/schedule"
)

const startAtLayout = "2006-01-02 15:04"

// parseStartAt validates and parses a --start-at value.
func parseStartAt(value string) (time.Time, error) {
	t, err := time.ParseInLocation(startAtLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("error: invalid --start-at format, expected YYYY-MM-DD HH:MM")
	}
	return t, nil
}

// parseStartIn validates a --start-in duration and returns the
// resolved absolute time. Go duration syntax applies, so "2h", "30m"
// and "1h30m" are all valid.
func parseStartIn(value string) (time.Time, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("error: invalid --start-in duration, expected format like 2h, 30m or 1h30m")
	}
	return time.Now().Add(d), nil
}

// validateCron checks a --cron expression. Exactly 5 fields are
// required; gronx alone would also accept the 6-field variant with
// seconds.
func validateCron(expr string) error {
	if len(strings.Fields(expr)) != 5 || !schedule.ValidCronExpr(expr) {
		return fmt.Errorf("error: invalid cron expression %q, expected 5-field format (minute hour day-of-month month day-of-week)", expr)
	}
	return nil
}

// resolveSchedule turns the scheduling flags into one absolute start
// time. At most one of the three flags may be set; the zero time means
// start immediately.
func resolveSchedule(startAt, startIn, cronExpr string) (time.Time, error) {
	set := 0
	for _, v := range []string{startAt, startIn, cronExpr} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return time.Time{}, fmt.Errorf("error: flags --start-at, --start-in and --cron are mutually exclusive")
	}
	switch {
	case startAt != "":
		return parseStartAt(startAt)
	case startIn != "":
		return parseStartIn(startIn)
	case cronExpr != "":
		if err := validateCron(cronExpr); err != nil {
			return time.Time{}, err
		}
		return schedule.NextCronOccurrence(cronExpr, time.Now())
	}
	return time.Time{}, nil
}
