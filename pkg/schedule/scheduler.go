package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field form (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNextRun resolves a schedule to its next fire time in unix
// milliseconds, validating the fields its kind requires.
func CalculateNextRun(schedule Schedule) (int64, error) {
	switch schedule.Kind {
	case KindAt:
		if schedule.At == "" {
			return 0, fmt.Errorf("'at' schedule requires 'at' field")
		}
		t, err := time.Parse(time.RFC3339, schedule.At)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp: %w", err)
		}
		return t.UnixMilli(), nil

	case KindEvery:
		if schedule.EveryMs <= 0 {
			return 0, fmt.Errorf("'every' schedule requires positive 'everyMs' value")
		}
		return nextInterval(schedule.EveryMs, schedule.AnchorMs), nil

	case KindCron:
		if schedule.Expr == "" {
			return 0, fmt.Errorf("'cron' schedule requires 'expr' field")
		}
		sched, err := cronParser.Parse(schedule.Expr)
		if err != nil {
			return 0, fmt.Errorf("invalid cron expression: %w", err)
		}
		now := time.Now()
		if schedule.TZ != "" {
			loc, err := time.LoadLocation(schedule.TZ)
			if err != nil {
				return 0, fmt.Errorf("invalid timezone: %w", err)
			}
			now = now.In(loc)
		}
		return sched.Next(now).UnixMilli(), nil

	default:
		return 0, fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
}

// nextInterval aligns to the anchor grid when an anchor is set. A future
// anchor is itself the next run; a past anchor advances whole periods until
// the result is after now. Without an anchor the next run is one interval
// from now.
func nextInterval(everyMs int64, anchorMs *int64) int64 {
	now := time.Now().UnixMilli()

	if anchorMs == nil {
		return now + everyMs
	}

	anchor := *anchorMs
	if anchor > now {
		return anchor
	}

	periods := (now - anchor) / everyMs
	return anchor + (periods+1)*everyMs
}
