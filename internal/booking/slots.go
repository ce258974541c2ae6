package booking

import (
	"time"

	"github.com/sehatclinic/booking-api/internal/schedule"
)

// Candidates derives the slot start times offered on a calendar date from
// one weekday entry of the doctor's template. The walk is strictly
// ascending from the day's start time in fixed slotDuration steps.
//
// A candidate t is dropped when:
//   - the slot would not end by closing time (t+duration > end),
//   - it starts inside the break window (breakStart <= t < breakEnd),
//   - the date is today and t <= now (no booking in the past, "now"
//     included to avoid races at slot boundaries).
//
// A date entirely before now's date yields no candidates. The result is
// deterministic for identical inputs, so it is recomputed per request
// rather than cached.
func Candidates(day schedule.Day, date time.Time, slotDuration time.Duration, now time.Time) []string {
	if !day.Available {
		return nil
	}

	step := int(slotDuration.Minutes())
	if step <= 0 {
		return nil
	}

	start, end, hasBreak, breakStart, breakEnd, err := day.Window()
	if err != nil {
		// A malformed stored template offers nothing rather than failing
		// the whole request; saving such a template is rejected upstream.
		return nil
	}

	today := schedule.SameDate(date, now)
	if !today && date.Before(now) {
		return nil
	}
	nowClock := schedule.ClockOf(now)

	var out []string
	for t := start; t+step <= end; t += step {
		if hasBreak && t >= breakStart && t < breakEnd {
			continue
		}
		if today && t <= nowClock {
			continue
		}
		out = append(out, schedule.FormatClock(t))
	}
	return out
}
