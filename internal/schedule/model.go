package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Day is one weekday entry of a doctor's recurring template. Times are
// "HH:MM" strings; break fields are empty when no break is set.
type Day struct {
	Available  bool   `json:"available"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	BreakStart string `json:"breakStart"`
	BreakEnd   string `json:"breakEnd"`
}

// Weekly is a doctor's full recurring template, keyed by lowercase
// weekday name ("monday" ... "sunday").
type Weekly map[string]Day

// DayNames lists weekday keys in display order, Monday first.
var DayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

var weekend = map[string]bool{"saturday": true, "sunday": true}

// DayNameOf maps a calendar date to its weekly template key.
func DayNameOf(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// Default returns the template assigned on doctor registration:
// weekdays 08:00-16:00, weekend off.
func Default() Weekly {
	w := make(Weekly, len(DayNames))
	for _, name := range DayNames {
		if weekend[name] {
			w[name] = Day{}
			continue
		}
		w[name] = Day{Available: true, StartTime: "08:00", EndTime: "16:00"}
	}
	return w
}

// Normalized returns a copy with every weekday present (missing days get
// defaults) and half-set break windows cleared. Stored templates from
// older clients may have either defect.
func (w Weekly) Normalized() Weekly {
	defaults := Default()
	out := make(Weekly, len(DayNames))
	for _, name := range DayNames {
		day, ok := w[name]
		if !ok {
			out[name] = defaults[name]
			continue
		}
		day.BreakStart = strings.TrimSpace(day.BreakStart)
		day.BreakEnd = strings.TrimSpace(day.BreakEnd)
		if (day.BreakStart == "") != (day.BreakEnd == "") {
			day.BreakStart = ""
			day.BreakEnd = ""
		}
		if !day.Available {
			day.StartTime = ""
			day.EndTime = ""
			day.BreakStart = ""
			day.BreakEnd = ""
		}
		out[name] = day
	}
	return out
}

// ValidationError describes the first rule violated by a weekly template.
type ValidationError struct {
	Day    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Day, e.Reason)
}

// Validate checks every weekday entry and returns the first violation
// found, walking days in Monday-first order.
func (w Weekly) Validate() error {
	for _, name := range DayNames {
		day, ok := w[name]
		if !ok {
			continue
		}
		if err := day.validate(); err != nil {
			err.Day = name
			return err
		}
	}
	return nil
}

func (d Day) validate() *ValidationError {
	if !d.Available {
		return nil
	}

	if strings.TrimSpace(d.StartTime) == "" {
		return &ValidationError{Reason: "Start time is required when the day is available"}
	}
	if strings.TrimSpace(d.EndTime) == "" {
		return &ValidationError{Reason: "End time is required when the day is available"}
	}

	start, err := ParseClock(d.StartTime)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("Start time %q is not a valid HH:MM time", d.StartTime)}
	}
	end, err := ParseClock(d.EndTime)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("End time %q is not a valid HH:MM time", d.EndTime)}
	}
	if start >= end {
		return &ValidationError{Reason: "Start time must be before end time"}
	}

	hasStart := strings.TrimSpace(d.BreakStart) != ""
	hasEnd := strings.TrimSpace(d.BreakEnd) != ""
	if hasStart != hasEnd {
		if hasStart {
			return &ValidationError{Reason: "Break end time is required when break start is set"}
		}
		return &ValidationError{Reason: "Break start time is required when break end is set"}
	}
	if !hasStart {
		return nil
	}

	breakStart, err := ParseClock(d.BreakStart)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("Break start %q is not a valid HH:MM time", d.BreakStart)}
	}
	breakEnd, err := ParseClock(d.BreakEnd)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("Break end %q is not a valid HH:MM time", d.BreakEnd)}
	}

	if breakStart < start {
		return &ValidationError{Reason: "Break start time cannot be before working hours start"}
	}
	if breakStart >= breakEnd {
		return &ValidationError{Reason: "Break start time must be before break end time"}
	}
	if breakEnd > end {
		return &ValidationError{Reason: "Break end time cannot be after working hours end"}
	}
	return nil
}

// Window returns the working window and optional break window of an
// available day in minutes since midnight. hasBreak is false when the
// day has no break set.
func (d Day) Window() (start, end int, hasBreak bool, breakStart, breakEnd int, err error) {
	start, err = ParseClock(d.StartTime)
	if err != nil {
		return 0, 0, false, 0, 0, err
	}
	end, err = ParseClock(d.EndTime)
	if err != nil {
		return 0, 0, false, 0, 0, err
	}

	if strings.TrimSpace(d.BreakStart) == "" || strings.TrimSpace(d.BreakEnd) == "" {
		return start, end, false, 0, 0, nil
	}

	breakStart, err = ParseClock(d.BreakStart)
	if err != nil {
		return 0, 0, false, 0, 0, err
	}
	breakEnd, err = ParseClock(d.BreakEnd)
	if err != nil {
		return 0, 0, false, 0, 0, err
	}
	return start, end, true, breakStart, breakEnd, nil
}
