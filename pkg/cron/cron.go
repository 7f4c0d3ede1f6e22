// Package cron implements the 5-field POSIX-style cron matching the
// scheduler ticks against: minute hour dayOfMonth month dayOfWeek, with
// support for *, values, ranges, lists and steps. dayOfWeek 0 = Sunday.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NextRunTime walks forward minute-by-minute; give up after this horizon.
const maxSearchDays = 366

type fieldRange struct {
	min int
	max int
}

var fieldRanges = [5]fieldRange{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week, 0 = Sunday
}

var fieldNames = [5]string{"minute", "hour", "dayOfMonth", "month", "dayOfWeek"}

// Schedule is a parsed cron expression.
type Schedule struct {
	fields [5]map[int]bool
}

// Parse parses a 5-field cron expression.
func Parse(expr string) (*Schedule, error) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(parts))
	}

	var schedule Schedule

	for i, part := range parts {
		values, err := parseField(part, fieldRanges[i])
		if err != nil {
			return nil, fmt.Errorf("invalid %s field %q: %w", fieldNames[i], part, err)
		}

		schedule.fields[i] = values
	}

	return &schedule, nil
}

// parseField expands one field into its matching value set. A field is a
// comma list of *, a-b, a, optionally with a /n step suffix.
func parseField(field string, bounds fieldRange) (map[int]bool, error) {
	values := make(map[int]bool)

	for _, part := range strings.Split(field, ",") {
		step := 1
		base := part

		if slash := strings.Index(part, "/"); slash >= 0 {
			base = part[:slash]

			parsed, err := strconv.Atoi(part[slash+1:])
			if err != nil || parsed <= 0 {
				return nil, fmt.Errorf("bad step %q", part[slash+1:])
			}

			step = parsed
		}

		low, high := bounds.min, bounds.max

		switch {
		case base == "*":
			// full range
		case strings.Contains(base, "-"):
			bits := strings.SplitN(base, "-", 2)

			var err error

			low, err = parseValue(bits[0], bounds)
			if err != nil {
				return nil, err
			}

			high, err = parseValue(bits[1], bounds)
			if err != nil {
				return nil, err
			}

			if low > high {
				return nil, fmt.Errorf("range %q is inverted", base)
			}
		default:
			value, err := parseValue(base, bounds)
			if err != nil {
				return nil, err
			}

			if step == 1 {
				values[value] = true

				continue
			}

			// "a/n" steps from a to the field maximum.
			low, high = value, bounds.max
		}

		for v := low; v <= high; v += step {
			values[v] = true
		}
	}

	return values, nil
}

func parseValue(s string, bounds fieldRange) (int, error) {
	value, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}

	if value < bounds.min || value > bounds.max {
		return 0, fmt.Errorf("value %d out of range %d-%d", value, bounds.min, bounds.max)
	}

	return value, nil
}

// Matches reports whether the schedule fires at the given instant,
// truncated to the minute. It is the conjunction across all five fields.
func (s *Schedule) Matches(t time.Time) bool {
	return s.fields[0][t.Minute()] &&
		s.fields[1][t.Hour()] &&
		s.fields[2][t.Day()] &&
		s.fields[3][int(t.Month())] &&
		s.fields[4][int(t.Weekday())]
}

// ShouldRun reports whether expr fires at now. Invalid expressions never
// fire.
func ShouldRun(expr string, now time.Time) bool {
	schedule, err := Parse(expr)
	if err != nil {
		return false
	}

	return schedule.Matches(now)
}

// NextRunTime returns the first minute strictly after from that matches
// expr, or nil when the expression is invalid or nothing matches within 366
// days.
func NextRunTime(expr string, from time.Time) *time.Time {
	schedule, err := Parse(expr)
	if err != nil {
		return nil
	}

	candidate := from.Truncate(time.Minute).Add(time.Minute)
	limit := from.Add(maxSearchDays * 24 * time.Hour)

	for !candidate.After(limit) {
		if schedule.Matches(candidate) {
			return &candidate
		}

		candidate = candidate.Add(time.Minute)
	}

	return nil
}
