// Package ratelimit implements the rate-limit accountant: deterministic
// UTC time windows, applicable-bucket resolution, pre-call eligibility
// evaluation, and post-call consumption.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/tributary-ai/llm-router/internal/config"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = int64(60 * 1000)
	msPerHour   = int64(60 * 60 * 1000)
	msPerDay    = int64(24 * 60 * 60 * 1000)
	msPerWeek   = int64(7 * 24 * 60 * 60 * 1000)
)

// weekAnchorMs is 1970-01-05T00:00:00Z, a Monday.
var weekAnchorMs = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC).UnixMilli()

// Window is a resolved, deterministic UTC interval.
type Window struct {
	StartsAt int64 // ms since epoch, inclusive
	EndsAt   int64 // ms since epoch, exclusive
	Key      string
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ResolveWindowRange computes the deterministic window containing nowMs for
// the given unit/size.
func ResolveWindowRange(w config.RateLimitWindow, nowMs int64) (Window, error) {
	size := int64(w.Size)
	if size <= 0 {
		size = 1
	}
	switch w.Unit {
	case "second", "minute", "hour", "day":
		unitMs := map[string]int64{
			"second": msPerSecond,
			"minute": msPerMinute,
			"hour":   msPerHour,
			"day":    msPerDay,
		}[w.Unit]
		span := unitMs * size
		startsAt := floorDiv(nowMs, span) * span
		endsAt := startsAt + span
		return Window{StartsAt: startsAt, EndsAt: endsAt, Key: fixedWindowKey(w.Unit, w.Size, startsAt)}, nil
	case "week":
		startOfWeekMs := startOfISOWeekMs(nowMs)
		weeksFromAnchor := floorDiv(startOfWeekMs-weekAnchorMs, msPerWeek)
		groupedIndex := floorDiv(weeksFromAnchor, size) * size
		startsAt := weekAnchorMs + groupedIndex*msPerWeek
		endsAt := startsAt + size*msPerWeek
		return Window{StartsAt: startsAt, EndsAt: endsAt, Key: fmt.Sprintf("week:%d:%s", w.Size, dateLabel(startsAt))}, nil
	case "month":
		t := time.UnixMilli(nowMs).UTC()
		idx := int64(t.Year())*12 + int64(t.Month()) - 1
		groupedIdx := floorDiv(idx, size) * size
		startsAt := monthStartMs(groupedIdx)
		endsAt := monthStartMs(groupedIdx + size)
		return Window{StartsAt: startsAt, EndsAt: endsAt, Key: fmt.Sprintf("month:%d:%s", w.Size, monthLabel(startsAt))}, nil
	default:
		return Window{}, fmt.Errorf("ratelimit: unknown window unit %q", w.Unit)
	}
}

func fixedWindowKey(unit string, size int, startsAtMs int64) string {
	switch unit {
	case "second":
		return fmt.Sprintf("second:%d:%s", size, secondLabel(startsAtMs))
	case "minute":
		return fmt.Sprintf("minute:%d:%s", size, minuteLabel(startsAtMs))
	case "hour":
		return fmt.Sprintf("hour:%d:%s", size, hourLabel(startsAtMs))
	case "day":
		return fmt.Sprintf("day:%d:%s", size, dateLabel(startsAtMs))
	}
	return fmt.Sprintf("%s:%d:%d", unit, size, startsAtMs)
}

func secondLabel(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05Z")
}

func minuteLabel(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04Z")
}

func hourLabel(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:00Z")
}

func dateLabel(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

func monthLabel(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01")
}

// startOfISOWeekMs returns the Monday 00:00:00Z at or before nowMs.
func startOfISOWeekMs(nowMs int64) int64 {
	t := time.UnixMilli(nowMs).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// time.Weekday: Sunday=0 ... Saturday=6. ISO weekday: Monday=1 ... Sunday=7.
	wd := int(midnight.Weekday())
	isoWd := wd
	if isoWd == 0 {
		isoWd = 7
	}
	monday := midnight.AddDate(0, 0, -(isoWd - 1))
	return monday.UnixMilli()
}

// monthStartMs maps a zero-based (year*12+month0) index back to a UTC instant.
func monthStartMs(idx int64) int64 {
	year := floorDiv(idx, 12)
	month := idx - year*12 // 0-based, 0..11
	return time.Date(int(year), time.Month(month+1), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}
