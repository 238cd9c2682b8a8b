// Package timecodec converts between operator-entered time strings and
// durations.
//
// Both a time of day ("07:30:00", shut down at half past seven) and a delay
// ("00:45:00", shut down in 45 minutes) are written as three integer fields
// separated by either ':' or '-'. Out-of-range fields are clamped rather than
// rejected: "25:00:00" means 23:00:00.
package timecodec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"autoshutdown/internal/types"
)

// Day is the length of one recurring-alarm period.
const Day = 24 * time.Hour

// Parse converts "H:M:S" or "H-M-S" into a duration. Hours are clamped to
// 0-23 and minutes/seconds to 0-59.
//
// The ':' separator is checked first, so an input mixing both separators
// splits on ':' only and fails the field count. Trailing empty fields are
// ignored ("1:2:3:" is 01:02:03). Whitespace is not trimmed and fails the
// integer parse.
func Parse(text string) (time.Duration, error) {
	var fields []string
	switch {
	case strings.Contains(text, ":"):
		fields = splitFields(text, ":")
	case strings.Contains(text, "-"):
		fields = splitFields(text, "-")
	}
	if len(fields) != 3 {
		return 0, invalidFormat(text, nil)
	}

	var parsed [3]int64
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return 0, invalidFormat(text, err)
		}
		parsed[i] = n
	}

	hour := clamp(parsed[0], 0, 23)
	minute := clamp(parsed[1], 0, 59)
	second := clamp(parsed[2], 0, 59)

	return time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second, nil
}

// splitFields splits text on sep and drops trailing empty fields.
func splitFields(text, sep string) []string {
	fields := strings.Split(text, sep)
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// FormatClock renders d as a zero-padded HH:MM:SS clock reading. Hours wrap
// at 24.
func FormatClock(d time.Duration) string {
	h, m, s := split(d)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatRelative renders d as a countdown such as "0h 4m 59s". Hours wrap at
// 24, so multi-day durations display their remainder only.
func FormatRelative(d time.Duration) string {
	h, m, s := split(d)
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

func split(d time.Duration) (hour, minute, second int64) {
	total := d.Milliseconds() / 1000
	second = total % 60
	minute = (total / 60) % 60
	hour = (total / 3600) % 24
	return hour, minute, second
}

func clamp(v, lo, hi int64) int64 {
	return min(max(v, lo), hi)
}

func invalidFormat(text string, err error) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationTimeFormat,
		"incorrect time format",
		err,
		map[string]any{"input": text},
	)
}
