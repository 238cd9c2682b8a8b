// Package scheduler computes the shutdown deadline and enforces it.
//
// A deadline comes from two sources: a recurring daily alarm at a fixed
// time-of-day, and a one-shot delay measured from the moment it was last
// configured. The earliest enabled source wins. The ShutdownController
// re-evaluates the deadline on every host tick, emits staged warnings, and
// stops the host once the deadline passes.
package scheduler

import (
	"time"

	"autoshutdown/internal/timecodec"
)

// Align moves referenceMidnight by whole days until referenceMidnight+offset
// is the next occurrence strictly after now and no more than one day ahead.
//
// The returned reference satisfies now < ref+offset <= now+24h. Calling Align
// again with the same now returns the same reference.
func Align(referenceMidnight time.Time, offset time.Duration, now time.Time) time.Time {
	ref := referenceMidnight
	for !ref.Add(offset).After(now) {
		ref = ref.Add(timecodec.Day)
	}
	for ref.Add(offset).After(now.Add(timecodec.Day)) {
		ref = ref.Add(-timecodec.Day)
	}
	return ref
}

// LocalMidnight returns the start of the calendar day containing now, in
// now's location.
func LocalMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
