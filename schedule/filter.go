/*
filter.go - "Upcoming" occurrence filtering

PURPOSE:
  Given a mixed list of one-off dated rows and recurrence-expanded
  occurrences, returns the subset that is still upcoming, for display.

CONTRACT:
  - "now" and "today" come from the fixed business timezone, never from
    the machine's local zone. A visitor's laptop in another country must
    see the same agenda as a local's phone.
  - One-off rows strictly after today are kept; rows before today are
    dropped; rows dated today are kept only if they have no start time or
    their start time has not yet passed in business time.
  - Recurrence-expanded occurrences are kept unconditionally: expansion
    only ever emits dates on/after today.
  - Sort is ascending by calendar date ONLY. Time-of-day is deliberately
    not a secondary key; within one date, input order is preserved.
*/
package schedule

import (
	"sort"
	"time"
)

// Upcoming filters and sorts occurrences for display. oneOff are rows read
// back from the store; recurring are ExpandWeekly results. The instant is
// converted into the business timezone before any comparison; tests pass a
// fixed instant for determinism.
func Upcoming(oneOff, recurring []Occurrence, instant time.Time) []Occurrence {
	now := BusinessNow(instant)
	today := BusinessToday(instant)
	clock := ClockTime{Hour: now.Hour(), Minute: now.Minute()}

	kept := make([]Occurrence, 0, len(oneOff)+len(recurring))
	for _, occ := range oneOff {
		if keepOneOff(occ, today, clock) {
			kept = append(kept, occ)
		}
	}
	kept = append(kept, recurring...)

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Date.Before(kept[j].Date)
	})
	return kept
}

func keepOneOff(occ Occurrence, today CivilDate, clock ClockTime) bool {
	switch {
	case occ.Date.After(today):
		return true
	case occ.Date.Before(today):
		return false
	}

	// Dated today: no start time (or an unparseable one read back from
	// the store) means the row is kept for the whole day.
	start, err := ParseClockTime(occ.StartTime)
	if err != nil {
		return true
	}
	return !start.Before(clock)
}
