/*
recurrence.go - Weekly recurrence expansion

PURPOSE:
  Turns a (weekday, time) rule into N concrete future occurrence dates.
  Expansion is pure and synchronous: given the same "now" it always yields
  the same dates, so callers can recompute it on every read.

POLICY:
  When today's weekday already matches the rule, occurrence 0 IS today,
  even if the rule's start time has already elapsed. The upcoming filter
  (filter.go) is the single authority for same-day time-of-day exclusion;
  expansion never second-guesses it.
*/
package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultOccurrenceCount is how many future occurrences a weekly rule is
// expanded into for display.
const DefaultOccurrenceCount = 8

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ExpandWeekly expands a weekly rule into count occurrences, 7 days apart,
// starting at the earliest date on or after "today" (business timezone)
// whose weekday matches the rule. sourceID tags each occurrence with the
// record the rule came from.
func ExpandWeekly(rule RecurrenceRule, sourceID string, count int, now time.Time) ([]Occurrence, error) {
	if rule.Weekday < time.Sunday || rule.Weekday > time.Saturday {
		return nil, fmt.Errorf("invalid weekday %d", rule.Weekday)
	}
	if count <= 0 {
		return nil, nil
	}

	// Anchor at 00:00 today in the business zone so that a matching
	// weekday yields today as occurrence 0 regardless of time-of-day.
	today := BusinessToday(now)
	anchor := time.Date(today.Year, today.Month, today.Day, 0, 0, 0, 0, BusinessZone())

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Count:     count,
		Byweekday: []rrule.Weekday{rruleWeekdays[rule.Weekday]},
		Dtstart:   anchor,
	})
	if err != nil {
		return nil, fmt.Errorf("build weekly rule: %w", err)
	}

	times := r.All()
	occurrences := make([]Occurrence, 0, len(times))
	for i, t := range times {
		occurrences = append(occurrences, Occurrence{
			SourceID:        sourceID,
			Date:            NewCivilDate(t.Year(), t.Month(), t.Day()),
			StartTime:       rule.StartTime,
			EndTime:         rule.EndTime,
			IsRecurring:     true,
			RecurrenceIndex: i,
		})
	}
	return occurrences, nil
}
