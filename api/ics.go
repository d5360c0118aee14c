/*
ics.go - iCalendar feed of upcoming occurrences

PURPOSE:
  Serves the same upcoming list as /occurrences in iCalendar form so
  dancers can subscribe from their calendar app. Times are emitted in the
  business timezone; an occurrence whose end time is earlier than its
  start time spans into the next day (overnight social).
*/
package api

import (
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/go-chi/chi/v5"

	"github.com/ritmo/agenda-engine/schedule"
)

const icsEventDuration = 2 * time.Hour // fallback when no end time is set

func (h *Handler) OccurrencesICS(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "id")
	occurrences, err := h.upcoming(r, parentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load occurrences", err)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//ritmo//agenda-engine//ES")

	now := h.now()
	for i, occ := range occurrences {
		uid := fmt.Sprintf("%s-%s-%d@agenda", occ.SourceID, occ.Date, i)
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now)
		ev.SetSummary(occ.SourceID)

		start, err := schedule.ParseClockTime(occ.StartTime)
		if err != nil {
			// No usable start time: emit as an all-day entry.
			ev.SetAllDayStartAt(civilAt(occ.Date, schedule.ClockTime{}))
			continue
		}

		startAt := civilAt(occ.Date, start)
		ev.SetStartAt(startAt)

		if end, err := schedule.ParseClockTime(occ.EndTime); err == nil {
			endDate := occ.Date
			if end.Before(start) {
				endDate = endDate.AddDays(1)
			}
			ev.SetEndAt(civilAt(endDate, end))
		} else {
			ev.SetEndAt(startAt.Add(icsEventDuration))
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", parentID+".ics"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, cal.Serialize())
}

// civilAt pins a date + wall-clock time into the business timezone.
func civilAt(d schedule.CivilDate, c schedule.ClockTime) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, schedule.BusinessZone())
}
