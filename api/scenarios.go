/*
scenarios.go - Demo data seeds

PURPOSE:
  Loads small, self-contained demo datasets (an academy with weekly
  classes, a party organizer with saved venues) so the API can be
  exercised without a frontend. Dev convenience only.
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ritmo/agenda-engine/schedule"
)

// Seeder is the write-side of the read models, used only by scenarios.
type Seeder interface {
	PutProfile(ctx context.Context, p schedule.OrganizerProfile) error
	PutLocation(ctx context.Context, ownerID string, l schedule.SavedLocation) error
}

type ScenarioDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{Name: "academy", Description: "Dance academy with weekly salsa and bachata classes"},
	{Name: "organizer", Description: "Party organizer with two saved venues"},
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Seeder == nil {
		writeError(w, http.StatusNotImplemented, "Seeding not supported by this store", nil)
		return
	}
	name := r.URL.Query().Get("name")

	var err error
	switch name {
	case "academy":
		err = h.seedAcademy(r.Context())
	case "organizer":
		err = h.seedOrganizer(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loaded": name})
}

func (h *Handler) seedAcademy(ctx context.Context) error {
	return h.Seeder.PutProfile(ctx, schedule.OrganizerProfile{
		ID:        "academia-ritmo",
		Name:      "Academia Ritmo",
		Contact:   "+57 300 000 0000",
		City:      "Cali",
		RhythmIDs: []string{"salsa", "bachata"},
		ZoneIDs:   []string{"norte"},
		WeeklyRules: []schedule.RecurrenceRule{
			{Weekday: time.Tuesday, StartTime: "19:00", EndTime: "21:00"},
			{Weekday: time.Thursday, StartTime: "20:00", EndTime: "22:00"},
		},
	})
}

func (h *Handler) seedOrganizer(ctx context.Context) error {
	if err := h.Seeder.PutProfile(ctx, schedule.OrganizerProfile{
		ID:      "la-topa",
		Name:    "La Topa Tolondra",
		Contact: "contacto@latopa.co",
		City:    "Cali",
		ZoneIDs: []string{"centro"},
	}); err != nil {
		return err
	}
	locations := []schedule.SavedLocation{
		{ID: "loc-topa", Name: "La Topa", Address: "Calle 5 #13-27", City: "Cali", ZoneIDs: []string{"centro"}},
		{ID: "loc-malecon", Name: "Malecón", Address: "Av. Colombia", City: "Cali", ZoneIDs: []string{"oeste"}},
	}
	for _, l := range locations {
		if err := h.Seeder.PutLocation(ctx, "la-topa", l); err != nil {
			return err
		}
	}
	return nil
}
