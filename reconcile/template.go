/*
template.go - Shared batch template and field resolution

PURPOSE:
  The row-independent half of every payload: contact info, venue, zones,
  cronogram and cost table. At submit time the template is merged with
  each selected row's date and time window.

FIELD RESOLUTION ORDER:
  explicit per-row value -> manually entered shared value -> value copied
  from the selected saved location. Venue fields (place/address/city/zones)
  have no per-row form, so for them the order collapses to manual-or-location.
*/
package reconcile

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/ritmo/agenda-engine/schedule"
)

// CronogramEntry describes one segment of the evening (class, social...).
type CronogramEntry struct {
	Label     string `json:"label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
}

// CostEntry is one line of the cost table. Amounts are decimal so ticket
// prices never pick up float noise.
type CostEntry struct {
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Template carries the shared, row-independent fields of a batch.
type Template struct {
	ParentID string
	Name     string
	Contact  string

	// Manually entered venue fields. Empty fields fall back to Location.
	Place   string
	Address string
	City    string
	ZoneIDs []string

	// Location is the chosen saved location, or nil.
	Location *schedule.SavedLocation

	Cronogram []CronogramEntry
	Costs     []CostEntry

	// GeneralFlyerURL, when set, is applied identically to every payload.
	GeneralFlyerURL string
}

// ResolvedPlace returns (place, address, city, zoneIDs) after applying the
// resolution order.
func (t Template) ResolvedPlace() (string, string, string, []string) {
	place, address, city, zones := t.Place, t.Address, t.City, t.ZoneIDs
	if t.Location != nil {
		if place == "" {
			place = t.Location.Name
		}
		if address == "" {
			address = t.Location.Address
		}
		if city == "" {
			city = t.Location.City
		}
		if len(zones) == 0 {
			zones = t.Location.ZoneIDs
		}
	}
	return place, address, city, zones
}

// BuildPayload merges the template with one staged row. Every row is
// created as a draft regardless of its own publication state: nothing
// becomes publicly visible before the organizer verifies the batch.
func (t Template) BuildPayload(row schedule.StagedRow, defaultStart, defaultEnd string) schedule.DatePayload {
	place, address, city, zones := t.ResolvedPlace()

	start := row.StartTime
	if start == "" {
		start = defaultStart
	}
	end := row.EndTime
	if end == "" {
		end = defaultEnd
	}

	return schedule.DatePayload{
		ParentID:      t.ParentID,
		Date:          row.Date,
		StartTime:     start,
		EndTime:       end,
		Place:         place,
		Address:       address,
		City:          city,
		ZoneIDs:       zones,
		Contact:       t.Contact,
		Notes:         row.Notes,
		CronogramJSON: marshalOrEmpty(t.Cronogram),
		CostsJSON:     marshalOrEmpty(t.Costs),
		FlyerURL:      t.GeneralFlyerURL,
		Publication:   schedule.PublicationDraft,
	}
}

func marshalOrEmpty(v any) string {
	switch x := v.(type) {
	case []CronogramEntry:
		if len(x) == 0 {
			return ""
		}
	case []CostEntry:
		if len(x) == 0 {
			return ""
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
