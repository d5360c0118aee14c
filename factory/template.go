/*
Package factory converts client-supplied JSON batch templates into domain
templates.

PURPOSE:
  The API accepts the shared half of a batch (contact, venue, cronogram,
  cost table, chosen saved location) as JSON. This package validates that
  JSON, parses cost amounts into decimals, resolves the saved location
  through the read model, and hands back a reconcile.Template.

SEE ALSO:
  - reconcile/template.go: the resulting domain type and its merge rules
*/
package factory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ritmo/agenda-engine/reconcile"
	"github.com/ritmo/agenda-engine/schedule"
)

// =============================================================================
// JSON SHAPE
// =============================================================================

type CronogramJSON struct {
	Label     string `json:"label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
}

type CostJSON struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// TemplateJSON is the wire form of the shared batch template.
type TemplateJSON struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`

	Place   string   `json:"place,omitempty"`
	Address string   `json:"address,omitempty"`
	City    string   `json:"city,omitempty"`
	ZoneIDs []string `json:"zone_ids,omitempty"`

	// LocationID selects a saved location; empty means manual entry only.
	LocationID string `json:"location_id,omitempty"`

	Cronogram []CronogramJSON `json:"cronogram,omitempty"`
	Costs     []CostJSON      `json:"costs,omitempty"`

	GeneralFlyerURL string `json:"general_flyer_url,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

type TemplateFactory struct {
	profiles  schedule.ProfileStore
	locations schedule.LocationStore
}

func NewTemplateFactory(profiles schedule.ProfileStore, locations schedule.LocationStore) *TemplateFactory {
	return &TemplateFactory{profiles: profiles, locations: locations}
}

// Build validates and converts a TemplateJSON for the given parent. The
// organizer profile supplies contact and zone defaults where the template
// leaves them blank.
func (f *TemplateFactory) Build(ctx context.Context, parentID string, in TemplateJSON) (reconcile.Template, error) {
	tpl := reconcile.Template{
		ParentID:        parentID,
		Name:            in.Name,
		Contact:         in.Contact,
		Place:           in.Place,
		Address:         in.Address,
		City:            in.City,
		ZoneIDs:         in.ZoneIDs,
		GeneralFlyerURL: in.GeneralFlyerURL,
	}

	profile, err := f.profiles.GetProfile(ctx, parentID)
	if err != nil {
		return reconcile.Template{}, fmt.Errorf("load profile %s: %w", parentID, err)
	}
	if profile != nil {
		if tpl.Contact == "" {
			tpl.Contact = profile.Contact
		}
		if tpl.City == "" {
			tpl.City = profile.City
		}
		if len(tpl.ZoneIDs) == 0 {
			tpl.ZoneIDs = profile.ZoneIDs
		}
	}

	if in.LocationID != "" {
		loc, err := f.locations.GetLocation(ctx, in.LocationID)
		if err != nil {
			return reconcile.Template{}, fmt.Errorf("load location %s: %w", in.LocationID, err)
		}
		if loc == nil {
			return reconcile.Template{}, fmt.Errorf("saved location %s not found", in.LocationID)
		}
		tpl.Location = loc
	}

	for _, c := range in.Cronogram {
		if c.StartTime != "" && !schedule.IsClockTime(c.StartTime) {
			return reconcile.Template{}, fmt.Errorf("cronogram %q: bad start time %q", c.Label, c.StartTime)
		}
		tpl.Cronogram = append(tpl.Cronogram, reconcile.CronogramEntry{
			Label:     c.Label,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
		})
	}

	for _, c := range in.Costs {
		amount, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return reconcile.Template{}, fmt.Errorf("cost %q: bad amount %q", c.Label, c.Amount)
		}
		currency := c.Currency
		if currency == "" {
			currency = "COP"
		}
		tpl.Costs = append(tpl.Costs, reconcile.CostEntry{
			Label:    c.Label,
			Amount:   amount,
			Currency: currency,
		})
	}

	return tpl, nil
}
