package reconcile_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo/agenda-engine/reconcile"
	"github.com/ritmo/agenda-engine/schedule"
)

// staged builds a standalone row value for payload tests; attachment tests
// stage rows through a planner instead.
func staged(dateStr string) schedule.StagedRow {
	return schedule.StagedRow{
		LocalID:     schedule.NewLocalID(),
		Date:        date(dateStr),
		StartTime:   "20:00",
		EndTime:     "23:00",
		Publication: schedule.PublicationDraft,
		Selected:    true,
		FlyerState:  schedule.FlyerPending,
	}
}

func TestResolvedPlace_ManualWinsOverLocation(t *testing.T) {
	tpl := reconcile.Template{
		Place: "La Terraza",
		Location: &schedule.SavedLocation{
			Name:    "Teatro Municipal",
			Address: "Carrera 5 #6-64",
			City:    "Cali",
			ZoneIDs: []string{"centro"},
		},
	}

	place, address, city, zones := tpl.ResolvedPlace()
	assert.Equal(t, "La Terraza", place, "manual entry wins")
	assert.Equal(t, "Carrera 5 #6-64", address, "empty fields fall back to the location")
	assert.Equal(t, "Cali", city)
	assert.Equal(t, []string{"centro"}, zones)
}

func TestBuildPayload_AlwaysDraft(t *testing.T) {
	// A row staged as published must still be created as a draft; nothing
	// goes publicly visible before the organizer verifies the batch.
	row := staged("2024-06-03")
	row.Publication = schedule.PublicationPublished

	payload := testTemplate().BuildPayload(row, "20:00", "23:00")
	assert.Equal(t, schedule.PublicationDraft, payload.Publication)
}

func TestBuildPayload_RowTimesFallBackToDefaults(t *testing.T) {
	row := staged("2024-06-03")
	row.StartTime = ""
	row.EndTime = ""

	payload := testTemplate().BuildPayload(row, "19:30", "22:30")
	assert.Equal(t, "19:30", payload.StartTime)
	assert.Equal(t, "22:30", payload.EndTime)
}

func TestBuildPayload_CostsSerializeExactly(t *testing.T) {
	tpl := testTemplate()
	tpl.Costs = []reconcile.CostEntry{
		{Label: "Cover", Amount: decimal.NewFromInt(15000), Currency: "COP"},
	}

	payload := tpl.BuildPayload(staged("2024-06-03"), "20:00", "23:00")
	require.NotEmpty(t, payload.CostsJSON)
	assert.Contains(t, payload.CostsJSON, `"15000"`)

	// No cost table at all serializes to the empty string, not "[]".
	assert.Empty(t, testTemplate().BuildPayload(staged("2024-06-03"), "20:00", "23:00").CostsJSON)
}

func TestPayloadKey_MatchesPersistedKey(t *testing.T) {
	// The attachment algorithm depends on these two key derivations
	// agreeing field for field.
	row := staged("2024-06-03")
	payload := testTemplate().BuildPayload(row, "20:00", "23:00")

	persisted := schedule.PersistedRow{
		ParentID:  payload.ParentID,
		Date:      payload.Date,
		StartTime: payload.StartTime,
		EndTime:   payload.EndTime,
		Place:     payload.Place,
		City:      payload.City,
	}
	assert.Equal(t, payload.Key(), persisted.Key())
}
