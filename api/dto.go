/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the domain types
  so internal renames never break clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.
  DTOs are pure data carriers.
*/
package api

import (
	"github.com/ritmo/agenda-engine/factory"
	"github.com/ritmo/agenda-engine/planner"
	"github.com/ritmo/agenda-engine/reconcile"
	"github.com/ritmo/agenda-engine/schedule"
)

// =============================================================================
// BATCH
// =============================================================================

// CreateBatchRequest opens a staging batch for a parent (organizer or
// academy) with the shared template and row defaults.
type CreateBatchRequest struct {
	ParentID string               `json:"parent_id"`
	Template factory.TemplateJSON `json:"template"`
	Defaults RowDefaultsJSON      `json:"defaults"`
}

type RowDefaultsJSON struct {
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type BatchDTO struct {
	ID       string     `json:"id"`
	ParentID string     `json:"parent_id"`
	Rows     []RowDTO   `json:"rows"`
	Preview  PreviewDTO `json:"preview"`
	InFlight bool       `json:"in_flight"`
}

type PreviewDTO struct {
	SelectedCount int    `json:"selected_count"`
	MinDate       string `json:"min_date,omitempty"`
	MaxDate       string `json:"max_date,omitempty"`
}

// =============================================================================
// ROWS
// =============================================================================

type RowDTO struct {
	LocalID     string `json:"local_id"`
	Date        string `json:"calendar_date"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Publication string `json:"publication"`
	Notes       string `json:"notes,omitempty"`
	Selected    bool   `json:"selected"`
	FlyerState  string `json:"flyer_state"`
	FlyerURL    string `json:"flyer_url,omitempty"`
	ServerID    string `json:"server_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

type AddRowRequest struct {
	Date string `json:"calendar_date"`
}

type UpdateRowRequest struct {
	Date        *string `json:"calendar_date,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Publication *string `json:"publication,omitempty"`
}

type GenerateSeriesRequest struct {
	AnchorDate string `json:"anchor_date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time,omitempty"`
	Weeks      int    `json:"weeks"`
}

// =============================================================================
// SUBMIT & BULK OPERATIONS
// =============================================================================

type SubmitResultDTO struct {
	Attached   int            `json:"attached"`
	Shortfalls []ShortfallDTO `json:"shortfalls,omitempty"`
}

type ShortfallDTO struct {
	LocalID string `json:"local_id"`
	Message string `json:"message"`
}

type GeneralFlyerRequest struct {
	URL   string `json:"url"`
	Scope string `json:"scope"` // "selected" or "all"
}

type PublishRequest struct {
	Scope string `json:"scope"` // "selected" or "all"
	State string `json:"state"` // "draft" or "published"
}

// =============================================================================
// OCCURRENCES & LOCATIONS
// =============================================================================

type OccurrenceDTO struct {
	SourceID        string `json:"source_id"`
	Date            string `json:"calendar_date"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	IsRecurring     bool   `json:"is_recurring"`
	RecurrenceIndex int    `json:"recurrence_index"`
}

type LocationDTO struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	City    string   `json:"city,omitempty"`
	ZoneIDs []string `json:"zone_ids,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func rowDTO(row schedule.StagedRow, p *planner.Planner) RowDTO {
	dto := RowDTO{
		LocalID:     string(row.LocalID),
		Date:        row.Date.String(),
		StartTime:   row.StartTime,
		EndTime:     row.EndTime,
		Publication: string(row.Publication),
		Notes:       row.Notes,
		Selected:    row.Selected,
		FlyerState:  string(row.FlyerState),
		FlyerURL:    row.FlyerURL,
		ServerID:    string(row.ServerID),
	}
	if row.Date.IsZero() {
		dto.Date = ""
	}
	if msg, ok := p.RowError(row.LocalID); ok {
		dto.Error = msg
	}
	return dto
}

func previewDTO(pv planner.Preview) PreviewDTO {
	dto := PreviewDTO{SelectedCount: pv.SelectedCount}
	if !pv.MinDate.IsZero() {
		dto.MinDate = pv.MinDate.String()
	}
	if !pv.MaxDate.IsZero() {
		dto.MaxDate = pv.MaxDate.String()
	}
	return dto
}

func submitResultDTO(res *reconcile.Result) SubmitResultDTO {
	dto := SubmitResultDTO{Attached: res.Attached}
	for _, sf := range res.Shortfalls {
		dto.Shortfalls = append(dto.Shortfalls, ShortfallDTO{
			LocalID: string(sf.LocalID),
			Message: sf.Error(),
		})
	}
	return dto
}

func occurrenceDTO(occ schedule.Occurrence) OccurrenceDTO {
	return OccurrenceDTO{
		SourceID:        occ.SourceID,
		Date:            occ.Date.String(),
		StartTime:       occ.StartTime,
		EndTime:         occ.EndTime,
		IsRecurring:     occ.IsRecurring,
		RecurrenceIndex: occ.RecurrenceIndex,
	}
}
