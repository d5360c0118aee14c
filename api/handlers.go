/*
handlers.go - HTTP API handlers for the agenda engine

PURPOSE:
  Exposes the staging/bulk-creation workflow over REST. Handlers parse
  HTTP, delegate to the planner/reconcile/flyer packages, and serialize
  responses.

ENDPOINTS:
  Batches:
    POST   /api/batches                          Open a staging batch
    GET    /api/batches/{batchID}                Batch state + preview
    POST   /api/batches/{batchID}/rows           Add a staged row
    POST   /api/batches/{batchID}/rows/generate  Weekly series
    PATCH  /api/batches/{batchID}/rows/{rowID}   Edit a staged row
    DELETE /api/batches/{batchID}/rows/{rowID}   Remove a staged row
    POST   /api/batches/{batchID}/rows/{rowID}/toggle
    POST   /api/batches/{batchID}/select-all
    POST   /api/batches/{batchID}/deselect-all
    POST   /api/batches/{batchID}/submit         Bulk write + reconcile
    POST   /api/batches/{batchID}/general-flyer  Scoped flyer apply
    POST   /api/batches/{batchID}/publish        Scoped publish toggle
    GET    /api/batches/{batchID}/pending-flyers Review view
    POST   /api/batches/{batchID}/rows/{rowID}/flyer        Upload
    POST   /api/batches/{batchID}/rows/{rowID}/flyer/retry  Retry
    DELETE /api/batches/{batchID}/rows/{rowID}/flyer        Remove

  Read path:
    GET /api/organizers/{id}/occurrences       Upcoming occurrences
    GET /api/organizers/{id}/occurrences.ics   Same, as iCalendar
    GET /api/organizers/{id}/locations         Saved locations

ERROR HANDLING:
  - 400: validation errors, invalid input
  - 404: unknown batch/row
  - 409: submit already in flight
  - 500: store failures
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ritmo/agenda-engine/factory"
	"github.com/ritmo/agenda-engine/flyer"
	"github.com/ritmo/agenda-engine/planner"
	"github.com/ritmo/agenda-engine/schedule"
)

const maxFlyerUploadSize = 10 << 20 // 10MB

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Dates     schedule.DateStore
	Profiles  schedule.ProfileStore
	Locations schedule.LocationStore
	Assets    schedule.AssetStore
	Templates *factory.TemplateFactory
	Batches   *Registry

	// Seeder is optional; only the demo scenarios use it.
	Seeder Seeder

	// now is the time source; tests pin it.
	now func() time.Time
}

// Deps wires a handler; Templates and Batches are built internally.
type Deps struct {
	Dates     schedule.DateStore
	Profiles  schedule.ProfileStore
	Locations schedule.LocationStore
	Assets    schedule.AssetStore
	Seeder    Seeder
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		Dates:     deps.Dates,
		Profiles:  deps.Profiles,
		Locations: deps.Locations,
		Assets:    deps.Assets,
		Templates: factory.NewTemplateFactory(deps.Profiles, deps.Locations),
		Batches:   NewRegistry(),
		Seeder:    deps.Seeder,
		now:       time.Now,
	}
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ParentID == "" {
		writeError(w, http.StatusBadRequest, "parent_id is required", nil)
		return
	}

	tpl, err := h.Templates.Build(r.Context(), req.ParentID, req.Template)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template", err)
		return
	}

	defaults := planner.Defaults{
		StartTime:   req.Defaults.StartTime,
		EndTime:     req.Defaults.EndTime,
		Publication: schedule.PublicationDraft,
		Notes:       req.Defaults.Notes,
	}
	batch := h.Batches.Create(req.ParentID, tpl, defaults, h.Dates, h.Assets)
	writeJSON(w, http.StatusCreated, h.batchDTO(batch))
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.batchDTO(batch))
}

func (h *Handler) batchDTO(b *Batch) BatchDTO {
	rows := b.Planner.Rows()
	dto := BatchDTO{
		ID:       b.ID,
		ParentID: b.ParentID,
		Rows:     make([]RowDTO, 0, len(rows)),
		Preview:  previewDTO(b.Planner.Preview()),
		InFlight: b.Reconciler.InFlight(),
	}
	for _, row := range rows {
		dto.Rows = append(dto.Rows, rowDTO(row, b.Planner))
	}
	return dto
}

// =============================================================================
// ROW HANDLERS
// =============================================================================

func (h *Handler) AddRow(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	var req AddRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var date schedule.CivilDate
	if req.Date != "" {
		parsed, err := schedule.ParseCivilDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid calendar date", err)
			return
		}
		date = parsed
	}

	row := batch.Planner.AddRow(date)
	writeJSON(w, http.StatusCreated, rowDTO(row, batch.Planner))
}

func (h *Handler) GenerateSeries(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	var req GenerateSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	anchor, err := schedule.ParseCivilDate(req.AnchorDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid anchor date", err)
		return
	}

	created := batch.Planner.GenerateWeeklySeries(anchor, req.StartTime, req.EndTime, req.Weeks)
	dtos := make([]RowDTO, 0, len(created))
	for _, row := range created {
		dtos = append(dtos, rowDTO(row, batch.Planner))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	rowID := schedule.LocalID(chi.URLParam(r, "rowID"))

	var req UpdateRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var update planner.RowUpdate
	if req.Date != nil {
		date, err := schedule.ParseCivilDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid calendar date", err)
			return
		}
		update.Date = &date
	}
	update.StartTime = req.StartTime
	update.EndTime = req.EndTime
	update.Notes = req.Notes
	if req.Publication != nil {
		state := schedule.PublicationState(*req.Publication)
		update.Publication = &state
	}

	if err := batch.Planner.UpdateRow(rowID, update); err != nil {
		h.writeDomainError(w, err)
		return
	}
	row, err := batch.Planner.Row(rowID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rowDTO(row, batch.Planner))
}

func (h *Handler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	if err := batch.Planner.RemoveRow(schedule.LocalID(chi.URLParam(r, "rowID"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleRow(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	if err := batch.Planner.ToggleRow(schedule.LocalID(chi.URLParam(r, "rowID"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewDTO(batch.Planner.Preview()))
}

func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	batch.Planner.SelectAll()
	writeJSON(w, http.StatusOK, previewDTO(batch.Planner.Preview()))
}

func (h *Handler) DeselectAll(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	batch.Planner.DeselectAll()
	writeJSON(w, http.StatusOK, previewDTO(batch.Planner.Preview()))
}

// =============================================================================
// SUBMIT
// =============================================================================

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	// Local validation first: a bad batch never reaches the network.
	if errs := batch.Planner.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "validation failed",
			"rows":  h.batchDTO(batch).Rows,
		})
		return
	}

	if batch.Planner.Preview().SelectedCount == 0 {
		writeError(w, http.StatusBadRequest, "No rows selected", schedule.ErrNothingSelected)
		return
	}

	tpl := batch.Template
	tpl.GeneralFlyerURL = batch.Planner.GeneralFlyer()

	result, err := batch.Reconciler.Submit(r.Context(), batch.Planner, tpl,
		batch.Defaults.StartTime, batch.Defaults.EndTime)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResultDTO(result))
}

// =============================================================================
// FLYER & PUBLISH
// =============================================================================

func (h *Handler) ApplyGeneralFlyer(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	var req GeneralFlyerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok2 := parseScope(req.Scope)
	if !ok2 {
		writeError(w, http.StatusBadRequest, "Invalid scope", nil)
		return
	}

	if err := batch.Tracker.ApplyGeneralFlyer(r.Context(), scope, req.URL); err != nil {
		writeError(w, http.StatusBadGateway, "Flyer apply failed", err)
		return
	}
	// Recorded only after the scoped update succeeded, so rows added later
	// never start DONE with a URL that was never applied.
	batch.Planner.SetGeneralFlyer(req.URL)
	writeJSON(w, http.StatusOK, h.batchDTO(batch))
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok2 := parseScope(req.Scope)
	if !ok2 {
		writeError(w, http.StatusBadRequest, "Invalid scope", nil)
		return
	}
	state := schedule.PublicationState(req.State)
	if state != schedule.PublicationDraft && state != schedule.PublicationPublished {
		writeError(w, http.StatusBadRequest, "Invalid publication state", nil)
		return
	}

	if err := batch.Tracker.Publish(r.Context(), scope, state); err != nil {
		writeError(w, http.StatusBadGateway, "Publish failed", err)
		return
	}
	writeJSON(w, http.StatusOK, h.batchDTO(batch))
}

func (h *Handler) UploadFlyer(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	rowID := schedule.LocalID(chi.URLParam(r, "rowID"))

	if err := r.ParseMultipartForm(maxFlyerUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body", err)
		return
	}
	file, header, err := r.FormFile("flyer")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No flyer file provided", err)
		return
	}
	defer file.Close()

	if err := batch.Tracker.Upload(r.Context(), rowID, header.Filename, file); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeRow(w, batch, rowID)
}

func (h *Handler) RetryFlyer(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	rowID := schedule.LocalID(chi.URLParam(r, "rowID"))
	if err := batch.Tracker.Retry(rowID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeRow(w, batch, rowID)
}

func (h *Handler) RemoveFlyer(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	rowID := schedule.LocalID(chi.URLParam(r, "rowID"))
	if err := batch.Tracker.Remove(r.Context(), rowID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeRow(w, batch, rowID)
}

func (h *Handler) PendingFlyers(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	showAll := r.URL.Query().Get("all") == "true"

	view := flyer.PendingView(batch.Planner.Rows(), showAll)
	dtos := make([]RowDTO, 0, len(view))
	for _, row := range view {
		dtos = append(dtos, rowDTO(row, batch.Planner))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// READ PATH
// =============================================================================

// upcoming assembles the upcoming occurrences of a parent: its persisted
// one-off rows plus its weekly rules expanded from today.
func (h *Handler) upcoming(r *http.Request, parentID string) ([]schedule.Occurrence, error) {
	rows, err := h.Dates.ListByParent(r.Context(), parentID)
	if err != nil {
		return nil, err
	}
	oneOff := make([]schedule.Occurrence, 0, len(rows))
	for _, row := range rows {
		oneOff = append(oneOff, schedule.Occurrence{
			SourceID:  string(row.ServerID),
			Date:      row.Date,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
		})
	}

	var recurring []schedule.Occurrence
	profile, err := h.Profiles.GetProfile(r.Context(), parentID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		for _, rule := range profile.WeeklyRules {
			occ, err := schedule.ExpandWeekly(rule, parentID, schedule.DefaultOccurrenceCount, h.now())
			if err != nil {
				return nil, err
			}
			recurring = append(recurring, occ...)
		}
	}

	return schedule.Upcoming(oneOff, recurring, h.now()), nil
}

func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	occurrences, err := h.upcoming(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load occurrences", err)
		return
	}
	dtos := make([]OccurrenceDTO, 0, len(occurrences))
	for _, occ := range occurrences {
		dtos = append(dtos, occurrenceDTO(occ))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Locations.ListLocations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list locations", err)
		return
	}
	dtos := make([]LocationDTO, 0, len(locations))
	for _, l := range locations {
		dtos = append(dtos, LocationDTO{
			ID: l.ID, Name: l.Name, Address: l.Address, City: l.City, ZoneIDs: l.ZoneIDs,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) (*Batch, bool) {
	batch, err := h.Batches.Get(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Batch not found", err)
		return nil, false
	}
	return batch, true
}

// writeRow serializes the current snapshot of one staged row.
func (h *Handler) writeRow(w http.ResponseWriter, batch *Batch, rowID schedule.LocalID) {
	row, err := batch.Planner.Row(rowID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rowDTO(row, batch.Planner))
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrBatchNotFound), errors.Is(err, schedule.ErrRowNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, schedule.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "Submission already in flight", err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusBadGateway, "Operation failed", err)
	}
}

func parseScope(s string) (flyer.Scope, bool) {
	switch flyer.Scope(s) {
	case flyer.ScopeSelected, flyer.ScopeAll:
		return flyer.Scope(s), true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
