/*
Package planner implements the client-side staging list for bulk
calendar-date creation.

PURPOSE:
  An organizer drafts a batch of event dates (manually or as a weekly
  series), selects the ones to create, previews the span, and hands the
  selection to the reconcile package for the single bulk write. Until
  then every row lives only here, keyed by a stable LocalID that is never
  an array index.

KEY RULES:
  - AddRow seeds from the batch defaults; new rows are selected and start
    with flyer state PENDING (DONE when a batch-wide general flyer URL is
    already set).
  - GenerateWeeklySeries uses direct date arithmetic: the anchor date
    already encodes the weekday, so it is not re-derived. Weeks are
    clamped to [1, 52].
  - RemoveRow also drops the row's validation error so a stale message
    can never reappear.
  - Rows are never removed by submission or reconciliation; only explicit
    removal deletes them.
  - No live row ever leaves this package: readers get copies, and every
    post-submission update (identity attachment, flyer state, publication)
    comes back through the lock-guarded mutators below, so a concurrent
    reader can never observe a torn write.

SEE ALSO:
  - validate.go: per-row local validation
  - reconcile: bulk write + identity re-attachment
*/
package planner

import (
	"sync"

	"github.com/ritmo/agenda-engine/schedule"
)

const (
	minSeriesWeeks = 1
	maxSeriesWeeks = 52
)

// Defaults are the shared seed values applied to newly added rows.
type Defaults struct {
	StartTime   string
	EndTime     string
	Publication schedule.PublicationState
	Notes       string
}

// Planner is the staging list for one batch.
type Planner struct {
	mu        sync.Mutex
	rows      []*schedule.StagedRow
	rowErrors map[schedule.LocalID]string
	defaults  Defaults

	// generalFlyerURL, when set, is applied identically to every payload
	// at submit time and makes new rows start in DONE.
	generalFlyerURL string
}

func New(defaults Defaults) *Planner {
	if defaults.Publication == "" {
		defaults.Publication = schedule.PublicationDraft
	}
	return &Planner{
		rowErrors: make(map[schedule.LocalID]string),
		defaults:  defaults,
	}
}

// =============================================================================
// ROW CREATION
// =============================================================================

// AddRow appends one staged row seeded from the batch defaults and
// returns a copy of it.
func (p *Planner) AddRow(date schedule.CivilDate) schedule.StagedRow {
	p.mu.Lock()
	defer p.mu.Unlock()
	row := p.newRowLocked(date, p.defaults.StartTime, p.defaults.EndTime)
	return *row
}

// GenerateWeeklySeries appends `weeks` rows dated anchor + 7*i days with
// the given time window. weeks is clamped to [1, 52]. Returns copies of
// the created rows.
func (p *Planner) GenerateWeeklySeries(anchor schedule.CivilDate, startTime, endTime string, weeks int) []schedule.StagedRow {
	if weeks < minSeriesWeeks {
		weeks = minSeriesWeeks
	}
	if weeks > maxSeriesWeeks {
		weeks = maxSeriesWeeks
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	created := make([]schedule.StagedRow, 0, weeks)
	for i := 0; i < weeks; i++ {
		row := p.newRowLocked(anchor.AddDays(7*i), startTime, endTime)
		created = append(created, *row)
	}
	return created
}

func (p *Planner) newRowLocked(date schedule.CivilDate, startTime, endTime string) *schedule.StagedRow {
	flyer := schedule.FlyerPending
	if p.generalFlyerURL != "" {
		flyer = schedule.FlyerDone
	}
	row := &schedule.StagedRow{
		LocalID:     schedule.NewLocalID(),
		Date:        date,
		StartTime:   startTime,
		EndTime:     endTime,
		Publication: p.defaults.Publication,
		Notes:       p.defaults.Notes,
		Selected:    true,
		FlyerState:  flyer,
		FlyerURL:    p.generalFlyerURL,
	}
	p.rows = append(p.rows, row)
	return row
}

// =============================================================================
// ROW ACCESS & EDITING
// =============================================================================

// RowUpdate carries optional field edits; nil fields are untouched.
type RowUpdate struct {
	Date        *schedule.CivilDate
	StartTime   *string
	EndTime     *string
	Notes       *string
	Publication *schedule.PublicationState
}

func (p *Planner) UpdateRow(id schedule.LocalID, update RowUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row := p.findLocked(id)
	if row == nil {
		return schedule.ErrRowNotFound
	}
	if update.Date != nil {
		row.Date = *update.Date
	}
	if update.StartTime != nil {
		row.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		row.EndTime = *update.EndTime
	}
	if update.Notes != nil {
		row.Notes = *update.Notes
	}
	if update.Publication != nil {
		row.Publication = *update.Publication
	}
	return nil
}

// Rows returns copies of all staged rows in list order.
func (p *Planner) Rows() []schedule.StagedRow {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]schedule.StagedRow, 0, len(p.rows))
	for _, row := range p.rows {
		out = append(out, *row)
	}
	return out
}

// Row returns a copy of one staged row.
func (p *Planner) Row(id schedule.LocalID) (schedule.StagedRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	row := p.findLocked(id)
	if row == nil {
		return schedule.StagedRow{}, schedule.ErrRowNotFound
	}
	return *row, nil
}

// SelectedRows returns copies of the selected rows, in list order. The
// reconciler submits from this snapshot and binds identities back through
// Attach; no caller ever holds a live row outside the planner lock.
func (p *Planner) SelectedRows() []schedule.StagedRow {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []schedule.StagedRow
	for _, row := range p.rows {
		if row.Selected {
			out = append(out, *row)
		}
	}
	return out
}

// =============================================================================
// GUARDED MUTATION - Post-write row updates run inside the lock
// =============================================================================

// MutateRow runs fn on the live row inside the planner lock. The flyer
// tracker routes its state transitions through here; a fn error leaves
// whatever fn already did, so mutators should fail before writing.
func (p *Planner) MutateRow(id schedule.LocalID, fn func(*schedule.StagedRow) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row := p.findLocked(id)
	if row == nil {
		return schedule.ErrRowNotFound
	}
	return fn(row)
}

// MutateRows runs fn on every listed row that still exists, in one
// critical section. Used by the scoped bulk updates after the store call
// succeeded.
func (p *Planner) MutateRows(ids []schedule.LocalID, fn func(*schedule.StagedRow)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range ids {
		if row := p.findLocked(id); row != nil {
			fn(row)
		}
	}
}

func (p *Planner) findLocked(id schedule.LocalID) *schedule.StagedRow {
	for _, row := range p.rows {
		if row.LocalID == id {
			return row
		}
	}
	return nil
}

// =============================================================================
// SELECTION
// =============================================================================

func (p *Planner) SelectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.rows {
		row.Selected = true
	}
}

func (p *Planner) DeselectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.rows {
		row.Selected = false
	}
}

func (p *Planner) ToggleRow(id schedule.LocalID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row := p.findLocked(id)
	if row == nil {
		return schedule.ErrRowNotFound
	}
	row.Selected = !row.Selected
	return nil
}

// RemoveRow deletes a staged row and its validation error. The error must
// go with it: LocalIDs are never reused, but a stale message must not
// survive the row it described.
func (p *Planner) RemoveRow(id schedule.LocalID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, row := range p.rows {
		if row.LocalID == id {
			p.rows = append(p.rows[:i], p.rows[i+1:]...)
			delete(p.rowErrors, id)
			return nil
		}
	}
	return schedule.ErrRowNotFound
}

// =============================================================================
// GENERAL FLYER & IDENTITY ATTACHMENT
// =============================================================================

// SetGeneralFlyer records the batch-wide flyer URL. It only affects rows
// created afterwards and the payloads built at submit time; already-staged
// rows keep their own flyer lifecycle.
func (p *Planner) SetGeneralFlyer(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generalFlyerURL = url
}

func (p *Planner) GeneralFlyer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generalFlyerURL
}

// Attach binds a server identity to a staged row. A row accepts at most
// one ServerID in its lifetime.
func (p *Planner) Attach(id schedule.LocalID, serverID schedule.ServerID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row := p.findLocked(id)
	if row == nil {
		return schedule.ErrRowNotFound
	}
	if row.ServerID != "" {
		return schedule.ErrAlreadyReconciled
	}
	row.ServerID = serverID
	return nil
}

// =============================================================================
// PREVIEW - Derived confirmation stats
// =============================================================================

// Preview summarizes the current selection for user confirmation before
// submit.
type Preview struct {
	SelectedCount int
	MinDate       schedule.CivilDate
	MaxDate       schedule.CivilDate
}

func (p *Planner) Preview() Preview {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pv Preview
	for _, row := range p.rows {
		if !row.Selected {
			continue
		}
		pv.SelectedCount++
		if pv.MinDate.IsZero() || row.Date.Before(pv.MinDate) {
			pv.MinDate = row.Date
		}
		if pv.MaxDate.IsZero() || row.Date.After(pv.MaxDate) {
			pv.MaxDate = row.Date
		}
	}
	return pv
}
