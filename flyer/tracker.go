/*
Package flyer tracks per-row flyer upload status, decoupled from the
creation lifecycle of the rows themselves.

STATE MACHINE (closed; anything else is rejected):

  PENDING   --upload started-->   UPLOADING
  UPLOADING --upload succeeded--> DONE      (sets flyerUrl)
  UPLOADING --upload failed-->    ERROR
  ERROR     --retry-->            PENDING   (clears flyerUrl)
  DONE      --manual removal-->   PENDING   (clears flyerUrl)

PRECONDITION:
  A row may only leave PENDING once it has a ServerID: the upload targets
  a persisted row by id. Unreconciled rows stay PENDING and are excluded
  from every upload action.

SYNCHRONIZATION:
  The tracker never holds live staged rows. It reads snapshots and applies
  every state change through the staging list's guarded mutators, so a
  reader polling the batch can never race an upload in progress.

SCOPED BULK OPERATIONS:
  ApplyGeneralFlyer and Publish issue one batched update (a single call
  with an id list). A failed call is treated as affecting none of the
  targeted rows; local state is only advanced on success.
*/
package flyer

import (
	"context"
	"fmt"
	"io"

	"github.com/ritmo/agenda-engine/schedule"
)

// =============================================================================
// EVENTS & TRANSITION TABLE
// =============================================================================

type Event string

const (
	EventUploadStarted   Event = "upload_started"
	EventUploadSucceeded Event = "upload_succeeded"
	EventUploadFailed    Event = "upload_failed"
	EventRetry           Event = "retry"
	EventRemove          Event = "manual_removal"
)

var transitions = map[schedule.FlyerState]map[Event]schedule.FlyerState{
	schedule.FlyerPending: {
		EventUploadStarted: schedule.FlyerUploading,
	},
	schedule.FlyerUploading: {
		EventUploadSucceeded: schedule.FlyerDone,
		EventUploadFailed:    schedule.FlyerError,
	},
	schedule.FlyerError: {
		EventRetry: schedule.FlyerPending,
	},
	schedule.FlyerDone: {
		EventRemove: schedule.FlyerPending,
	},
}

// apply moves a row through the table, rejecting moves that are not in it.
func apply(row *schedule.StagedRow, event Event) error {
	next, ok := transitions[row.FlyerState][event]
	if !ok {
		return &schedule.TransitionError{LocalID: row.LocalID, From: row.FlyerState, Event: string(event)}
	}
	row.FlyerState = next
	if next == schedule.FlyerPending {
		row.FlyerURL = ""
	}
	return nil
}

// eventFn adapts apply for the staging mutators.
func eventFn(event Event) func(*schedule.StagedRow) error {
	return func(row *schedule.StagedRow) error { return apply(row, event) }
}

// =============================================================================
// TRACKER
// =============================================================================

// Staging is the slice of the planner the tracker works through: snapshot
// reads plus mutations that run under the planner's lock.
type Staging interface {
	Rows() []schedule.StagedRow
	Row(id schedule.LocalID) (schedule.StagedRow, error)
	MutateRow(id schedule.LocalID, fn func(*schedule.StagedRow) error) error
	MutateRows(ids []schedule.LocalID, fn func(*schedule.StagedRow))
}

type Tracker struct {
	store   schedule.DateStore
	assets  schedule.AssetStore
	staging Staging
}

func NewTracker(store schedule.DateStore, assets schedule.AssetStore, staging Staging) *Tracker {
	return &Tracker{store: store, assets: assets, staging: staging}
}

// Upload runs the full per-row upload flow: PENDING -> UPLOADING, then
// DONE with the public URL on success, ERROR on failure. Failure is local
// to the row; the persisted date record is untouched.
func (t *Tracker) Upload(ctx context.Context, id schedule.LocalID, name string, r io.Reader) error {
	row, err := t.staging.Row(id)
	if err != nil {
		return err
	}
	if !row.Reconciled() {
		return schedule.ErrNotReconciled
	}
	if err := t.staging.MutateRow(id, eventFn(EventUploadStarted)); err != nil {
		return err
	}

	url, err := t.assets.Upload(ctx, name, r)
	if err != nil {
		_ = t.staging.MutateRow(id, eventFn(EventUploadFailed))
		return fmt.Errorf("upload flyer: %w", err)
	}

	if _, err := t.store.Update(ctx, row.ServerID, schedule.RowPatch{FlyerURL: &url}); err != nil {
		_ = t.staging.MutateRow(id, eventFn(EventUploadFailed))
		return fmt.Errorf("attach flyer to row %s: %w", row.ServerID, err)
	}

	return t.staging.MutateRow(id, func(row *schedule.StagedRow) error {
		if err := apply(row, EventUploadSucceeded); err != nil {
			return err
		}
		row.FlyerURL = url
		return nil
	})
}

// Retry moves a failed row back to PENDING so a new upload can start.
func (t *Tracker) Retry(id schedule.LocalID) error {
	return t.staging.MutateRow(id, eventFn(EventRetry))
}

// Remove clears a finished flyer, locally and on the persisted row, so it
// can be replaced.
func (t *Tracker) Remove(ctx context.Context, id schedule.LocalID) error {
	row, err := t.staging.Row(id)
	if err != nil {
		return err
	}
	if err := t.staging.MutateRow(id, eventFn(EventRemove)); err != nil {
		return err
	}
	if row.Reconciled() {
		empty := ""
		if _, err := t.store.Update(ctx, row.ServerID, schedule.RowPatch{FlyerURL: &empty}); err != nil {
			return fmt.Errorf("clear flyer on row %s: %w", row.ServerID, err)
		}
	}
	return nil
}

// =============================================================================
// SCOPED BULK OPERATIONS
// =============================================================================

type Scope string

const (
	ScopeSelected Scope = "selected"
	ScopeAll      Scope = "all"
)

func inScope(row schedule.StagedRow, scope Scope) bool {
	return scope == ScopeAll || row.Selected
}

// ApplyGeneralFlyer sets the shared flyer URL on every row in scope that
// already has a ServerID, in one batched update. Rows without a ServerID
// are silently skipped and stay PENDING. Local state only advances when
// the call succeeds.
func (t *Tracker) ApplyGeneralFlyer(ctx context.Context, scope Scope, url string) error {
	var ids []schedule.LocalID
	var serverIDs []schedule.ServerID
	for _, row := range t.staging.Rows() {
		if inScope(row, scope) && row.Reconciled() {
			ids = append(ids, row.LocalID)
			serverIDs = append(serverIDs, row.ServerID)
		}
	}
	if len(serverIDs) == 0 {
		return nil
	}

	if err := t.store.BulkUpdateByIDs(ctx, serverIDs, schedule.RowPatch{FlyerURL: &url}); err != nil {
		return fmt.Errorf("apply general flyer: %w", err)
	}
	t.staging.MutateRows(ids, func(row *schedule.StagedRow) {
		row.FlyerState = schedule.FlyerDone
		row.FlyerURL = url
	})
	return nil
}

// Publish toggles the publication state for every row in scope that has a
// ServerID, in one batched update. Publication is a two-value field, not
// part of the flyer state machine.
func (t *Tracker) Publish(ctx context.Context, scope Scope, state schedule.PublicationState) error {
	var ids []schedule.LocalID
	var serverIDs []schedule.ServerID
	for _, row := range t.staging.Rows() {
		if inScope(row, scope) && row.Reconciled() {
			ids = append(ids, row.LocalID)
			serverIDs = append(serverIDs, row.ServerID)
		}
	}
	if len(serverIDs) == 0 {
		return nil
	}

	if err := t.store.BulkUpdateByIDs(ctx, serverIDs, schedule.RowPatch{Publication: &state}); err != nil {
		return fmt.Errorf("toggle publication: %w", err)
	}
	t.staging.MutateRows(ids, func(row *schedule.StagedRow) {
		row.Publication = state
	})
	return nil
}

// =============================================================================
// PENDING-FLYERS VIEW
// =============================================================================

// PendingView returns the rows shown in the flyer review list. By default
// only rows still needing a flyer appear; showAll reveals everything so an
// already-set flyer can be replaced.
func PendingView(rows []schedule.StagedRow, showAll bool) []schedule.StagedRow {
	if showAll {
		return rows
	}
	var out []schedule.StagedRow
	for _, row := range rows {
		if row.FlyerState != schedule.FlyerDone {
			out = append(out, row)
		}
	}
	return out
}
