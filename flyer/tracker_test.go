package flyer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo/agenda-engine/flyer"
	"github.com/ritmo/agenda-engine/planner"
	"github.com/ritmo/agenda-engine/schedule"
	"github.com/ritmo/agenda-engine/schedule/store"
)

type fixture struct {
	mem     *store.Memory
	assets  *store.MemoryAssets
	planner *planner.Planner
	tracker *flyer.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem:     store.NewMemory(),
		assets:  store.NewMemoryAssets(),
		planner: planner.New(planner.Defaults{StartTime: "20:00", EndTime: "23:00"}),
	}
	f.tracker = flyer.NewTracker(f.mem, f.assets, f.planner)
	return f
}

// stagedRow adds one selected row without a server identity.
func (f *fixture) stagedRow(t *testing.T) schedule.LocalID {
	t.Helper()
	return f.planner.AddRow(schedule.NewCivilDate(2024, 6, 3)).LocalID
}

// reconciledRow adds one row, persists it, and binds the identity.
func (f *fixture) reconciledRow(t *testing.T) schedule.LocalID {
	t.Helper()
	id := f.stagedRow(t)
	created, err := f.mem.BulkInsert(context.Background(), []schedule.DatePayload{{
		ParentID:  "academy-1",
		Date:      schedule.NewCivilDate(2024, 6, 3),
		StartTime: "20:00",
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NoError(t, f.planner.Attach(id, created[0].ServerID))
	return id
}

func (f *fixture) row(t *testing.T, id schedule.LocalID) schedule.StagedRow {
	t.Helper()
	row, err := f.planner.Row(id)
	require.NoError(t, err)
	return row
}

// forceState puts a row into an arbitrary flyer state for transition tests.
func (f *fixture) forceState(t *testing.T, id schedule.LocalID, state schedule.FlyerState) {
	t.Helper()
	require.NoError(t, f.planner.MutateRow(id, func(row *schedule.StagedRow) error {
		row.FlyerState = state
		return nil
	}))
}

// =============================================================================
// PER-ROW UPLOAD FLOW
// =============================================================================

func TestUpload_Success(t *testing.T) {
	f := newFixture(t)
	id := f.reconciledRow(t)

	err := f.tracker.Upload(context.Background(), id, "flyer.jpg", strings.NewReader("img"))
	require.NoError(t, err)

	row := f.row(t, id)
	assert.Equal(t, schedule.FlyerDone, row.FlyerState)
	assert.Equal(t, "https://cdn.test/flyers/flyer.jpg", row.FlyerURL)

	persisted, ok := f.mem.Get(row.ServerID)
	require.True(t, ok)
	assert.Equal(t, row.FlyerURL, persisted.FlyerURL)
}

func TestUpload_RequiresReconciledRow(t *testing.T) {
	f := newFixture(t)
	id := f.stagedRow(t)

	err := f.tracker.Upload(context.Background(), id, "flyer.jpg", strings.NewReader("img"))
	assert.True(t, errors.Is(err, schedule.ErrNotReconciled))
	assert.Equal(t, schedule.FlyerPending, f.row(t, id).FlyerState, "row must stay PENDING")
}

func TestUpload_UnknownRow(t *testing.T) {
	f := newFixture(t)

	err := f.tracker.Upload(context.Background(), "missing", "flyer.jpg", strings.NewReader("img"))
	assert.True(t, errors.Is(err, schedule.ErrRowNotFound))
}

func TestUpload_AssetFailureMovesToError(t *testing.T) {
	// GIVEN: the asset store rejects the upload
	// WHEN: uploading
	// THEN: the row lands in ERROR; the persisted date row is untouched

	f := newFixture(t)
	id := f.reconciledRow(t)
	f.assets.FailNextUpload = errors.New("cdn down")

	err := f.tracker.Upload(context.Background(), id, "flyer.jpg", strings.NewReader("img"))
	require.Error(t, err)
	row := f.row(t, id)
	assert.Equal(t, schedule.FlyerError, row.FlyerState)

	persisted, _ := f.mem.Get(row.ServerID)
	assert.Empty(t, persisted.FlyerURL)
}

func TestRetry_ThenSecondUploadSucceeds(t *testing.T) {
	f := newFixture(t)
	id := f.reconciledRow(t)
	f.assets.FailNextUpload = errors.New("cdn down")
	require.Error(t, f.tracker.Upload(context.Background(), id, "flyer.jpg", strings.NewReader("img")))

	require.NoError(t, f.tracker.Retry(id))
	row := f.row(t, id)
	assert.Equal(t, schedule.FlyerPending, row.FlyerState)
	assert.Empty(t, row.FlyerURL)

	require.NoError(t, f.tracker.Upload(context.Background(), id, "flyer.jpg", strings.NewReader("img")))
	assert.Equal(t, schedule.FlyerDone, f.row(t, id).FlyerState)
}

func TestRemove_ClearsLocalAndPersisted(t *testing.T) {
	f := newFixture(t)
	id := f.reconciledRow(t)
	require.NoError(t, f.tracker.Upload(context.Background(), id, "flyer.jpg", strings.NewReader("img")))

	require.NoError(t, f.tracker.Remove(context.Background(), id))
	row := f.row(t, id)
	assert.Equal(t, schedule.FlyerPending, row.FlyerState)
	assert.Empty(t, row.FlyerURL)

	persisted, _ := f.mem.Get(row.ServerID)
	assert.Empty(t, persisted.FlyerURL)
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestTransitions_ClosedTable(t *testing.T) {
	f := newFixture(t)

	// Retry from anything but ERROR is rejected.
	for _, state := range []schedule.FlyerState{schedule.FlyerPending, schedule.FlyerUploading, schedule.FlyerDone} {
		id := f.stagedRow(t)
		f.forceState(t, id, state)

		err := f.tracker.Retry(id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schedule.ErrInvalidTransition))
		assert.Equal(t, state, f.row(t, id).FlyerState, "rejected event must not move the row")
	}

	// Remove from anything but DONE is rejected.
	id := f.reconciledRow(t)
	err := f.tracker.Remove(context.Background(), id)
	var te *schedule.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, schedule.FlyerPending, te.From)
}

// =============================================================================
// SCOPED BULK OPERATIONS
// =============================================================================

func TestApplyGeneralFlyer_SelectedScopeSkipsUnreconciled(t *testing.T) {
	// GIVEN: one selected reconciled row, one selected unreconciled row,
	//        and one deselected reconciled row
	// WHEN: applying a general flyer to the selected scope
	// THEN: only the selected reconciled row changes, locally and remotely

	f := newFixture(t)
	target := f.reconciledRow(t)
	unreconciled := f.stagedRow(t)
	deselected := f.reconciledRow(t)
	require.NoError(t, f.planner.ToggleRow(deselected))

	err := f.tracker.ApplyGeneralFlyer(context.Background(), flyer.ScopeSelected, "https://cdn.test/general.jpg")
	require.NoError(t, err)

	assert.Equal(t, schedule.FlyerDone, f.row(t, target).FlyerState)
	assert.Equal(t, "https://cdn.test/general.jpg", f.row(t, target).FlyerURL)
	assert.Equal(t, schedule.FlyerPending, f.row(t, unreconciled).FlyerState)
	assert.Equal(t, schedule.FlyerPending, f.row(t, deselected).FlyerState)

	persisted, _ := f.mem.Get(f.row(t, target).ServerID)
	assert.Equal(t, "https://cdn.test/general.jpg", persisted.FlyerURL)
	untouched, _ := f.mem.Get(f.row(t, deselected).ServerID)
	assert.Empty(t, untouched.FlyerURL)
}

func TestApplyGeneralFlyer_FailureLeavesLocalStateAlone(t *testing.T) {
	f := newFixture(t)
	id := f.reconciledRow(t)
	f.mem.FailNextBulkUpdate = errors.New("backend down")

	err := f.tracker.ApplyGeneralFlyer(context.Background(), flyer.ScopeAll, "https://cdn.test/general.jpg")
	require.Error(t, err)
	row := f.row(t, id)
	assert.Equal(t, schedule.FlyerPending, row.FlyerState)
	assert.Empty(t, row.FlyerURL)
}

func TestApplyGeneralFlyer_NoTargetsMakesNoCall(t *testing.T) {
	f := newFixture(t)
	// A poisoned store proves no call happens when nothing is in scope.
	f.mem.FailNextBulkUpdate = errors.New("must not be called")
	f.stagedRow(t)

	err := f.tracker.ApplyGeneralFlyer(context.Background(), flyer.ScopeSelected, "url")
	assert.NoError(t, err)
}

func TestPublish_TogglesScope(t *testing.T) {
	f := newFixture(t)
	a := f.reconciledRow(t)
	b := f.reconciledRow(t)

	err := f.tracker.Publish(context.Background(), flyer.ScopeAll, schedule.PublicationPublished)
	require.NoError(t, err)

	for _, id := range []schedule.LocalID{a, b} {
		row := f.row(t, id)
		assert.Equal(t, schedule.PublicationPublished, row.Publication)
		persisted, _ := f.mem.Get(row.ServerID)
		assert.Equal(t, schedule.PublicationPublished, persisted.Publication)
	}
}

// =============================================================================
// PENDING VIEW
// =============================================================================

func TestPendingView(t *testing.T) {
	done := schedule.StagedRow{LocalID: "a", FlyerState: schedule.FlyerDone}
	pending := schedule.StagedRow{LocalID: "b", FlyerState: schedule.FlyerPending}
	failed := schedule.StagedRow{LocalID: "c", FlyerState: schedule.FlyerError}
	rows := []schedule.StagedRow{done, pending, failed}

	needing := flyer.PendingView(rows, false)
	require.Len(t, needing, 2)
	assert.Equal(t, pending, needing[0])
	assert.Equal(t, failed, needing[1])

	assert.Len(t, flyer.PendingView(rows, true), 3)
}
