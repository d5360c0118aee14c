package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo/agenda-engine/planner"
	"github.com/ritmo/agenda-engine/reconcile"
	"github.com/ritmo/agenda-engine/schedule"
	"github.com/ritmo/agenda-engine/schedule/store"
)

func date(s string) schedule.CivilDate {
	d, err := schedule.ParseCivilDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// plannerWith stages one selected row per date, in order.
func plannerWith(dates ...string) *planner.Planner {
	p := planner.New(planner.Defaults{StartTime: "20:00", EndTime: "23:00"})
	for _, d := range dates {
		p.AddRow(date(d))
	}
	return p
}

func testTemplate() reconcile.Template {
	return reconcile.Template{
		ParentID: "academy-1",
		Name:     "Salsa Social",
		Contact:  "+57 300 000 0000",
		Place:    "La Terraza",
		City:     "Cali",
	}
}

// =============================================================================
// IDENTITY ATTACHMENT
// =============================================================================

func TestSubmit_DistinctRowsGetMatchingIdentities(t *testing.T) {
	// GIVEN: three staged rows with distinct dates
	// WHEN: submitting
	// THEN: every row ends up with the server id of the persisted row
	//       carrying its own date

	mem := store.NewMemory()
	rec := reconcile.New(mem)
	p := plannerWith("2024-06-03", "2024-06-10", "2024-06-17")

	result, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attached)
	assert.Empty(t, result.Shortfalls)

	for _, row := range p.Rows() {
		require.NotEmpty(t, row.ServerID)
		persisted, ok := mem.Get(row.ServerID)
		require.True(t, ok)
		assert.Equal(t, row.Date, persisted.Date)
	}
}

func TestSubmit_IdenticalRowsGetDistinctIdentities(t *testing.T) {
	// GIVEN: three structurally identical rows (same date, times, venue)
	// WHEN: submitting against a store that returns rows in reverse order
	// THEN: each staged row still receives its own distinct server id

	mem := store.NewMemory()
	rec := reconcile.New(mem)
	p := plannerWith("2024-06-03", "2024-06-03", "2024-06-03")

	result, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attached)

	seen := make(map[schedule.ServerID]bool)
	for _, row := range p.Rows() {
		require.NotEmpty(t, row.ServerID)
		assert.False(t, seen[row.ServerID], "server id assigned twice")
		seen[row.ServerID] = true
	}
}

func TestSubmit_SkipsAlreadyReconciledRows(t *testing.T) {
	// GIVEN: one row already bound to a server identity and one fresh row,
	//        both selected
	// WHEN: submitting
	// THEN: only the fresh row is sent; the bound row keeps its identity
	//       and no extra server row appears for it

	mem := store.NewMemory()
	rec := reconcile.New(mem)
	p := plannerWith("2024-06-03", "2024-06-03")
	rows := p.Rows()
	require.NoError(t, p.Attach(rows[0].LocalID, "existing"))

	result, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Attached)
	assert.Equal(t, 1, mem.Count(), "only the fresh row may reach the store")

	after := p.Rows()
	assert.Equal(t, schedule.ServerID("existing"), after[0].ServerID)
	assert.NotEmpty(t, after[1].ServerID)
	assert.NotEqual(t, after[0].ServerID, after[1].ServerID)
}

func TestSubmit_ResubmitDoesNotDuplicate(t *testing.T) {
	// GIVEN: a batch that was already submitted in full
	// WHEN: submitting it again unchanged
	// THEN: nothing is written and no identity changes

	mem := store.NewMemory()
	rec := reconcile.New(mem)
	p := plannerWith("2024-06-03", "2024-06-10")

	first, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)
	require.Equal(t, 2, first.Attached)
	before := p.Rows()

	second, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Attached)
	assert.Empty(t, second.Persisted)
	assert.Equal(t, 2, mem.Count())

	after := p.Rows()
	for i := range before {
		assert.Equal(t, before[i].ServerID, after[i].ServerID)
	}
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestSubmit_NothingSelected(t *testing.T) {
	mem := store.NewMemory()
	rec := reconcile.New(mem)
	p := plannerWith("2024-06-03")
	p.DeselectAll()

	_, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	assert.True(t, errors.Is(err, schedule.ErrNothingSelected))
	assert.Equal(t, 0, mem.Count(), "no network write may happen for an empty selection")
}

func TestSubmit_BulkFailureLeavesRowsUntouched(t *testing.T) {
	// GIVEN: the bulk write fails
	// WHEN: submitting
	// THEN: no row changed; an identical retry then succeeds

	mem := store.NewMemory()
	mem.FailNextBulkInsert = errors.New("backend down")
	rec := reconcile.New(mem)
	p := plannerWith("2024-06-03", "2024-06-10")

	_, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.Error(t, err)
	for _, row := range p.Rows() {
		assert.Empty(t, row.ServerID)
	}
	assert.Equal(t, 0, mem.Count())

	result, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attached)
}

func TestSubmit_ShortfallReportedPerRow(t *testing.T) {
	// GIVEN: the store persists one row fewer than requested
	// WHEN: submitting two identical rows
	// THEN: the first (in submission order) is attached, the second is
	//       reported as a shortfall, and the call still succeeds

	mem := store.NewMemory()
	rec := reconcile.New(&dropFirstStore{Memory: mem})
	p := plannerWith("2024-06-03", "2024-06-03")

	result, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Attached)
	rows := p.Rows()
	assert.NotEmpty(t, rows[0].ServerID)
	assert.Empty(t, rows[1].ServerID)

	require.Len(t, result.Shortfalls, 1)
	assert.Equal(t, rows[1].LocalID, result.Shortfalls[0].LocalID)
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	mem := store.NewMemory()
	blocking := &blockingStore{Memory: mem, entered: make(chan struct{}), release: make(chan struct{})}
	rec := reconcile.New(blocking)

	first := make(chan error, 1)
	go func() {
		_, err := rec.Submit(context.Background(), plannerWith("2024-06-03"), testTemplate(), "20:00", "23:00")
		first <- err
	}()

	<-blocking.entered
	assert.True(t, rec.InFlight())

	_, err := rec.Submit(context.Background(), plannerWith("2024-06-10"), testTemplate(), "20:00", "23:00")
	assert.True(t, errors.Is(err, schedule.ErrSubmitInFlight))

	close(blocking.release)
	require.NoError(t, <-first)
	assert.False(t, rec.InFlight())
}

func TestSubmit_ConcurrentSnapshotReads(t *testing.T) {
	// GIVEN: a reader polling row snapshots while a submission runs
	// WHEN: submitting a large batch
	// THEN: every row is attached and the reader never observes a torn
	//       write (meaningful under the race detector)

	mem := store.NewMemory()
	rec := reconcile.New(mem)

	const n = 64
	p := planner.New(planner.Defaults{StartTime: "20:00", EndTime: "23:00"})
	anchor := date("2024-06-03")
	for i := 0; i < n; i++ {
		p.AddRow(anchor.AddDays(i))
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, row := range p.Rows() {
				_ = row.ServerID
				_ = row.FlyerState
			}
		}
	}()

	result, err := rec.Submit(context.Background(), p, testTemplate(), "20:00", "23:00")
	close(stop)
	<-done

	require.NoError(t, err)
	assert.Equal(t, n, result.Attached)
	for _, row := range p.Rows() {
		assert.NotEmpty(t, row.ServerID)
	}
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

// dropFirstStore persists everything but omits the first returned row,
// simulating a backend that created fewer rows than requested.
type dropFirstStore struct {
	*store.Memory
}

func (s *dropFirstStore) BulkInsert(ctx context.Context, payloads []schedule.DatePayload) ([]schedule.PersistedRow, error) {
	rows, err := s.Memory.BulkInsert(ctx, payloads)
	if err != nil || len(rows) == 0 {
		return rows, err
	}
	return rows[1:], nil
}

// blockingStore parks BulkInsert until released so a test can observe the
// in-flight window.
type blockingStore struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) BulkInsert(ctx context.Context, payloads []schedule.DatePayload) ([]schedule.PersistedRow, error) {
	close(s.entered)
	<-s.release
	return s.Memory.BulkInsert(ctx, payloads)
}
