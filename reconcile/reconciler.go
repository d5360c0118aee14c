/*
Package reconcile submits a staged batch in one bulk write and binds the
returned server identities back onto the staging list.

PURPOSE:
  The store's BulkInsert does not echo back a client correlation id, and
  two staged rows can be structurally identical (same date, times, place,
  city, parent). A plain key->id map could hand the same persisted row to
  two staged rows, or leave one unmapped. The reconciler instead buckets
  the returned rows by composite key into FIFO queues and drains them in
  the original submission order, which matches duplicates one-to-one
  deterministically.

GUARANTEES:
  - All-or-nothing: if the bulk write fails, no staged row changes at all;
    the batch is retryable as-is.
  - Rows that already carry a server identity are excluded from the
    payload entirely, so resubmitting a batch never creates a duplicate
    server-side event.
  - A row whose bucket is empty at its turn is reported individually and
    does not disturb mappings already made.
  - The reconciler never holds live staged rows: it submits from a
    snapshot and attaches identities through the staging list's own
    guarded Attach, so readers polling the batch never race the write.
  - A second Submit while one is in flight is rejected outright.
*/
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ritmo/agenda-engine/schedule"
)

// Staging is the slice of the planner the reconciler works through: the
// selected snapshot in submission order, and lock-guarded identity
// attachment.
type Staging interface {
	SelectedRows() []schedule.StagedRow
	Attach(id schedule.LocalID, serverID schedule.ServerID) error
}

// Reconciler drives submission for one staging batch.
type Reconciler struct {
	store schedule.DateStore

	mu       sync.Mutex
	inFlight bool
}

func New(store schedule.DateStore) *Reconciler {
	return &Reconciler{store: store}
}

// Result reports the outcome of a successful bulk write.
type Result struct {
	Attached   int
	Persisted  []schedule.PersistedRow
	Shortfalls []*schedule.ShortfallError
}

// Submit builds one payload per selected unreconciled row (template merged
// with the row's date/time window), performs the bulk write, and attaches
// the returned server identities through the staging list.
//
// The payloads are snapshots: edits made to a row after Submit starts do
// not change what was sent. That race is accepted; the snapshot is
// authoritative.
func (r *Reconciler) Submit(ctx context.Context, staging Staging, tpl Template, defaultStart, defaultEnd string) (*Result, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	rows := staging.SelectedRows()
	if len(rows) == 0 {
		return nil, schedule.ErrNothingSelected
	}

	// Snapshot payloads in row order, skipping rows that already carry a
	// server identity. pending[i] belongs to payloads[i].
	pending := make([]schedule.StagedRow, 0, len(rows))
	payloads := make([]schedule.DatePayload, 0, len(rows))
	for _, row := range rows {
		if row.Reconciled() {
			continue
		}
		pending = append(pending, row)
		payloads = append(payloads, tpl.BuildPayload(row, defaultStart, defaultEnd))
	}

	result := &Result{}
	if len(payloads) == 0 {
		// Everything selected is already persisted; nothing to send.
		return result, nil
	}

	persisted, err := r.store.BulkInsert(ctx, payloads)
	if err != nil {
		// Nothing exists server-side and nothing was mutated locally.
		return nil, fmt.Errorf("bulk insert: %w", err)
	}
	result.Persisted = persisted

	// Bucket returned rows by composite key, FIFO within each bucket.
	buckets := make(map[schedule.CompositeKey][]schedule.ServerID)
	for _, p := range persisted {
		k := p.Key()
		buckets[k] = append(buckets[k], p.ServerID)
	}

	// Drain buckets in original submission order. Submission order is the
	// tie-break for structurally identical rows.
	for i, row := range pending {
		k := payloads[i].Key()
		queue := buckets[k]
		if len(queue) == 0 {
			result.Shortfalls = append(result.Shortfalls, &schedule.ShortfallError{
				LocalID: row.LocalID,
				Key:     k,
			})
			log.Printf("[Reconcile] no persisted row for staged row %s (%s)", row.LocalID, k.Date)
			continue
		}
		buckets[k] = queue[1:]

		if err := staging.Attach(row.LocalID, queue[0]); err != nil {
			// The row was removed or attached mid-flight; the persisted
			// row stays, unmapped.
			log.Printf("[Reconcile] attach %s: %v", row.LocalID, err)
			continue
		}
		result.Attached++
	}

	return result, nil
}

// InFlight reports whether a submission is currently running; the UI uses
// it to keep the submit control disabled.
func (r *Reconciler) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *Reconciler) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return schedule.ErrSubmitInFlight
	}
	r.inFlight = true
	return nil
}

func (r *Reconciler) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false
}
