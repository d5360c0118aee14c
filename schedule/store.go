/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the contracts between the scheduling domain and the outside
  world: the calendar-date store, the flyer asset store, and the two
  read models (organizer profile, saved locations).

BULK-WRITE CONTRACT:
  BulkInsert is all-or-nothing: on error, no rows exist server-side and
  the caller's staged state is left untouched for retry. The returned
  rows match the input in cardinality but NOT necessarily in order; the
  store never echoes a client correlation id. Reconciliation (reconcile
  package) re-attaches identities via composite-key FIFO buckets.

SCOPED UPDATES:
  BulkUpdateByIDs applies one patch to a list of ids in a single call.
  A failure is treated as affecting none of the targeted rows.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - schedule/store: in-memory store for tests (returns bulk results in
    non-input order on purpose)
*/
package schedule

import (
	"context"
	"io"
)

// =============================================================================
// DATE STORE - Bulk calendar-date persistence
// =============================================================================

// RowPatch is a partial update for persisted rows. Nil fields are left
// unchanged.
type RowPatch struct {
	FlyerURL    *string
	Publication *PublicationState
}

type DateStore interface {
	// BulkInsert persists all payloads atomically and returns the created
	// rows. Same cardinality as the input; order is NOT guaranteed to
	// correspond to input order.
	BulkInsert(ctx context.Context, payloads []DatePayload) ([]PersistedRow, error)

	// BulkUpdateByIDs applies patch to every id in one call.
	BulkUpdateByIDs(ctx context.Context, ids []ServerID, patch RowPatch) error

	// Update applies patch to a single row and returns the updated row.
	Update(ctx context.Context, id ServerID, patch RowPatch) (*PersistedRow, error)

	// ListByParent returns the persisted one-off rows for a parent
	// (organizer or academy), for the upcoming display path.
	ListByParent(ctx context.Context, parentID string) ([]PersistedRow, error)
}

// =============================================================================
// ASSET STORE - Flyer uploads
// =============================================================================

// AssetStore uploads a flyer and returns its public URL. No implicit
// retry; a failed upload surfaces as an error and the caller decides.
type AssetStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// =============================================================================
// READ MODELS - Consumed read-only
// =============================================================================

// OrganizerProfile supplies contact defaults and the weekly rules an
// organizer or academy runs on.
type OrganizerProfile struct {
	ID          string
	Name        string
	Contact     string
	City        string
	RhythmIDs   []string
	ZoneIDs     []string
	WeeklyRules []RecurrenceRule
}

// SavedLocation is a reusable venue the organizer has stored.
type SavedLocation struct {
	ID      string
	Name    string
	Address string
	City    string
	ZoneIDs []string
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*OrganizerProfile, error)
}

type LocationStore interface {
	ListLocations(ctx context.Context, ownerID string) ([]SavedLocation, error)
	GetLocation(ctx context.Context, id string) (*SavedLocation, error)
}
