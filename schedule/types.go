/*
Package schedule provides the core event-date scheduling engine.

PURPOSE:
  This package contains the domain types and algorithms shared by the
  planner, reconciler and flyer tracker: civil dates and clock times in the
  fixed business timezone, weekly recurrence expansion, the "upcoming"
  occurrence filter, and the persistence contracts the rest of the system
  is written against.

KEY CONCEPTS IN THIS FILE (types.go):
  - RecurrenceRule: "every week on this weekday at this time"
  - Occurrence: a derived, never-persisted calendar slot
  - StagedRow: a client-held draft calendar row awaiting batch submission
  - PersistedRow: what the store returns after a bulk write
  - CompositeKey: the tuple used to match staged rows to persisted rows

DESIGN PRINCIPLES:
  1. Stable identity: a StagedRow is keyed by a generated LocalID,
     never by its position in a slice
  2. Derived data stays derived: Occurrences are recomputed on each read
  3. Type safety: LocalID and ServerID are distinct types so the two
     identity spaces cannot be mixed up

SEE ALSO:
  - recurrence.go: weekly rule expansion
  - filter.go: upcoming-occurrence filtering
  - store.go: persistence and read-model contracts
*/
package schedule

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// LocalID identifies a staged row for its whole client-side lifetime.
// It is minted once at creation and never reused.
type LocalID string

// ServerID identifies a persisted calendar row.
type ServerID string

// NewLocalID mints a fresh staged-row identifier.
func NewLocalID() LocalID {
	return LocalID(uuid.NewString())
}

// =============================================================================
// RECURRENCE RULE - "every week on this weekday"
// =============================================================================

type RecurrenceRule struct {
	Weekday   time.Weekday
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM", may be empty
}

// =============================================================================
// OCCURRENCE - Derived calendar slot, recomputed on each read
// =============================================================================

type Occurrence struct {
	SourceID        string
	Date            CivilDate
	StartTime       string
	EndTime         string
	IsRecurring     bool
	RecurrenceIndex int
}

// =============================================================================
// STAGED ROW - Client-held draft, lives in memory until reconciled
// =============================================================================

type PublicationState string

const (
	PublicationDraft     PublicationState = "draft"
	PublicationPublished PublicationState = "published"
)

type FlyerState string

const (
	FlyerPending   FlyerState = "PENDING"
	FlyerUploading FlyerState = "UPLOADING"
	FlyerDone      FlyerState = "DONE"
	FlyerError     FlyerState = "ERROR"
)

type StagedRow struct {
	LocalID     LocalID
	Date        CivilDate
	StartTime   string
	EndTime     string
	Publication PublicationState
	Notes       string
	Selected    bool
	FlyerState  FlyerState
	FlyerURL    string

	// ServerID is empty until reconciliation attaches the persisted
	// identity. At most one ServerID is ever attached to a row.
	ServerID ServerID
}

// Reconciled reports whether the row has a persisted identity yet.
// Flyer uploads and publish toggles require a reconciled row.
func (r *StagedRow) Reconciled() bool { return r.ServerID != "" }

// =============================================================================
// PERSISTED ROW - Returned by the bulk write; carries no client id
// =============================================================================

type PersistedRow struct {
	ServerID    ServerID
	ParentID    string
	Date        CivilDate
	StartTime   string
	EndTime     string
	Place       string
	Address     string
	City        string
	ZoneIDs     []string
	Contact     string
	Notes       string
	FlyerURL    string
	Publication PublicationState
}

// =============================================================================
// COMPOSITE KEY - Reconciliation bucket key
// =============================================================================

// CompositeKey is the tuple shared by a submitted payload and the persisted
// row the store created from it. The bulk write does not echo back a client
// correlation id, so this key (bucketed FIFO, see reconcile package) is the
// only way to re-attach server identities.
type CompositeKey struct {
	Date      string
	StartTime string
	EndTime   string
	Place     string
	City      string
	ParentID  string
}

// Key computes the composite key of a persisted row.
func (p PersistedRow) Key() CompositeKey {
	return CompositeKey{
		Date:      p.Date.String(),
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Place:     p.Place,
		City:      p.City,
		ParentID:  p.ParentID,
	}
}

// =============================================================================
// DATE PAYLOAD - One row of the bulk write
// =============================================================================

// DatePayload is the snapshot sent to the store for one selected staged row:
// the shared template merged with that row's date and time window. Payloads
// are immutable once built; later edits to the staged row do not change
// what was submitted.
type DatePayload struct {
	ParentID      string
	Date          CivilDate
	StartTime     string
	EndTime       string
	Place         string
	Address       string
	City          string
	ZoneIDs       []string
	Contact       string
	Notes         string
	CronogramJSON string
	CostsJSON     string
	FlyerURL      string
	Publication   PublicationState
}

// Key computes the composite key of a payload. Must agree field-for-field
// with PersistedRow.Key for reconciliation to work.
func (p DatePayload) Key() CompositeKey {
	return CompositeKey{
		Date:      p.Date.String(),
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Place:     p.Place,
		City:      p.City,
		ParentID:  p.ParentID,
	}
}
