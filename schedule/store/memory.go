// Package store provides in-memory implementations of the schedule
// persistence contracts, for tests and local development.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/ritmo/agenda-engine/schedule"
)

// =============================================================================
// MEMORY DATE STORE
// =============================================================================

// Memory implements schedule.DateStore, ProfileStore and LocationStore.
//
// BulkInsert deliberately returns the created rows in REVERSE input order:
// the real backend does not guarantee input order either, and reconciliation
// must not accidentally depend on it.
type Memory struct {
	mu        sync.RWMutex
	rows      map[schedule.ServerID]schedule.PersistedRow
	order     []schedule.ServerID
	profiles  map[string]schedule.OrganizerProfile
	locations map[string]schedule.SavedLocation

	// FailNextBulkInsert / FailNextBulkUpdate inject a one-shot failure
	// on the next corresponding call.
	FailNextBulkInsert error
	FailNextBulkUpdate error
}

func NewMemory() *Memory {
	return &Memory{
		rows:      make(map[schedule.ServerID]schedule.PersistedRow),
		profiles:  make(map[string]schedule.OrganizerProfile),
		locations: make(map[string]schedule.SavedLocation),
	}
}

func (m *Memory) BulkInsert(_ context.Context, payloads []schedule.DatePayload) ([]schedule.PersistedRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNextBulkInsert; err != nil {
		m.FailNextBulkInsert = nil
		return nil, err
	}

	created := make([]schedule.PersistedRow, 0, len(payloads))
	for _, p := range payloads {
		row := schedule.PersistedRow{
			ServerID:    schedule.ServerID(uuid.NewString()),
			ParentID:    p.ParentID,
			Date:        p.Date,
			StartTime:   p.StartTime,
			EndTime:     p.EndTime,
			Place:       p.Place,
			Address:     p.Address,
			City:        p.City,
			ZoneIDs:     append([]string(nil), p.ZoneIDs...),
			Contact:     p.Contact,
			Notes:       p.Notes,
			FlyerURL:    p.FlyerURL,
			Publication: p.Publication,
		}
		m.rows[row.ServerID] = row
		m.order = append(m.order, row.ServerID)
		created = append(created, row)
	}

	// Reverse before returning; see type comment.
	for i, j := 0, len(created)-1; i < j; i, j = i+1, j-1 {
		created[i], created[j] = created[j], created[i]
	}
	return created, nil
}

func (m *Memory) BulkUpdateByIDs(_ context.Context, ids []schedule.ServerID, patch schedule.RowPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNextBulkUpdate; err != nil {
		m.FailNextBulkUpdate = nil
		return err
	}

	// All-or-nothing: verify every id first.
	for _, id := range ids {
		if _, ok := m.rows[id]; !ok {
			return fmt.Errorf("bulk update: unknown row %s", id)
		}
	}
	for _, id := range ids {
		row := m.rows[id]
		applyPatch(&row, patch)
		m.rows[id] = row
	}
	return nil
}

func (m *Memory) Update(_ context.Context, id schedule.ServerID, patch schedule.RowPatch) (*schedule.PersistedRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("update: unknown row %s", id)
	}
	applyPatch(&row, patch)
	m.rows[id] = row
	return &row, nil
}

func (m *Memory) ListByParent(_ context.Context, parentID string) ([]schedule.PersistedRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []schedule.PersistedRow
	for _, id := range m.order {
		if row := m.rows[id]; row.ParentID == parentID {
			result = append(result, row)
		}
	}
	return result, nil
}

// Get returns a persisted row by id, for test assertions.
func (m *Memory) Get(id schedule.ServerID) (schedule.PersistedRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	return row, ok
}

// Count returns how many rows exist, for test assertions.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

func applyPatch(row *schedule.PersistedRow, patch schedule.RowPatch) {
	if patch.FlyerURL != nil {
		row.FlyerURL = *patch.FlyerURL
	}
	if patch.Publication != nil {
		row.Publication = *patch.Publication
	}
}

// =============================================================================
// READ MODELS
// =============================================================================

func (m *Memory) PutProfile(_ context.Context, p schedule.OrganizerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *Memory) GetProfile(_ context.Context, id string) (*schedule.OrganizerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) PutLocation(_ context.Context, _ string, l schedule.SavedLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[l.ID] = l
	return nil
}

func (m *Memory) ListLocations(_ context.Context, ownerID string) ([]schedule.SavedLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []schedule.SavedLocation
	for _, l := range m.locations {
		result = append(result, l)
	}
	return result, nil
}

func (m *Memory) GetLocation(_ context.Context, id string) (*schedule.SavedLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// =============================================================================
// MEMORY ASSET STORE
// =============================================================================

// MemoryAssets implements schedule.AssetStore for tests. Uploads succeed
// with a deterministic URL unless FailNextUpload is set.
type MemoryAssets struct {
	mu             sync.Mutex
	uploads        []string
	FailNextUpload error
}

func NewMemoryAssets() *MemoryAssets {
	return &MemoryAssets{}
}

func (a *MemoryAssets) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.FailNextUpload; err != nil {
		a.FailNextUpload = nil
		return "", err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", errors.New("read upload body")
	}
	url := "https://cdn.test/flyers/" + name
	a.uploads = append(a.uploads, url)
	return url, nil
}

// Uploaded returns the URLs handed out so far.
func (a *MemoryAssets) Uploaded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.uploads...)
}
