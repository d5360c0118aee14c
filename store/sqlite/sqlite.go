/*
Package sqlite provides the SQLite-backed implementation of the schedule
storage interfaces.

PURPOSE:
  Implements schedule.DateStore, schedule.ProfileStore and
  schedule.LocationStore. The same patterns apply to a hosted Postgres;
  only minor SQL dialect differences.

BULK-INSERT CONTRACT:
  BulkInsert writes all payloads inside one SQL transaction: either every
  row exists afterwards or none does. The created rows are returned
  ordered by server id, which intentionally does NOT correspond to input
  order - callers must reconcile by composite key, never by position.

KEY TABLES:
  event_dates:        One row per concrete calendar date of an event
  organizer_profiles: Read model for contact defaults and weekly rules
  saved_locations:    Read model for reusable venues

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/agenda.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ritmo/agenda-engine/schedule"
)

// Store implements the schedule storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS event_dates (
		server_id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL,
		calendar_date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		place TEXT,
		address TEXT,
		city TEXT,
		zone_ids_json TEXT,
		contact TEXT,
		notes TEXT,
		cronogram_json TEXT,
		costs_json TEXT,
		flyer_url TEXT,
		publication TEXT NOT NULL DEFAULT 'draft',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_event_dates_parent
		ON event_dates(parent_id, calendar_date);

	-- Reconciliation reads back by the composite key fields; keep them hot.
	CREATE INDEX IF NOT EXISTS idx_event_dates_composite
		ON event_dates(calendar_date, start_time, end_time, place, city, parent_id);

	CREATE TABLE IF NOT EXISTS organizer_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT,
		city TEXT,
		rhythm_ids_json TEXT,
		zone_ids_json TEXT,
		weekly_rules_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS saved_locations (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT,
		city TEXT,
		zone_ids_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_saved_locations_owner
		ON saved_locations(owner_id);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// =============================================================================
// DATE STORE
// =============================================================================

// BulkInsert persists all payloads atomically. Returned rows are ordered
// by server id, not input order.
func (s *Store) BulkInsert(ctx context.Context, payloads []schedule.DatePayload) ([]schedule.PersistedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	ids := make([]schedule.ServerID, 0, len(payloads))

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_dates (
			server_id, parent_id, calendar_date, start_time, end_time,
			place, address, city, zone_ids_json, contact, notes,
			cronogram_json, costs_json, flyer_url, publication,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range payloads {
		id := schedule.ServerID(uuid.NewString())
		if _, err := stmt.ExecContext(ctx,
			string(id), p.ParentID, p.Date.String(), p.StartTime, p.EndTime,
			p.Place, p.Address, p.City, marshalStrings(p.ZoneIDs), p.Contact, p.Notes,
			p.CronogramJSON, p.CostsJSON, p.FlyerURL, string(p.Publication),
			now, now,
		); err != nil {
			return nil, fmt.Errorf("insert event date: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk insert: %w", err)
	}

	return s.loadByIDs(ctx, ids)
}

// BulkUpdateByIDs applies one patch to every id in a single statement.
func (s *Store) BulkUpdateByIDs(ctx context.Context, ids []schedule.ServerID, patch schedule.RowPatch) error {
	if len(ids) == 0 {
		return nil
	}
	set, args := patchClause(patch)
	if set == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	for _, id := range ids {
		args = append(args, string(id))
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE event_dates SET %s WHERE server_id IN (%s)`, set, placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("bulk update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && int(affected) != len(ids) {
		return fmt.Errorf("bulk update: expected %d rows, updated %d", len(ids), affected)
	}
	return nil
}

// Update applies a patch to a single row and returns the updated row.
func (s *Store) Update(ctx context.Context, id schedule.ServerID, patch schedule.RowPatch) (*schedule.PersistedRow, error) {
	set, args := patchClause(patch)
	if set != "" {
		s.mu.Lock()
		args = append(args, string(id))
		_, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE event_dates SET %s WHERE server_id = ?`, set), args...)
		s.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("update row %s: %w", id, err)
		}
	}

	rows, err := s.loadByIDs(ctx, []schedule.ServerID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update: row %s not found", id)
	}
	return &rows[0], nil
}

// ListByParent returns all persisted rows for a parent, date ascending.
func (s *Store) ListByParent(ctx context.Context, parentID string) ([]schedule.PersistedRow, error) {
	rows, err := s.db.QueryContext(ctx, selectRows+`
		WHERE parent_id = ? ORDER BY calendar_date ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list by parent: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func patchClause(patch schedule.RowPatch) (string, []any) {
	var sets []string
	var args []any
	if patch.FlyerURL != nil {
		sets = append(sets, "flyer_url = ?")
		args = append(args, *patch.FlyerURL)
	}
	if patch.Publication != nil {
		sets = append(sets, "publication = ?")
		args = append(args, string(*patch.Publication))
	}
	if len(sets) == 0 {
		return "", nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	return strings.Join(sets, ", "), args
}

const selectRows = `
	SELECT server_id, parent_id, calendar_date, start_time, end_time,
	       place, address, city, zone_ids_json, contact, notes,
	       flyer_url, publication
	FROM event_dates`

func (s *Store) loadByIDs(ctx context.Context, ids []schedule.ServerID) ([]schedule.PersistedRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, string(id))
	}

	rows, err := s.db.QueryContext(ctx,
		selectRows+fmt.Sprintf(` WHERE server_id IN (%s) ORDER BY server_id`, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]schedule.PersistedRow, error) {
	var result []schedule.PersistedRow
	for rows.Next() {
		var (
			row                      schedule.PersistedRow
			serverID, dateStr        string
			zonesJSON, publication   sql.NullString
			startTime, endTime       sql.NullString
			place, address, city     sql.NullString
			contact, notes, flyerURL sql.NullString
		)
		if err := rows.Scan(&serverID, &row.ParentID, &dateStr, &startTime, &endTime,
			&place, &address, &city, &zonesJSON, &contact, &notes,
			&flyerURL, &publication); err != nil {
			return nil, fmt.Errorf("scan event date: %w", err)
		}
		date, err := schedule.ParseCivilDate(dateStr)
		if err != nil {
			return nil, err
		}
		row.ServerID = schedule.ServerID(serverID)
		row.Date = date
		row.StartTime = startTime.String
		row.EndTime = endTime.String
		row.Place = place.String
		row.Address = address.String
		row.City = city.String
		row.ZoneIDs = unmarshalStrings(zonesJSON.String)
		row.Contact = contact.String
		row.Notes = notes.String
		row.FlyerURL = flyerURL.String
		row.Publication = schedule.PublicationState(publication.String)
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// READ MODELS
// =============================================================================

func (s *Store) GetProfile(ctx context.Context, id string) (*schedule.OrganizerProfile, error) {
	var (
		p                         schedule.OrganizerProfile
		rhythms, zones, rulesJSON sql.NullString
		contact, city             sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact, city, rhythm_ids_json, zone_ids_json, weekly_rules_json
		FROM organizer_profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &contact, &city, &rhythms, &zones, &rulesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.Contact = contact.String
	p.City = city.String
	p.RhythmIDs = unmarshalStrings(rhythms.String)
	p.ZoneIDs = unmarshalStrings(zones.String)
	if rulesJSON.String != "" {
		if err := json.Unmarshal([]byte(rulesJSON.String), &p.WeeklyRules); err != nil {
			return nil, fmt.Errorf("decode weekly rules for %s: %w", id, err)
		}
	}
	return &p, nil
}

// PutProfile inserts or replaces an organizer profile (seed/admin path).
func (s *Store) PutProfile(ctx context.Context, p schedule.OrganizerProfile) error {
	rules, err := json.Marshal(p.WeeklyRules)
	if err != nil {
		return fmt.Errorf("encode weekly rules: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO organizer_profiles
			(id, name, contact, city, rhythm_ids_json, zone_ids_json, weekly_rules_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Contact, p.City,
		marshalStrings(p.RhythmIDs), marshalStrings(p.ZoneIDs), string(rules),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) ListLocations(ctx context.Context, ownerID string) ([]schedule.SavedLocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, city, zone_ids_json
		FROM saved_locations WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var result []schedule.SavedLocation
	for rows.Next() {
		var (
			l                    schedule.SavedLocation
			address, city, zones sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Name, &address, &city, &zones); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		l.Address = address.String
		l.City = city.String
		l.ZoneIDs = unmarshalStrings(zones.String)
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) GetLocation(ctx context.Context, id string) (*schedule.SavedLocation, error) {
	var (
		l                    schedule.SavedLocation
		address, city, zones sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, city, zone_ids_json
		FROM saved_locations WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &address, &city, &zones)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	l.Address = address.String
	l.City = city.String
	l.ZoneIDs = unmarshalStrings(zones.String)
	return &l, nil
}

// PutLocation inserts or replaces a saved location (seed/admin path).
func (s *Store) PutLocation(ctx context.Context, ownerID string, l schedule.SavedLocation) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO saved_locations
			(id, owner_id, name, address, city, zone_ids_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, ownerID, l.Name, l.Address, l.City, marshalStrings(l.ZoneIDs),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalStrings(v []string) string {
	if len(v) == 0 {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
