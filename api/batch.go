/*
batch.go - In-memory staging batch registry

PURPOSE:
  A staging batch is the server-side stand-in for "client memory": the
  planner, the shared template, the reconciler and the flyer tracker for
  one bulk-creation session. Batches live only in memory, keyed by a
  generated id, and are purged when untouched for too long (scheduler.go).
*/
package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ritmo/agenda-engine/flyer"
	"github.com/ritmo/agenda-engine/planner"
	"github.com/ritmo/agenda-engine/reconcile"
	"github.com/ritmo/agenda-engine/schedule"
)

// Batch bundles the staging state of one bulk-creation session.
type Batch struct {
	ID         string
	ParentID   string
	Planner    *planner.Planner
	Template   reconcile.Template
	Reconciler *reconcile.Reconciler
	Tracker    *flyer.Tracker
	Defaults   planner.Defaults

	lastTouched time.Time
}

// Registry holds the live batches.
type Registry struct {
	mu      sync.Mutex
	batches map[string]*Batch
}

func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*Batch)}
}

func (r *Registry) Create(parentID string, tpl reconcile.Template, defaults planner.Defaults, store schedule.DateStore, assets schedule.AssetStore) *Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := planner.New(defaults)
	if tpl.GeneralFlyerURL != "" {
		p.SetGeneralFlyer(tpl.GeneralFlyerURL)
	}
	b := &Batch{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		Planner:     p,
		Template:    tpl,
		Reconciler:  reconcile.New(store),
		Tracker:     flyer.NewTracker(store, assets, p),
		Defaults:    defaults,
		lastTouched: time.Now(),
	}
	r.batches[b.ID] = b
	return b
}

// Get returns a batch and refreshes its purge clock.
func (r *Registry) Get(id string) (*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[id]
	if !ok {
		return nil, schedule.ErrBatchNotFound
	}
	b.lastTouched = time.Now()
	return b, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.batches, id)
}

// PurgeStale drops batches untouched for longer than ttl, skipping any
// with a submission in flight. Returns how many were dropped.
func (r *Registry) PurgeStale(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	purged := 0
	for id, b := range r.batches {
		if b.lastTouched.Before(cutoff) && !b.Reconciler.InFlight() {
			delete(r.batches, id)
			purged++
		}
	}
	return purged
}

// Len reports the number of live batches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}
