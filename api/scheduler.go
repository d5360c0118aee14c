/*
scheduler.go - Stale staging-batch purge

PURPOSE:
  Staging batches live only in memory while an organizer drafts a bulk
  creation. Abandoned ones would accumulate forever, so a cron-driven
  job drops batches untouched for longer than the configured TTL.
  Batches with a submission in flight are never purged.

USAGE:
  purger := NewPurgeScheduler(registry, "0 4 * * *", 48*time.Hour)
  purger.Start()
  // ... later
  purger.Stop()
*/
package api

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// PurgeScheduler drops stale staging batches on a cron schedule.
type PurgeScheduler struct {
	Registry *Registry
	Spec     string
	TTL      time.Duration

	cron *cron.Cron
}

func NewPurgeScheduler(registry *Registry, spec string, ttl time.Duration) *PurgeScheduler {
	return &PurgeScheduler{Registry: registry, Spec: spec, TTL: ttl}
}

// Start schedules the purge job. Invalid specs are logged and disable
// purging rather than failing startup.
func (ps *PurgeScheduler) Start() {
	ps.cron = cron.New()
	if _, err := ps.cron.AddFunc(ps.Spec, ps.runOnce); err != nil {
		log.Printf("[Purge] invalid cron spec %q: %v (purge disabled)", ps.Spec, err)
		ps.cron = nil
		return
	}
	ps.cron.Start()
	log.Printf("[Purge] scheduled %q, ttl %v", ps.Spec, ps.TTL)
}

// Stop halts the scheduler and waits for a running job to finish.
func (ps *PurgeScheduler) Stop() {
	if ps.cron != nil {
		<-ps.cron.Stop().Done()
		log.Println("[Purge] stopped")
	}
}

func (ps *PurgeScheduler) runOnce() {
	if purged := ps.Registry.PurgeStale(ps.TTL); purged > 0 {
		log.Printf("[Purge] dropped %d stale batches (%d live)", purged, ps.Registry.Len())
	}
}
