// Package scheduler runs the background checkpoint job that periodically
// flushes every open table to disk on a cron schedule.
package scheduler

import (
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Flusher is the subset of catalog.Database the checkpoint job depends on.
// Naming it as an interface here, rather than importing catalog directly,
// avoids a needless dependency edge for the one method this package calls.
type Flusher interface {
	Flush() error
}

// Checkpointer periodically calls Flush on a Database according to a cron
// expression. It owns no table files itself — Flush's durability guarantee
// comes entirely from the core; this is a convenience that makes that
// guarantee apply on a schedule rather than only at Close.
type Checkpointer struct {
	mu      sync.Mutex
	cron    *cron.Cron
	db      Flusher
	running bool
}

// NewCheckpointer builds a Checkpointer that flushes db whenever expr (a
// standard five-field cron expression) fires.
func NewCheckpointer(db Flusher, expr string) (*Checkpointer, error) {
	c := cron.New()
	ck := &Checkpointer{cron: c, db: db}
	if _, err := c.AddFunc(expr, ck.runCheckpoint); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	return ck, nil
}

func (ck *Checkpointer) runCheckpoint() {
	if err := ck.db.Flush(); err != nil {
		log.Printf("scheduler: checkpoint flush failed: %v", err)
		return
	}
	log.Printf("scheduler: checkpoint flush completed")
}

// Start begins running the cron schedule in the background. Calling Start
// while the Checkpointer is already running has no effect.
func (ck *Checkpointer) Start() {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	if ck.running {
		return
	}
	ck.running = true
	ck.cron.Start()
}

// Stop halts the schedule and waits for any in-flight checkpoint to finish.
func (ck *Checkpointer) Stop() {
	ck.mu.Lock()
	defer ck.mu.Unlock()
	if !ck.running {
		return
	}
	ctx := ck.cron.Stop()
	<-ctx.Done()
	ck.running = false
}
