package jobqueue

import (
	"context"
	"time"
)

// sweepInterval is how often the expiry sweeper wakes, per spec.md §4.2
// ("A background task wakes every second").
const sweepInterval = 1 * time.Second

// RunSweeper blocks, waking every sweepInterval to scan runningJobs for
// expiry. Each expired job is failed and reclaimed exactly like an
// explicit CancelJob. If anything changed the checkpoint is rewritten.
// RunSweeper returns when ctx is cancelled, after writing a final
// checkpoint.
func (e *Engine) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.Checkpoint()
		case <-ticker.C:
			if err := e.sweepOnce(); err != nil {
				return err
			}
		}
	}
}

// sweepOnce performs a single expiry + absorption pass.
func (e *Engine) sweepOnce() error {
	now := time.Now()

	e.mu.Lock()
	var expired []*Job
	for _, job := range e.runningJobs {
		if job.expired(now) {
			expired = append(expired, job)
		}
	}

	changed := len(expired) > 0
	for _, job := range expired {
		delete(e.runningJobs, job.ID)
		job.finish(now)
		e.reclaim(job)
		e.failedJobs = append(e.failedJobs, job.Data())
	}

	absorbed := e.absorb()
	changed = changed || len(absorbed) > 0

	var snapshot checkpointRecord
	if changed {
		snapshot = e.snapshotLocked()
	}
	e.mu.Unlock()

	for _, job := range expired {
		e.events.Publish(Event{Kind: EventExpired, JobID: job.ID, At: now})
	}
	for _, id := range absorbed {
		e.events.Publish(Event{Kind: EventAbsorbed, JobID: id, At: now})
	}

	if !changed {
		return nil
	}
	return e.writeCheckpoint(snapshot)
}
