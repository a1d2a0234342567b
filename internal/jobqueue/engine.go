package jobqueue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EventKind enumerates the lifecycle transitions the Engine reports to an
// optional EventSink, used by the coordinator's websocket status stream.
type EventKind string

const (
	EventIssued    EventKind = "issued"
	EventUpdated   EventKind = "updated"
	EventFinished  EventKind = "finished"
	EventCancelled EventKind = "cancelled"
	EventExpired   EventKind = "expired"
	EventAbsorbed  EventKind = "absorbed"
)

// Event describes a single job lifecycle transition.
type Event struct {
	Kind EventKind `json:"event"`
	JobID int64    `json:"jobId"`
	At   time.Time `json:"at"`
}

// EventSink receives lifecycle events. Publish must not block; it is
// called inline from the Engine's operations, right after the Engine's
// mutex has been released.
type EventSink interface {
	Publish(Event)
}

// noopSink discards events; it is the default EventSink so Engine can be
// used standalone without a coordinator attached.
type noopSink struct{}

func (noopSink) Publish(Event) {}

// Status is the derived-counters response of spec.md §6.
type Status struct {
	RuntimeSeconds     float64 `json:"runtimeSeconds"`
	CompletedSearches  int64   `json:"completedSearches"`
	SearchesPerSeconds float64 `json:"searchesPerSeconds"`
	NextStartIndex     int64   `json:"nextStartIndex"`
	CompletedEndIndex  int64   `json:"completedEndIndex"`
	RunningJobsCount   int     `json:"runningJobsCount"`
	PendingJobsCount   int     `json:"pendingJobsCount"`
	FailedJobsCount    int     `json:"failedJobsCount"`
	CompletedJobsCount int     `json:"completedJobsCount"`
	ResultsCount       int     `json:"resultsCount"`
}

// JobTiming carries the worker-visible timing knobs reported by
// GET /configuration/job.
type JobTiming struct {
	TargetDurationSeconds int64 `json:"targetDurationSeconds"`
	UpdateIntervalSeconds int64 `json:"updateIntervalSeconds"`
	TimeoutSeconds        int64 `json:"timeoutSeconds"`
}

// Engine is the process-wide singleton owning the search cursor and the
// four job collections. All mutations are serialized under mu; no
// operation performs I/O while holding it — checkpoint writes snapshot
// the data under the lock and write it out afterwards.
type Engine struct {
	mu sync.Mutex

	initialStartIndex int64
	nextStartIndex     int64
	completedEndIndex  int64
	nextJobID          int64

	runningJobs map[int64]*Job
	pendingJobs map[int64]*Job
	failedJobs  []Data
	completedJobs []Data
	results     []json.RawMessage

	startTimestamp time.Time
	timing         JobTiming

	checkpointPath string
	events         EventSink
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithEventSink attaches a sink that receives lifecycle events.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.events = sink
		}
	}
}

// New constructs an Engine starting from startIndex (the persisted cursor
// on restart, or 1 for a fresh search space — see _examples/
// original_source/Server/search.py, which seeds all three cursors at 1).
func New(startIndex int64, timing JobTiming, checkpointPath string, opts ...Option) *Engine {
	e := &Engine{
		initialStartIndex: startIndex,
		nextStartIndex:    startIndex,
		completedEndIndex: startIndex,
		runningJobs:       make(map[int64]*Job),
		pendingJobs:       make(map[int64]*Job),
		startTimestamp:    time.Now(),
		timing:            timing,
		checkpointPath:    checkpointPath,
		events:            noopSink{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timing returns the worker-visible job timing configuration.
func (e *Engine) Timing() JobTiming {
	return e.timing
}

// IssueJob creates a Running job covering [nextStartIndex,
// nextStartIndex+batchSize) and advances nextStartIndex.
func (e *Engine) IssueJob(batchSize int64) (Data, error) {
	if batchSize < 1 {
		return Data{}, fmt.Errorf("batchSize must be >= 1, got %d", batchSize)
	}

	e.mu.Lock()
	now := time.Now()
	e.nextJobID++
	job := newJob(e.nextJobID, e.nextStartIndex, batchSize, e.timing.TimeoutSeconds, now)
	e.nextStartIndex += batchSize
	e.runningJobs[job.ID] = job
	data := job.Data()
	e.mu.Unlock()

	e.events.Publish(Event{Kind: EventIssued, JobID: job.ID, At: now})
	return data, nil
}

// UpdateJob heartbeats a Running job. Returns false if the job is not
// currently Running.
func (e *Engine) UpdateJob(id int64) bool {
	e.mu.Lock()
	job, ok := e.runningJobs[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	now := time.Now()
	job.update(now)
	e.mu.Unlock()

	e.events.Publish(Event{Kind: EventUpdated, JobID: id, At: now})
	return true
}

// FinishJob transitions a Running job to Pending and runs the absorption
// sweep. Returns false if the job is not currently Running.
func (e *Engine) FinishJob(id int64) (bool, error) {
	e.mu.Lock()
	job, ok := e.runningJobs[id]
	if !ok {
		e.mu.Unlock()
		return false, nil
	}
	delete(e.runningJobs, id)
	now := time.Now()
	job.finish(now)
	e.pendingJobs[job.ID] = job
	absorbed := e.absorb()
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.events.Publish(Event{Kind: EventFinished, JobID: id, At: now})
	for _, a := range absorbed {
		e.events.Publish(Event{Kind: EventAbsorbed, JobID: a, At: now})
	}
	if err := e.writeCheckpoint(snapshot); err != nil {
		return true, fmt.Errorf("write checkpoint: %w", err)
	}
	return true, nil
}

// CancelJob transitions a Running job to Failed and reclaims its range.
// Returns false if the job is not currently Running.
func (e *Engine) CancelJob(id int64) (bool, error) {
	e.mu.Lock()
	job, ok := e.runningJobs[id]
	if !ok {
		e.mu.Unlock()
		return false, nil
	}
	delete(e.runningJobs, id)
	now := time.Now()
	job.finish(now)
	e.reclaim(job)
	e.failedJobs = append(e.failedJobs, job.Data())
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.events.Publish(Event{Kind: EventCancelled, JobID: id, At: now})
	if err := e.writeCheckpoint(snapshot); err != nil {
		return true, fmt.Errorf("write checkpoint: %w", err)
	}
	return true, nil
}

// AcceptResults appends results to the engine's result set unconditionally.
func (e *Engine) AcceptResults(results []json.RawMessage) error {
	e.mu.Lock()
	e.results = append(e.results, results...)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.writeCheckpoint(snapshot); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Status returns the derived counters and throughput of spec.md §6.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	runtime := time.Since(e.startTimestamp).Seconds()
	completed := e.completedEndIndex - e.initialStartIndex
	var perSecond float64
	if runtime > 0 {
		perSecond = float64(completed) / runtime
	}

	return Status{
		RuntimeSeconds:     runtime,
		CompletedSearches:  completed,
		SearchesPerSeconds: perSecond,
		NextStartIndex:     e.nextStartIndex,
		CompletedEndIndex:  e.completedEndIndex,
		RunningJobsCount:   len(e.runningJobs),
		PendingJobsCount:   len(e.pendingJobs),
		FailedJobsCount:    len(e.failedJobs),
		CompletedJobsCount: len(e.completedJobs),
		ResultsCount:       len(e.results),
	}
}

// RunningJobs returns a snapshot of currently Running jobs.
func (e *Engine) RunningJobs() []Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Data, 0, len(e.runningJobs))
	for _, j := range e.runningJobs {
		out = append(out, j.Data())
	}
	return out
}

// PendingJobs returns a snapshot of currently Pending jobs.
func (e *Engine) PendingJobs() []Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Data, 0, len(e.pendingJobs))
	for _, j := range e.pendingJobs {
		out = append(out, j.Data())
	}
	return out
}

// FailedJobs returns the ordered sequence of Failed job snapshots.
func (e *Engine) FailedJobs() []Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Data, len(e.failedJobs))
	copy(out, e.failedJobs)
	return out
}

// CompletedJobs returns the ordered sequence of Completed job snapshots.
func (e *Engine) CompletedJobs() []Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Data, len(e.completedJobs))
	copy(out, e.completedJobs)
	return out
}

// Results returns the ordered sequence of accepted results.
func (e *Engine) Results() []json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]json.RawMessage, len(e.results))
	copy(out, e.results)
	return out
}

// absorb repeatedly promotes contiguous Pending jobs into the Completed
// prefix. Must be called with mu held. Returns the IDs absorbed, in
// absorption order.
func (e *Engine) absorb() []int64 {
	var absorbedIDs []int64
	for {
		var next *Job
		for _, job := range e.pendingJobs {
			if job.StartIndex <= e.completedEndIndex {
				if next == nil || job.ID < next.ID {
					next = job
				}
			}
		}
		if next == nil {
			return absorbedIDs
		}

		delete(e.pendingJobs, next.ID)
		if next.StartIndex > e.nextStartIndex {
			e.nextStartIndex = next.StartIndex
		}
		if next.EndIndex > e.completedEndIndex {
			e.completedEndIndex = next.EndIndex
		}
		e.completedJobs = append(e.completedJobs, next.Data())
		absorbedIDs = append(absorbedIDs, next.ID)
	}
}

// reclaim rewinds nextStartIndex so a lost range is reissued. Must be
// called with mu held, on a job that has already left runningJobs.
func (e *Engine) reclaim(job *Job) {
	if job.StartIndex < e.nextStartIndex {
		e.nextStartIndex = job.StartIndex
	}
}

// snapshotLocked builds the persistence record. Must be called with mu
// held; the returned value is safe to use after unlocking.
func (e *Engine) snapshotLocked() checkpointRecord {
	results := make([]json.RawMessage, len(e.results))
	copy(results, e.results)
	failed := make([]Data, len(e.failedJobs))
	copy(failed, e.failedJobs)
	completed := make([]Data, len(e.completedJobs))
	copy(completed, e.completedJobs)

	return checkpointRecord{
		Index:     e.completedEndIndex,
		Results:   results,
		Failed:    failed,
		Completed: completed,
	}
}
