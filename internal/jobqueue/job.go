// Package jobqueue implements the dispatch/scheduler core: the Job entity
// and the Engine that hands out contiguous index ranges, tracks their
// lifecycle, and advances the completed-up-to cursor.
package jobqueue

import "time"

// Job is an immutable range descriptor plus a handful of lifecycle
// timestamps. Callers are expected to hold the owning Engine's mutex
// before calling any method here — Job itself does no locking.
type Job struct {
	ID             int64
	StartIndex     int64
	EndIndex       int64
	BatchSize      int64
	TimeoutSeconds int64
	StartTimestamp float64
	UpdateTimestamp float64
	EndTimestamp   *float64
}

// newJob creates a Running job covering [startIndex, startIndex+batchSize).
func newJob(id, startIndex, batchSize, timeoutSeconds int64, now time.Time) *Job {
	ts := timestamp(now)
	return &Job{
		ID:              id,
		StartIndex:      startIndex,
		EndIndex:        startIndex + batchSize,
		BatchSize:       batchSize,
		TimeoutSeconds:  timeoutSeconds,
		StartTimestamp:  ts,
		UpdateTimestamp: ts,
		EndTimestamp:    nil,
	}
}

// timestamp converts a time.Time to the float-seconds-since-epoch shape
// used throughout the wire protocol (see Data's field types).
func timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// live reports whether the job has not yet finished.
func (j *Job) live() bool {
	return j.EndTimestamp == nil
}

// update sets UpdateTimestamp to now iff the job is still live. Heartbeats
// are the only thing that defers expiry — a worker that streams periodic
// updates can legitimately hold a job longer than one timeout window.
func (j *Job) update(now time.Time) {
	if j.live() {
		j.UpdateTimestamp = timestamp(now)
	}
}

// finish sets EndTimestamp iff the job is still live. EndTimestamp is
// write-once.
func (j *Job) finish(now time.Time) {
	if j.live() {
		ts := timestamp(now)
		j.EndTimestamp = &ts
	}
}

// expired reports whether a live job has gone at least TimeoutSeconds
// since its last heartbeat. A finished job can never expire.
func (j *Job) expired(now time.Time) bool {
	if !j.live() {
		return false
	}
	return timestamp(now)-j.UpdateTimestamp >= float64(j.TimeoutSeconds)
}

// Data is the stable wire representation of a Job, field names fixed by
// spec.md §6.
type Data struct {
	ID              int64    `json:"id"`
	StartIndex      int64    `json:"startIndex"`
	EndIndex        int64    `json:"endIndex"`
	BatchSize       int64    `json:"batchSize"`
	TimeoutSeconds  int64    `json:"timeoutSeconds"`
	StartTimestamp  float64  `json:"startTimestamp"`
	UpdateTimestamp float64  `json:"updateTimestamp"`
	EndTimestamp    *float64 `json:"endTimestamp"`
}

// Data returns a stable, independent snapshot of the job's fields.
func (j *Job) Data() Data {
	return Data{
		ID:              j.ID,
		StartIndex:      j.StartIndex,
		EndIndex:        j.EndIndex,
		BatchSize:       j.BatchSize,
		TimeoutSeconds:  j.TimeoutSeconds,
		StartTimestamp:  j.StartTimestamp,
		UpdateTimestamp: j.UpdateTimestamp,
		EndTimestamp:    j.EndTimestamp,
	}
}
