package jobqueue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// checkpointRecord is the on-disk JSON shape of spec.md §3/§6. Field
// names are fixed by the wire contract.
type checkpointRecord struct {
	Index     int64           `json:"index"`
	Results   []json.RawMessage `json:"results"`
	Failed    []Data          `json:"failed"`
	Completed []Data          `json:"completed"`
}

// LoadCheckpoint reads path and returns the persisted record. A missing
// file is not an error — it signals a fresh search space starting at 1,
// matching _examples/original_source/Server/search.py's _loadData, which
// treats FileNotFoundError as "create a new file" rather than a failure.
func LoadCheckpoint(path string) (index int64, results []json.RawMessage, failed, completed []Data, found bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil, nil, nil, false, nil
		}
		return 0, nil, nil, nil, false, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var rec checkpointRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return 0, nil, nil, nil, false, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return rec.Index, rec.Results, rec.Failed, rec.Completed, true, nil
}

// writeCheckpoint rewrites the checkpoint file atomically: write to a
// temporary sibling, then rename over the destination. This is required
// by spec.md §4.2 to guarantee no partial writes can corrupt the
// "no gaps" invariant across restarts, and runs outside the engine's
// mutex — the caller has already taken a snapshot of the data to write.
func (e *Engine) writeCheckpoint(rec checkpointRecord) error {
	if e.checkpointPath == "" {
		return nil
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(e.checkpointPath)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup if rename below fails

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, e.checkpointPath); err != nil {
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}

// NewFromCheckpoint restores an Engine from the checkpoint file at path,
// or starts a fresh one at index 1 if no checkpoint exists yet. Per
// spec.md §4.2, no in-flight (running) jobs persist across a restart —
// workers must re-request their work.
func NewFromCheckpoint(path string, timing JobTiming, opts ...Option) (*Engine, error) {
	index, results, failed, completed, _, err := LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}

	e := New(index, timing, path, opts...)
	e.results = append(e.results, results...)
	e.failedJobs = append(e.failedJobs, failed...)
	e.completedJobs = append(e.completedJobs, completed...)
	return e, nil
}

// Checkpoint forces an immediate checkpoint write of the current state.
// Used by the sweeper when its context is cancelled and by graceful
// shutdown.
func (e *Engine) Checkpoint() error {
	e.mu.Lock()
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	return e.writeCheckpoint(snapshot)
}
