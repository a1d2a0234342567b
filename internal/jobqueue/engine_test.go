package jobqueue

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, timeoutSeconds int64) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search.json")
	return New(1, JobTiming{TargetDurationSeconds: 600, UpdateIntervalSeconds: 60, TimeoutSeconds: timeoutSeconds}, path)
}

// S1 — single job happy path.
func TestEngine_SingleJobHappyPath(t *testing.T) {
	e := newTestEngine(t, 120)

	job, err := e.IssueJob(10)
	if err != nil {
		t.Fatalf("IssueJob: %v", err)
	}
	if job.StartIndex != 1 || job.EndIndex != 11 {
		t.Fatalf("unexpected range: [%d,%d)", job.StartIndex, job.EndIndex)
	}

	ok, err := e.FinishJob(job.ID)
	if err != nil || !ok {
		t.Fatalf("FinishJob(%d) = %v, %v", job.ID, ok, err)
	}

	st := e.Status()
	if st.CompletedEndIndex != 11 {
		t.Fatalf("completedEndIndex = %d, want 11", st.CompletedEndIndex)
	}
	if st.NextStartIndex != 11 {
		t.Fatalf("nextStartIndex = %d, want 11", st.NextStartIndex)
	}
	if got := e.CompletedJobs(); len(got) != 1 || got[0].ID != job.ID {
		t.Fatalf("completedJobs = %+v", got)
	}
	if got := e.Results(); len(got) != 0 {
		t.Fatalf("results = %+v, want empty", got)
	}
}

// S2 — out-of-order completion cascades absorption.
func TestEngine_OutOfOrderCompletion(t *testing.T) {
	e := newTestEngine(t, 120)

	j0, _ := e.IssueJob(5) // [1,6)
	j1, _ := e.IssueJob(7) // [6,13)
	j2, _ := e.IssueJob(3) // [13,16)

	if _, err := e.FinishJob(j1.ID); err != nil {
		t.Fatal(err)
	}
	if st := e.Status(); st.CompletedEndIndex != 1 || st.PendingJobsCount != 1 {
		t.Fatalf("after finishing j1: %+v", st)
	}

	if _, err := e.FinishJob(j2.ID); err != nil {
		t.Fatal(err)
	}
	if st := e.Status(); st.CompletedEndIndex != 1 || st.PendingJobsCount != 2 {
		t.Fatalf("after finishing j2: %+v", st)
	}

	if _, err := e.FinishJob(j0.ID); err != nil {
		t.Fatal(err)
	}
	st := e.Status()
	if st.CompletedEndIndex != 16 {
		t.Fatalf("completedEndIndex = %d, want 16", st.CompletedEndIndex)
	}
	if st.PendingJobsCount != 0 {
		t.Fatalf("pendingJobsCount = %d, want 0", st.PendingJobsCount)
	}

	completed := e.CompletedJobs()
	if len(completed) != 3 {
		t.Fatalf("completedJobs = %+v", completed)
	}
	wantOrder := []int64{j0.ID, j1.ID, j2.ID}
	for i, id := range wantOrder {
		if completed[i].ID != id {
			t.Fatalf("completedJobs[%d].ID = %d, want %d", i, completed[i].ID, id)
		}
	}
}

// S3 — expiry reclaim.
func TestEngine_ExpiryReclaim(t *testing.T) {
	e := newTestEngine(t, 1)

	j0, _ := e.IssueJob(10) // [1,11)
	j1, _ := e.IssueJob(10) // [11,21)

	time.Sleep(2 * time.Second)
	if err := e.sweepOnce(); err != nil {
		t.Fatalf("sweepOnce: %v", err)
	}

	failed := e.FailedJobs()
	if len(failed) != 2 {
		t.Fatalf("failedJobs = %+v, want 2 entries", failed)
	}
	ids := map[int64]bool{failed[0].ID: true, failed[1].ID: true}
	if !ids[j0.ID] || !ids[j1.ID] {
		t.Fatalf("failedJobs ids = %v, want %d and %d", ids, j0.ID, j1.ID)
	}

	st := e.Status()
	if st.NextStartIndex != 1 {
		t.Fatalf("nextStartIndex = %d, want 1", st.NextStartIndex)
	}
	if st.CompletedEndIndex != 1 {
		t.Fatalf("completedEndIndex = %d, want 1", st.CompletedEndIndex)
	}

	j2, err := e.IssueJob(10)
	if err != nil {
		t.Fatal(err)
	}
	if j2.StartIndex != 1 || j2.EndIndex != 11 {
		t.Fatalf("reissued range = [%d,%d), want [1,11)", j2.StartIndex, j2.EndIndex)
	}
}

// S4 — partial reclaim: one job finished, a later one expires.
func TestEngine_PartialReclaim(t *testing.T) {
	e := newTestEngine(t, 1)

	j0, _ := e.IssueJob(5) // [1,6)
	if _, err := e.FinishJob(j0.ID); err != nil {
		t.Fatal(err)
	}
	if st := e.Status(); st.CompletedEndIndex != 6 || st.NextStartIndex != 6 {
		t.Fatalf("after finishing j0: %+v", st)
	}

	j1, _ := e.IssueJob(10) // [6,16)
	time.Sleep(2 * time.Second)
	if err := e.sweepOnce(); err != nil {
		t.Fatal(err)
	}

	st := e.Status()
	if st.NextStartIndex != 6 {
		t.Fatalf("nextStartIndex = %d, want 6 (rewound)", st.NextStartIndex)
	}
	if st.CompletedEndIndex != 6 {
		t.Fatalf("completedEndIndex = %d, want unchanged 6", st.CompletedEndIndex)
	}
	failed := e.FailedJobs()
	if len(failed) != 1 || failed[0].ID != j1.ID {
		t.Fatalf("failedJobs = %+v", failed)
	}
}

// S5 — results accepted independent of job state.
func TestEngine_AcceptResultsIndependentOfJobs(t *testing.T) {
	e := newTestEngine(t, 120)

	payload := []json.RawMessage{json.RawMessage(`{"v":1}`)}
	if err := e.AcceptResults(payload); err != nil {
		t.Fatalf("AcceptResults: %v", err)
	}

	st := e.Status()
	if st.ResultsCount != 1 {
		t.Fatalf("resultsCount = %d, want 1", st.ResultsCount)
	}
	if st.RunningJobsCount != 0 || st.CompletedEndIndex != 1 {
		t.Fatalf("unrelated counters changed: %+v", st)
	}
}

func TestEngine_CancelJobReclaimsRange(t *testing.T) {
	e := newTestEngine(t, 120)

	j0, _ := e.IssueJob(10)
	ok, err := e.CancelJob(j0.ID)
	if err != nil || !ok {
		t.Fatalf("CancelJob = %v, %v", ok, err)
	}

	st := e.Status()
	if st.NextStartIndex != 1 {
		t.Fatalf("nextStartIndex = %d, want 1", st.NextStartIndex)
	}
	if st.FailedJobsCount != 1 {
		t.Fatalf("failedJobsCount = %d, want 1", st.FailedJobsCount)
	}

	// Unknown id operations are all no-ops.
	if ok, _ := e.FinishJob(999); ok {
		t.Fatal("FinishJob(unknown) = true")
	}
	if ok, _ := e.CancelJob(999); ok {
		t.Fatal("CancelJob(unknown) = true")
	}
	if e.UpdateJob(999) {
		t.Fatal("UpdateJob(unknown) = true")
	}
}

func TestEngine_HeartbeatPreventsExpiry(t *testing.T) {
	e := newTestEngine(t, 2)
	j0, _ := e.IssueJob(10)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !e.UpdateJob(j0.ID) {
			t.Fatal("UpdateJob failed on live job")
		}
		time.Sleep(500 * time.Millisecond)
		if err := e.sweepOnce(); err != nil {
			t.Fatal(err)
		}
	}

	if st := e.Status(); st.RunningJobsCount != 1 || st.FailedJobsCount != 0 {
		t.Fatalf("job expired despite heartbeats: %+v", st)
	}
}

func TestEngine_RestartFromCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.json")
	timing := JobTiming{TargetDurationSeconds: 600, UpdateIntervalSeconds: 60, TimeoutSeconds: 120}

	e := New(1, timing, path)
	j0, _ := e.IssueJob(10)
	if _, err := e.FinishJob(j0.ID); err != nil {
		t.Fatal(err)
	}

	restarted, err := NewFromCheckpoint(path, timing)
	if err != nil {
		t.Fatalf("NewFromCheckpoint: %v", err)
	}

	st := restarted.Status()
	if st.CompletedEndIndex != 11 || st.NextStartIndex != 11 {
		t.Fatalf("restarted status = %+v", st)
	}
	if st.RunningJobsCount != 0 {
		t.Fatalf("in-flight jobs should not survive a restart, got %d running", st.RunningJobsCount)
	}
	if len(restarted.CompletedJobs()) != 1 {
		t.Fatalf("completedJobs = %+v", restarted.CompletedJobs())
	}
}

func TestEngine_LoadCheckpointMissingFileIsFreshStart(t *testing.T) {
	index, results, failed, completed, found, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if found {
		t.Fatal("found = true for missing file")
	}
	if index != 1 {
		t.Fatalf("index = %d, want 1", index)
	}
	if len(results) != 0 || len(failed) != 0 || len(completed) != 0 {
		t.Fatalf("expected empty collections for missing checkpoint")
	}
}

func TestEngine_IssueJobRejectsNonPositiveBatchSize(t *testing.T) {
	e := newTestEngine(t, 120)
	if _, err := e.IssueJob(0); err == nil {
		t.Fatal("expected error for batchSize=0")
	}
	if _, err := e.IssueJob(-1); err == nil {
		t.Fatal("expected error for negative batchSize")
	}
}
