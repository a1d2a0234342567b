package jobqueue

import (
	"path/filepath"
	"sync"
	"testing"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestEngine_PublishesLifecycleEvents(t *testing.T) {
	sink := &recordingSink{}
	path := filepath.Join(t.TempDir(), "search.json")
	e := New(1, JobTiming{TimeoutSeconds: 120}, path, WithEventSink(sink))

	job, err := e.IssueJob(5)
	if err != nil {
		t.Fatal(err)
	}
	if !e.UpdateJob(job.ID) {
		t.Fatal("UpdateJob failed")
	}
	if ok, err := e.FinishJob(job.ID); err != nil || !ok {
		t.Fatalf("FinishJob = %v, %v", ok, err)
	}

	events := sink.snapshot()
	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}

	want := []EventKind{EventIssued, EventUpdated, EventFinished, EventAbsorbed}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Fatalf("kinds[%d] = %s, want %s", i, kinds[i], k)
		}
	}
}
