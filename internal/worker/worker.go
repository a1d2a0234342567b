package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/searchcoordinator/internal/config"
	"github.com/garnizeh/searchcoordinator/internal/jobqueue"
	"github.com/garnizeh/searchcoordinator/internal/logging"
)

// Worker runs the adaptive control loop of spec.md §4.4: fetch job
// timing once, then repeatedly lease a range, run the search binary over
// it, report results and finish, and recompute batchSize from the
// observed duration. It replaces the teacher's Ethereum-lease loop
// (_examples/garnizeh-eth-scanner/go/internal/worker/worker.go's Run) —
// same Run(ctx) error shape and Backoff-driven retry, new job protocol.
type Worker struct {
	id         string
	client     *Client
	binaryPath string
	log        *logging.Logger
	onResults  func([]json.RawMessage) error

	backoff *Backoff
}

// NewWorker constructs a Worker. onResults, if non-nil, is invoked with
// every batch of results before they are posted to the coordinator — the
// supervisor uses it to mirror results into a local file.
func NewWorker(id string, client *Client, binaryPath string, log *logging.Logger, onResults func([]json.RawMessage) error) *Worker {
	return &Worker{
		id:         id,
		client:     client,
		binaryPath: binaryPath,
		log:        log,
		onResults:  onResults,
		backoff:    NewBackoff(1*time.Second, 30*time.Second),
	}
}

// Run executes the adaptive loop until ctx is cancelled or a fatal
// protocol error (authentication failure) occurs.
func (w *Worker) Run(ctx context.Context) error {
	timing, err := w.fetchTiming(ctx)
	if err != nil {
		return err
	}
	w.backoff.Reset()

	batchSize := int64(1)
	heartbeatInterval := time.Duration(timing.UpdateIntervalSeconds) * time.Second
	targetDuration := float64(timing.TargetDurationSeconds)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		job, err := w.client.IssueJob(ctx, batchSize)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return fmt.Errorf("worker %s: %w", w.id, err)
			}
			w.warn("issueJob failed", err)
			if !w.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		started := time.Now()
		results, runErr := runSearch(ctx, w.binaryPath, job.StartIndex, job.EndIndex, heartbeatInterval, func(hctx context.Context) error {
			return w.client.Heartbeat(hctx, job.ID)
		})
		actual := time.Since(started).Seconds()

		if runErr != nil {
			w.warn(fmt.Sprintf("job %d failed", job.ID), runErr)
			if !w.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		if w.onResults != nil {
			if err := w.onResults(results); err != nil {
				w.warn("local results mirror failed", err)
			}
		}

		if err := w.client.PostResults(ctx, results); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return fmt.Errorf("worker %s: %w", w.id, err)
			}
			w.warn(fmt.Sprintf("postResults for job %d failed", job.ID), err)
			if !w.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		if err := w.client.FinishJob(ctx, job.ID); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return fmt.Errorf("worker %s: %w", w.id, err)
			}
			w.warn(fmt.Sprintf("finishJob %d failed", job.ID), err)
			if !w.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		w.backoff.Reset()
		batchSize = AdjustBatchSize(batchSize, targetDuration, actual)
	}
}

// fetchTiming retries GET /configuration/job until it succeeds or ctx is
// cancelled, per spec.md §4.4 step 1.
func (w *Worker) fetchTiming(ctx context.Context) (jobqueue.JobTiming, error) {
	for {
		timing, err := w.client.JobConfig(ctx)
		if err == nil {
			return timing, nil
		}
		w.warn("fetch job configuration failed", err)
		if !w.wait(ctx) {
			return jobqueue.JobTiming{}, ctx.Err()
		}
	}
}

// wait sleeps for the next backoff interval, returning false if ctx is
// cancelled first.
func (w *Worker) wait(ctx context.Context) bool {
	t := time.NewTimer(w.backoff.Next())
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) warn(msg string, err error) {
	if w.log == nil {
		return
	}
	w.log.Warning(fmt.Sprintf("%s: %s: %v", w.id, msg, err))
}

// Supervisor launches one Worker per CPU core minus idleCores (floor 1),
// staggered one per second to avoid a thundering herd on
// GET /configuration/job, per spec.md §5. Each worker gets its own Client
// so request pacing stays local to that worker's sequential call stream.
type Supervisor struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	delay      time.Duration
	binaryPath string
	idleCores  int
	resultsSink *localResultsFile
	log        *logging.Logger
}

// NewSupervisor builds a Supervisor from a loaded WorkerConfig.
func NewSupervisor(cfg *config.WorkerConfig, log *logging.Logger) *Supervisor {
	baseURL := fmt.Sprintf("%s://%s:%d", cfg.Server.Protocol, cfg.Server.Host, cfg.Server.Port)
	return &Supervisor{
		baseURL:     baseURL,
		apiKey:      cfg.Server.APIKey,
		timeout:     time.Duration(cfg.Server.Request.TimeoutSeconds * float64(time.Second)),
		delay:       time.Duration(cfg.Server.Request.DelaySeconds * float64(time.Second)),
		binaryPath:  cfg.Search.BinaryPath,
		idleCores:   cfg.Search.IdleCores,
		resultsSink: newLocalResultsFile(cfg.Search.FilePath),
		log:         log,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled or any
// worker returns a fatal error, per spec.md §5's errgroup-joined fan-out.
func (s *Supervisor) Run(ctx context.Context) error {
	n := runtime.NumCPU() - s.idleCores
	if n < 1 {
		n = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if !staggerStart(gctx, i) {
				return gctx.Err()
			}
			client := NewClient(s.baseURL, s.apiKey, s.timeout, s.delay)
			id := fmt.Sprintf("worker-%d", i)
			w := NewWorker(id, client, s.binaryPath, s.log, s.resultsSink.append)
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

// staggerStart blocks for i seconds, returning false if ctx is cancelled
// first.
func staggerStart(ctx context.Context, i int) bool {
	if i == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(time.Duration(i) * time.Second)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// localResultsFile mirrors accepted results into the worker's local
// results file (spec.md §6's client-side search.filePath), independent of
// and in addition to the coordinator's canonical copy. It is a simple
// append-only JSON-lines log, not a checkpoint — unlike
// jobqueue's atomic rename, losing the last few lines on a crash is
// acceptable since the coordinator already has the authoritative copy.
type localResultsFile struct {
	mu   sync.Mutex
	path string
}

func newLocalResultsFile(path string) *localResultsFile {
	return &localResultsFile{path: path}
}

func (f *localResultsFile) append(results []json.RawMessage) error {
	if f.path == "" || len(results) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open local results file: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write local result: %w", err)
		}
	}
	return nil
}
