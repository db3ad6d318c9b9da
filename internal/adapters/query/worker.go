// Package query runs deferred metadata queries in the background: jobs the
// synchronous gateway could not finish within its budget are executed here
// without a deadline and their results parked in object storage.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	blobcore "lineagecore/internal/infra/blob/core"
	"lineagecore/internal/metrics"
	"lineagecore/pkg/domain"
)

const (
	defaultQueueSize   = 64
	defaultConcurrency = 2
	resultKeyPrefix    = "query-results/"
	resultContentType  = "application/json"
	signedURLTTL       = time.Hour
)

// Worker drains the async query job queue. Each job is executed without a
// deadline, its result written to the object store as JSON, and the job row
// advanced through the status lifecycle. Job state lives entirely in the job
// store, so a restarted worker can be handed the same ids again.
type Worker struct {
	jobs   domain.JobStore
	engine domain.QueryEngine
	blobs  blobcore.Store
	log    *zap.SugaredLogger

	queue       chan string
	concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption configures optional worker behavior.
type WorkerOption func(*Worker)

// WithQueueSize overrides the pending-job queue capacity.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan string, n)
		}
	}
}

// WithConcurrency overrides the number of executor goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// NewWorker wires the worker to its collaborators. Start must be called
// before Enqueue delivers anything.
func NewWorker(jobs domain.JobStore, engine domain.QueryEngine, blobs blobcore.Store, log *zap.SugaredLogger, opts ...WorkerOption) *Worker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		jobs:        jobs,
		engine:      engine,
		blobs:       blobs,
		log:         log,
		queue:       make(chan string, defaultQueueSize),
		concurrency: defaultConcurrency,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the executor goroutines.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		g, ctx := errgroup.WithContext(w.ctx)
		for i := 0; i < w.concurrency; i++ {
			g.Go(func() error {
				w.loop(ctx)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Stop cancels the executors and waits for in-flight jobs, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue hands a created job id to the executors. The job row already
// exists; a full queue is reported to the caller rather than blocking the
// ingest or query path.
func (w *Worker) Enqueue(jobID string) error {
	select {
	case w.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("query job queue full")
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-w.queue:
			w.process(ctx, jobID)
		}
	}
}

func (w *Worker) process(ctx context.Context, jobID string) {
	job, ok, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		w.log.Errorw("load query job", "job_id", jobID, "error", err)
		return
	}
	if !ok {
		w.log.Warnw("query job vanished before execution", "job_id", jobID)
		return
	}
	if job.Status.Terminal() {
		return
	}
	if err := w.jobs.UpdateJobStatus(ctx, jobID, domain.JobProcessing); err != nil {
		// Another worker claimed it first.
		w.log.Debugw("claim query job", "job_id", jobID, "error", err)
		return
	}

	result, err := w.engine.Execute(ctx, job.Query)
	if err != nil {
		w.finish(ctx, jobID, domain.JobFailed, func() error {
			return w.jobs.FailJob(ctx, jobID, err.Error())
		})
		return
	}
	location, err := w.storeResult(ctx, jobID, result)
	if err != nil {
		w.finish(ctx, jobID, domain.JobFailed, func() error {
			return w.jobs.FailJob(ctx, jobID, err.Error())
		})
		return
	}
	w.finish(ctx, jobID, domain.JobComplete, func() error {
		return w.jobs.CompleteJob(ctx, jobID, location)
	})
}

func (w *Worker) finish(ctx context.Context, jobID string, status domain.JobStatus, apply func() error) {
	if err := apply(); err != nil {
		w.log.Errorw("finalize query job", "job_id", jobID, "status", status, "error", err)
		return
	}
	metrics.JobsFinished.WithLabelValues(string(status)).Inc()
	w.log.Infow("query job finished", "job_id", jobID, "status", status)
}

func (w *Worker) storeResult(ctx context.Context, jobID string, result domain.QueryResult) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal query result: %w", err)
	}
	key := resultKeyPrefix + jobID + ".json"
	if _, err := w.blobs.Put(ctx, key, bytes.NewReader(payload), blobcore.PutOptions{ContentType: resultContentType}); err != nil {
		return "", fmt.Errorf("store query result: %w", err)
	}
	return key, nil
}

// ResultURL resolves a completed job's result location to a time-limited
// download URL.
func (w *Worker) ResultURL(ctx context.Context, job domain.AsyncQueryJob) (string, error) {
	if job.Status != domain.JobComplete || job.ResultLocation == "" {
		return "", fmt.Errorf("job %s has no result", job.ID)
	}
	return w.blobs.PresignURL(ctx, job.ResultLocation, blobcore.SignedURLOptions{Expiry: signedURLTTL})
}
