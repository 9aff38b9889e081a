package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docdots/internal/config"
	"github.com/dgallion1/docdots/internal/parser"
	"github.com/dgallion1/docdots/internal/store"
)

// ErrQueueFull is returned by Submit when the queue has no room.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline is stopped")

// Orchestrator manages the document processing pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	store    store.Store
	embedder Embedder
	log      *slog.Logger
	cfg      config.Config

	mu      sync.RWMutex
	stopped bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, st store.Store, embedder Embedder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		store:    st,
		embedder: embedder,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.baseCtx = ctx
	o.cancel = cancel

	opts := parser.Options{FallbackPdftotext: o.cfg.PDFFallbackPdftotext}
	for range max(1, o.cfg.WorkerCount) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.store, o.embedder, o.log, opts, o.cfg.MaxConcurrentEmbed)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					if workerCtx.Err() != nil {
						o.abandon(job)
						continue
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Jobs still queued are not run;
// their documents are marked failed so they can be retried.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for job := range o.queue {
		o.abandon(job)
	}
}

// abandon fails a job that was queued but never processed.
func (o *Orchestrator) abandon(job *Job) {
	ctx := o.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	job.AddError(ErrStopped.Error())
	job.SetStatus(StatusFailed, "stopped")
	if err := o.store.Fail(context.WithoutCancel(ctx), job.DocID, ErrStopped.Error()); err != nil {
		o.log.Error("cannot record abandoned job", "job_id", job.ID, "doc_id", job.DocID, "error", err)
	}
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
