package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docshift/internal/convert"
	"github.com/dgallion1/docshift/internal/metrics"
	"github.com/dgallion1/docshift/internal/publish"
	"github.com/dgallion1/docshift/internal/render"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job queue is stopped")
)

// Converter runs a single conversion.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) (*convert.Result, error)
}

// Publisher uploads converted output.
type Publisher interface {
	Put(ctx context.Context, obj publish.Object) error
}

// Options configures a Queue.
type Options struct {
	Workers         int
	MaxQueue        int
	TTL             time.Duration
	CleanupInterval time.Duration
	PublishPrefix   string            // key prefix for published documents
	Metrics         *metrics.Recorder // optional
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxQueue <= 0 {
		o.MaxQueue = 100
	}
	if o.TTL <= 0 {
		o.TTL = time.Hour
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = 5 * time.Minute
	}
	return o
}

// Queue manages asynchronous conversions.
type Queue struct {
	jobs    *Store
	queue   chan *Job
	conv    Converter
	pub     Publisher // nil disables publishing
	log     *slog.Logger
	opts    Options
	backoff func(attempt int) time.Duration

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a queue. Call Start to launch the workers.
func NewQueue(opts Options, conv Converter, pub Publisher, log *slog.Logger) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		jobs:    NewStore(opts.TTL),
		queue:   make(chan *Job, opts.MaxQueue),
		conv:    conv,
		pub:     pub,
		log:     log,
		opts:    opts,
		backoff: publish.Backoff,
	}
}

// Start launches worker goroutines.
func (q *Queue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for range q.opts.Workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-q.queue:
					if !ok {
						return
					}
					q.process(workerCtx, job)
				}
			}
		}()
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(q.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				q.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running conversions and waits for the workers to exit.
// Jobs still waiting in the queue are marked failed with phase "stopped".
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.queue)
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()

	for job := range q.queue {
		job.AddError(ErrStopped.Error())
		q.finish(job, StatusFailed, "stopped")
	}
}

// Submit queues a conversion and returns its job.
func (q *Queue) Submit(req convert.Request) (*Job, error) {
	job := newJob(NewID(), req, time.Now())

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return nil, ErrStopped
	}
	q.jobs.Put(job)
	select {
	case q.queue <- job:
		return job, nil
	default:
		job.AddError(ErrQueueFull.Error())
		job.SetStatus(StatusFailed, "queue_full")
		return job, fmt.Errorf("%w (%d)", ErrQueueFull, q.opts.MaxQueue)
	}
}

// Get returns a job by ID.
func (q *Queue) Get(id string) *Job {
	return q.jobs.Get(id)
}

// Depth returns current queue depth.
func (q *Queue) Depth() int {
	return len(q.queue)
}

// process converts one job and publishes the result when a publisher is set.
func (q *Queue) process(ctx context.Context, job *Job) {
	log := q.log.With("job_id", job.ID, "filename", job.Filename)

	req := job.takeRequest()
	req.OnPhase = func(p convert.Phase) {
		job.SetStatus(Status(p), string(p))
	}

	res, err := q.conv.Convert(ctx, req)
	if err != nil {
		log.Error("conversion failed", "error", err)
		job.AddError(err.Error())
		q.finish(job, StatusFailed, job.Snapshot().Phase)
		return
	}
	job.setResult(res)

	if q.pub == nil {
		q.finish(job, StatusCompleted, "done")
		return
	}

	job.SetStatus(StatusPublishing, "publishing")
	key := q.opts.PublishPrefix + job.ID + render.Extension(res.Format)
	if err := q.publish(ctx, log, publish.Object{
		Key:         key,
		ContentType: res.ContentType,
		Body:        []byte(res.Output),
		ContentHash: res.ContentHash,
		Source:      job.Filename,
	}); err != nil {
		log.Error("publish failed", "key", key, "error", err)
		job.AddError(fmt.Sprintf("publish %s: %s", key, err))
		q.finish(job, StatusPartial, "publishing")
		return
	}
	job.setPublished(key)
	log.Info("published", "key", key)
	q.finish(job, StatusCompleted, "done")
}

// finish counts status, then sets it as the job's final state.
func (q *Queue) finish(job *Job, status Status, phase string) {
	q.opts.Metrics.IncJob(string(status))
	job.SetStatus(status, phase)
}

func (q *Queue) publish(ctx context.Context, log *slog.Logger, obj publish.Object) error {
	var lastErr error
	for attempt := range publish.MaxRetries {
		lastErr = q.pub.Put(ctx, obj)
		if lastErr == nil || !publish.IsRetryable(lastErr) {
			return lastErr
		}
		log.Warn("retryable publish error", "attempt", attempt, "error", lastErr)
		q.opts.Metrics.IncPublishRetry()
		select {
		case <-time.After(q.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
