// Package worker drains submission queues through the history service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultQueueSize        = 10000
	metricsUpdateInterval   = 5 * time.Second
)

// Submitter applies one candidate. *history.Service satisfies it.
type Submitter interface {
	SubmitCandidate(ctx context.Context, c model.Candidate) (model.Record, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Submission
}

// Worker applies queued submissions.
type Worker interface {
	// Run processes submissions until the queue is drained, Shutdown is
	// called or ctx is canceled.
	Run(ctx context.Context) error

	// Shutdown stops the worker after the submission in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one queue.
type InMemoryWorker struct {
	queue     Queue
	submitter Submitter
	name      string
	active    *atomic.Int64
	processed *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, submitter Submitter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		submitter: submitter,
		name:      "worker",
		active:    new(atomic.Int64),
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) error {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", w.name, ctx.Err())
		case <-w.shutdown:
			return nil
		case s, ok := <-items:
			if !ok {
				return nil
			}
			w.process(ctx, s)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process applies one submission and reports its result.
func (w *InMemoryWorker) process(ctx context.Context, s queue.Submission) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	w.active.Add(1)
	start := time.Now()
	rec, err := w.submitter.SubmitCandidate(ctx, s.Candidate)
	// Counters settle before the result is visible to the submitter.
	w.active.Add(-1)
	w.processed.Add(1)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)

	if history.Classify(err) == history.OutcomeInternal {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "submit")
		w.logger.Error(ctx, "submission failed",
			logger.Int("seq", s.Seq),
			logger.String("key", s.Key().String()),
			logger.Error(err))
	}

	if s.Done == nil {
		return
	}
	select {
	case s.Done <- queue.Result{Seq: s.Seq, Record: rec, Err: err}:
	case <-ctx.Done():
	}
}

// Pool runs one worker per queue. Submissions are routed by record key so
// that each key is applied in the order it was enqueued.
type Pool struct {
	workers []*InMemoryWorker
	queues  []*queue.InMemoryQueue

	group     errgroup.Group
	started   atomic.Bool
	active    atomic.Int64
	processed atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once

	metricsInterval time.Duration
	logger          logger.Logger
}

// NewPool creates a pool of workerCount workers, each with its own queue of
// queueSize submissions. Non-positive values select defaults.
func NewPool(workerCount, queueSize int, submitter Submitter, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	perQueue := (queueSize + workerCount - 1) / workerCount

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		queues:          make([]*queue.InMemoryQueue, workerCount),
		shutdown:        make(chan struct{}),
		metricsInterval: metricsUpdateInterval,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(perQueue))
		w := NewInMemoryWorker(p.queues[i], submitter,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger))
		w.active = &p.active
		w.processed = &p.processed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateQueueCapacity(p.Capacity())
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		p.group.Go(func() error { return w.Run(ctx) })
	}
	if p.metricsInterval > 0 {
		go p.startMetricsUpdater(ctx)
	}
	p.logger.Info(ctx, "worker pool started",
		logger.Int("workers", len(p.workers)),
		logger.Int("capacity", p.Capacity()))
}

func (p *Pool) route(key model.RecordKey) *queue.InMemoryQueue {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

// Enqueue routes s to its key's queue without waiting.
func (p *Pool) Enqueue(ctx context.Context, s queue.Submission) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	return p.route(s.Key()).Enqueue(ctx, s)
}

// EnqueueWait routes s to its key's queue, waiting for room.
func (p *Pool) EnqueueWait(ctx context.Context, s queue.Submission) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	return p.route(s.Key()).EnqueueWait(ctx, s)
}

// Len returns the number of queued submissions across all queues.
func (p *Pool) Len(ctx context.Context) int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(ctx)
	}
	return n
}

// Capacity returns the combined capacity of the queues.
func (p *Pool) Capacity() int {
	n := 0
	for _, q := range p.queues {
		n += q.Capacity()
	}
	return n
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of submissions being applied right now.
func (p *Pool) Active() int64 { return p.active.Load() }

// Processed returns the number of submissions applied since start.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// startMetricsUpdater starts a background goroutine that updates queue and
// worker gauges.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics(ctx)
		}
	}
}

func (p *Pool) updateMetrics(ctx context.Context) {
	size, capacity := p.Len(ctx), p.Capacity()
	metrics.UpdateQueueSize(size)
	if capacity > 0 {
		metrics.UpdateQueueUtilization(float64(size) / float64(capacity))
	}
	metrics.UpdateWorkerActiveCount(int(p.active.Load()))
}

// Shutdown closes the queues and waits for the workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		for _, q := range p.queues {
			_ = q.Close()
		}
		close(p.shutdown)
	})
	if !p.started.Load() {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()
	select {
	case err := <-done:
		p.logger.Info(ctx, "worker pool stopped", logger.Any("processed", p.processed.Load()))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("pending", p.Len(ctx)))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
