package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/internal/metrics"
	"github.com/BaSui01/demoforge/internal/pool"
)

// Task kinds handled by the dispatcher.
const (
	TaskExtraction = "extraction"
	TaskExecution  = "execution"
)

// ErrDispatcherClosed is returned by enqueue calls after Shutdown.
var ErrDispatcherClosed = errors.New("pipeline: dispatcher closed")

// ExtractionRunner runs the ingestion stage for one document.
type ExtractionRunner interface {
	RunExtraction(ctx context.Context, documentID string) error
}

// ExecutionRunner runs the sandbox stage for one artifact.
type ExecutionRunner interface {
	Execute(ctx context.Context, artifactID string) error
}

// ExtractionScheduler is the handoff point between document creation and the
// ingestion stage.
type ExtractionScheduler interface {
	EnqueueExtraction(documentID string) error
}

// ExecutionScheduler is the handoff point between the generation and
// execution stages. Implementations must only run the execution after the
// scheduling call, never during it, so callers can order their store patch
// before the handoff.
type ExecutionScheduler interface {
	EnqueueExecution(artifactID string) error
}

// Dispatcher defers stage transitions onto a bounded worker pool. Callers
// never block on pipeline latency: enqueue returns once the task is queued.
// Tasks run detached from the request context, bounded by the per-stage
// timeouts from configuration.
type Dispatcher struct {
	pool      *pool.GoroutinePool
	extractor ExtractionRunner
	executor  ExecutionRunner
	collector *metrics.Collector
	logger    *zap.Logger

	extractionTimeout time.Duration
	executionTimeout  time.Duration
	drainTimeout      time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// NewDispatcher creates a dispatcher over its own worker pool. The collector
// may be nil.
func NewDispatcher(cfg config.PipelineConfig, extractor ExtractionRunner, executor ExecutionRunner, collector *metrics.Collector, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Dispatcher{
		extractor:         extractor,
		executor:          executor,
		collector:         collector,
		logger:            logger,
		extractionTimeout: cfg.ExtractionTimeout,
		executionTimeout:  cfg.ExecutionTimeout,
		drainTimeout:      cfg.DrainTimeout,
	}
	d.baseCtx, d.cancel = context.WithCancel(context.Background())

	d.pool = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		MaxWorkers:  workers,
		QueueSize:   queueSize,
		IdleTimeout: 60 * time.Second,
		PanicHandler: func(r any) {
			logger.Error("pipeline task panicked", zap.Any("panic", r))
		},
	})
	return d
}

// EnqueueExtraction schedules the ingestion stage for a document.
func (d *Dispatcher) EnqueueExtraction(documentID string) error {
	return d.enqueue(TaskExtraction, documentID, d.extractionTimeout, func(ctx context.Context) error {
		return d.extractor.RunExtraction(ctx, documentID)
	})
}

// EnqueueExecution schedules the sandbox stage for an artifact. Callers must
// issue this only after their own store patch has returned, which preserves
// the ordering guarantee that execution never observes a pre-patch record.
func (d *Dispatcher) EnqueueExecution(artifactID string) error {
	return d.enqueue(TaskExecution, artifactID, d.executionTimeout, func(ctx context.Context) error {
		return d.executor.Execute(ctx, artifactID)
	})
}

func (d *Dispatcher) enqueue(kind, id string, timeout time.Duration, run pool.Task) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}

	task := func(context.Context) error {
		ctx := d.baseCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		err := run(ctx)
		d.recordOutcome(kind, id, time.Since(start), err)
		return err
	}

	err := d.pool.Submit(d.baseCtx, task)
	if errors.Is(err, pool.ErrPoolFull) {
		// At-least-once: hold the task in a detached goroutine until the
		// queue accepts it or the dispatcher shuts down.
		d.logger.Warn("dispatch queue full, retrying in background",
			zap.String("kind", kind),
			zap.String("id", id),
		)
		go d.resubmit(kind, id, task)
		err = nil
	}
	if err != nil {
		if d.collector != nil {
			d.collector.RecordDispatcherTask(kind, "rejected")
		}
		return err
	}

	d.observeQueueDepth()
	return nil
}

func (d *Dispatcher) resubmit(kind, id string, task pool.Task) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-d.baseCtx.Done():
			d.logger.Warn("dispatch abandoned at shutdown",
				zap.String("kind", kind),
				zap.String("id", id),
			)
			if d.collector != nil {
				d.collector.RecordDispatcherTask(kind, "abandoned")
			}
			return
		case <-ticker.C:
			err := d.pool.Submit(d.baseCtx, task)
			if err == nil {
				d.observeQueueDepth()
				return
			}
			if !errors.Is(err, pool.ErrPoolFull) {
				d.logger.Warn("dispatch abandoned",
					zap.String("kind", kind),
					zap.String("id", id),
					zap.Error(err),
				)
				if d.collector != nil {
					d.collector.RecordDispatcherTask(kind, "abandoned")
				}
				return
			}
		}
	}
}

func (d *Dispatcher) recordOutcome(kind, id string, elapsed time.Duration, err error) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	if d.collector != nil {
		d.collector.RecordDispatcherTask(kind, outcome)
	}
	d.observeQueueDepth()

	if err != nil {
		// Stage errors are already recorded into the record's terminal
		// status by the stage itself; this is operational visibility only.
		d.logger.Warn("pipeline task finished with error",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("pipeline task finished",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.Duration("elapsed", elapsed),
	)
}

func (d *Dispatcher) observeQueueDepth() {
	if d.collector == nil {
		return
	}
	d.collector.SetDispatcherQueueDepth(d.pool.Stats().Queued)
}

// Stats exposes the underlying pool counters.
func (d *Dispatcher) Stats() pool.GoroutinePoolStats {
	return d.pool.Stats()
}

// Shutdown stops accepting work and drains queued tasks. Tasks still running
// when the drain timeout (or ctx) expires are cancelled through the base
// context and awaited.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.pool.Close()
		close(done)
	}()

	drain := d.drainTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}
	timer := time.NewTimer(drain)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.cancel()
		<-done
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
	return nil
}
