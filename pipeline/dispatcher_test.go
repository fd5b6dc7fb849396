package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/testutil"
)

// recordingRunner 记录两类任务的执行，支持注入阻塞与返回错误。
type recordingRunner struct {
	mu          sync.Mutex
	extractions []string
	executions  []string

	block chan struct{}
	err   error

	extractFn func(ctx context.Context, id string) error
}

func (r *recordingRunner) RunExtraction(ctx context.Context, documentID string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.extractions = append(r.extractions, documentID)
	r.mu.Unlock()
	if r.extractFn != nil {
		return r.extractFn(ctx, documentID)
	}
	return r.err
}

func (r *recordingRunner) Execute(ctx context.Context, artifactID string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.executions = append(r.executions, artifactID)
	r.mu.Unlock()
	return r.err
}

func (r *recordingRunner) extractionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.extractions)
}

func (r *recordingRunner) executionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executions)
}

func newTestDispatcher(t *testing.T, cfg config.PipelineConfig, runner *recordingRunner) *Dispatcher {
	t.Helper()
	d := NewDispatcher(cfg, runner, runner, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func TestDispatcherRunsExtraction(t *testing.T) {
	runner := &recordingRunner{}
	d := newTestDispatcher(t, config.PipelineConfig{Workers: 2, QueueSize: 8}, runner)

	require.NoError(t, d.EnqueueExtraction("doc-1"))

	testutil.AssertEventuallyTrue(t, func() bool {
		return runner.extractionCount() == 1
	}, 2*time.Second)
	assert.Equal(t, []string{"doc-1"}, runner.extractions)
}

func TestDispatcherRunsExecution(t *testing.T) {
	runner := &recordingRunner{}
	d := newTestDispatcher(t, config.PipelineConfig{Workers: 2, QueueSize: 8}, runner)

	require.NoError(t, d.EnqueueExecution("art-1"))

	testutil.AssertEventuallyTrue(t, func() bool {
		return runner.executionCount() == 1
	}, 2*time.Second)
}

func TestDispatcherRunnerErrorStaysInternal(t *testing.T) {
	// 阶段错误已经落入记录的终态，入队方永远看不到它
	runner := &recordingRunner{err: errors.New("stage failed")}
	d := newTestDispatcher(t, config.PipelineConfig{Workers: 1, QueueSize: 8}, runner)

	require.NoError(t, d.EnqueueExtraction("doc-1"))

	testutil.AssertEventuallyTrue(t, func() bool {
		return runner.extractionCount() == 1
	}, 2*time.Second)
}

func TestDispatcherAppliesStageTimeout(t *testing.T) {
	runner := &recordingRunner{}
	deadlines := make(chan time.Time, 1)
	runner.extractFn = func(ctx context.Context, _ string) error {
		if dl, ok := ctx.Deadline(); ok {
			deadlines <- dl
		}
		return nil
	}
	d := newTestDispatcher(t, config.PipelineConfig{
		Workers:           1,
		QueueSize:         8,
		ExtractionTimeout: 5 * time.Second,
	}, runner)

	require.NoError(t, d.EnqueueExtraction("doc-1"))

	dl, ok := testutil.WaitForChannel(deadlines, 2*time.Second)
	require.True(t, ok, "task context must carry the stage deadline")
	assert.WithinDuration(t, time.Now().Add(5*time.Second), dl, 2*time.Second)
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	runner := &recordingRunner{}
	d := NewDispatcher(config.PipelineConfig{Workers: 1, QueueSize: 2}, runner, runner, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.ErrorIs(t, d.EnqueueExtraction("doc-1"), ErrDispatcherClosed)
	assert.ErrorIs(t, d.EnqueueExecution("art-1"), ErrDispatcherClosed)
}

func TestDispatcherShutdownDrainsQueuedTasks(t *testing.T) {
	runner := &recordingRunner{}
	d := NewDispatcher(config.PipelineConfig{
		Workers:      1,
		QueueSize:    16,
		DrainTimeout: 5 * time.Second,
	}, runner, runner, nil, nil)

	for i := 0; i < 8; i++ {
		require.NoError(t, d.EnqueueExtraction("doc"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.Equal(t, 8, runner.extractionCount(), "queued tasks must run before shutdown returns")
}

func TestDispatcherQueueFullFallsBackToResubmit(t *testing.T) {
	release := make(chan struct{})
	runner := &recordingRunner{block: release}
	d := newTestDispatcher(t, config.PipelineConfig{Workers: 1, QueueSize: 1}, runner)

	// 填满工作协程与队列，再多入队的任务转入后台重投
	for i := 0; i < 6; i++ {
		require.NoError(t, d.EnqueueExtraction("doc"))
	}
	assert.Equal(t, 0, runner.extractionCount())

	close(release)

	// 至少一次语义：所有任务最终都会执行
	testutil.AssertEventuallyTrue(t, func() bool {
		return runner.extractionCount() == 6
	}, 5*time.Second)
}

func TestDispatcherStats(t *testing.T) {
	runner := &recordingRunner{}
	d := newTestDispatcher(t, config.PipelineConfig{Workers: 2, QueueSize: 8}, runner)

	require.NoError(t, d.EnqueueExtraction("doc-1"))
	testutil.AssertEventuallyTrue(t, func() bool {
		return runner.extractionCount() == 1
	}, 2*time.Second)

	stats := d.Stats()
	assert.GreaterOrEqual(t, stats.Completed, int64(1))
}
