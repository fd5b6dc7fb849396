package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/internal/metrics"
	"github.com/BaSui01/demoforge/sandbox"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// artifactFilename is the single file deployed into every sandbox.
const artifactFilename = "index.html"

// maxFetchBytes caps how much rendered output is read back from a sandbox.
const maxFetchBytes = 16 << 20

// Executor runs the sandbox stage: one fresh environment per artifact,
// deploy, serve, fetch, persist, and teardown on every exit path.
type Executor struct {
	artifacts store.ArtifactStore
	blobs     blob.Store
	sandboxes sandbox.Provider
	cfg       config.SandboxConfig
	client    *http.Client
	hub       *Hub
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewExecutor creates the execution coordinator. hub and collector may be
// nil.
func NewExecutor(artifacts store.ArtifactStore, blobs blob.Store, sandboxes sandbox.Provider, cfg config.SandboxConfig, hub *Hub, collector *metrics.Collector, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		artifacts: artifacts,
		blobs:     blobs,
		sandboxes: sandboxes,
		cfg:       cfg,
		client:    &http.Client{Timeout: 30 * time.Second},
		hub:       hub,
		collector: collector,
		logger:    logger,
	}
}

// Execute renders one artifact in a disposable sandbox.
//
// The environment created here never outlives this call: teardown is
// deferred immediately after a successful provision and runs on success and
// failure alike, so every provision pairs with exactly one teardown. All
// stage errors end in a single terminal failed patch carrying the sandbox
// identifier obtained so far and the failure message; nothing is rethrown to
// a caller because no caller waits across the dispatch boundary.
func (ex *Executor) Execute(ctx context.Context, artifactID string) error {
	start := time.Now()

	artifact, err := ex.artifacts.Get(ctx, artifactID)
	if err != nil {
		// No record means no patch target; the log is the only trace.
		ex.logger.Error("execution target missing",
			zap.String("artifact_id", artifactID),
			zap.Error(err),
		)
		return fmt.Errorf("load artifact %s: %w", artifactID, err)
	}

	// At-least-once dispatch can redeliver; settled artifacts are done.
	if artifact.Status != types.ArtifactExecuting {
		ex.logger.Info("execution skipped, artifact not executing",
			zap.String("artifact_id", artifactID),
			zap.String("status", string(artifact.Status)),
		)
		return nil
	}

	env, err := ex.sandboxes.Create(ctx, sandbox.RuntimeSpec{
		Image:         ex.cfg.Image,
		ContainerPort: ex.cfg.ContainerPort,
		MemoryLimit:   ex.cfg.MemoryLimit,
		CPULimit:      ex.cfg.CPULimit,
	})
	if err != nil {
		return ex.fail(artifact, "", start, types.NewError(types.ErrSandboxProvision, "sandbox provisioning failed").WithCause(err))
	}
	if ex.collector != nil {
		ex.collector.SandboxCreated()
	}
	sandboxID := env.ID()
	defer ex.teardown(env)

	if err := env.Deploy(ctx, artifactFilename, []byte(artifact.GeneratedCode)); err != nil {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrSandboxExecution, "deploy into sandbox failed").WithCause(err))
	}

	baseURL, err := env.StartServer(ctx)
	if err != nil {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrSandboxExecution, "static server start failed").WithCause(err))
	}
	fetchURL := strings.TrimRight(baseURL, "/") + "/" + artifactFilename

	if err := ex.waitReady(ctx, fetchURL); err != nil {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrSandboxExecution, "sandbox server never became ready").WithCause(err))
	}

	body, status, err := ex.fetch(ctx, fetchURL)
	if err != nil {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrSandboxExecution, "fetch rendered output failed").WithCause(err))
	}
	if status < 200 || status > 299 {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrSandboxExecution, fmt.Sprintf("sandbox server answered status %d", status)))
	}

	blobID, err := ex.blobs.Put(ctx, strings.NewReader(body), "text/html")
	if err != nil {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrStorage, "persist rendered output").WithCause(err))
	}

	logs, err := env.Logs(ctx)
	if err != nil {
		ex.logger.Debug("sandbox logs unavailable",
			zap.String("sandbox_id", sandboxID),
			zap.Error(err),
		)
	}

	ready := types.ArtifactReady
	patch := types.ArtifactPatch{
		Status: &ready,
		Results: &types.ExecutionResults{
			SandboxID:  sandboxID,
			OutputHTML: body,
			Logs:       logs,
			Render:     summarizeRender(body),
		},
		OutputBlobID: &blobID,
	}
	if err := ex.artifacts.Patch(ctx, artifactID, patch); err != nil {
		return ex.fail(artifact, sandboxID, start, types.NewError(types.ErrStorage, "persist execution results").WithCause(err))
	}

	ex.observe(artifact, types.ArtifactReady, "", time.Since(start))
	ex.logger.Info("artifact executed",
		zap.String("artifact_id", artifactID),
		zap.String("sandbox_id", sandboxID),
		zap.Int("output_bytes", len(body)),
	)
	return nil
}

// waitReady waits for the sandbox server to answer. After an initial settle
// delay, probes run with exponential backoff until any HTTP response arrives
// or the deadline expires. A non-2xx probe response still counts as ready;
// the authoritative verdict on the content comes from the real fetch.
func (ex *Executor) waitReady(ctx context.Context, url string) error {
	if d := ex.cfg.SettleDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	deadline := ex.cfg.ProbeDeadline
	if deadline <= 0 {
		deadline = 15 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	interval := ex.cfg.ProbeInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	backoff := ex.cfg.ProbeBackoff
	if backoff < 1 {
		backoff = 1.5
	}

	var lastErr error
	for {
		req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := ex.client.Do(req)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err

		select {
		case <-probeCtx.Done():
			return fmt.Errorf("readiness deadline expired: %w (last probe: %v)", probeCtx.Err(), lastErr)
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * backoff)
	}
}

// fetch performs the single authoritative read of the rendered output.
func (ex *Executor) fetch(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := ex.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// teardown closes the environment on a detached context so cleanup survives
// stage timeouts. Teardown failures are logged and never change the status
// the stage already recorded.
func (ex *Executor) teardown(env sandbox.Environment) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := env.Close(ctx); err != nil {
		ex.logger.Warn("sandbox teardown failed",
			zap.String("sandbox_id", env.ID()),
			zap.Error(err),
		)
	}
	if ex.collector != nil {
		ex.collector.SandboxDeleted()
	}
}

// fail records the execution failure as the artifact's terminal status. The
// patch runs on a detached context so a stage timeout cannot swallow the
// terminal record. The error is returned for dispatcher accounting only.
func (ex *Executor) fail(artifact *types.Artifact, sandboxID string, start time.Time, stageErr *types.Error) error {
	msg := stageErr.Message
	if stageErr.Cause != nil {
		msg = msg + ": " + stageErr.Cause.Error()
	}
	ex.logger.Warn("execution failed",
		zap.String("artifact_id", artifact.ID),
		zap.String("sandbox_id", sandboxID),
		zap.Error(stageErr),
	)

	patchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := types.ArtifactFailed
	patch := types.ArtifactPatch{
		Status: &failed,
		Results: &types.ExecutionResults{
			SandboxID: sandboxID,
			Errors:    []string{msg},
		},
	}
	if err := ex.artifacts.Patch(patchCtx, artifact.ID, patch); err != nil {
		ex.logger.Error("failed patch failed",
			zap.String("artifact_id", artifact.ID),
			zap.Error(err),
		)
	}

	ex.observe(artifact, types.ArtifactFailed, msg, time.Since(start))
	return stageErr
}

func (ex *Executor) observe(artifact *types.Artifact, to types.ArtifactStatus, errMsg string, elapsed time.Duration) {
	if ex.collector != nil {
		outcome := "success"
		if to == types.ArtifactFailed {
			outcome = "failure"
		}
		ex.collector.RecordPipelineStage("execution", outcome, elapsed)
		ex.collector.RecordSandboxExecution(outcome, elapsed)
		ex.collector.RecordStatusTransition("artifact", string(types.ArtifactExecuting), string(to))
	}
	if ex.hub != nil {
		ex.hub.Publish(StatusEvent{
			Entity:     EntityArtifact,
			ID:         artifact.ID,
			OwnerID:    artifact.OwnerID,
			DocumentID: artifact.DocumentID,
			Status:     string(to),
			Error:      errMsg,
		})
	}
}

// summarizeRender digests fetched HTML into a small render summary: the
// document title and counts of script, canvas and input elements. The
// summary is informational; a body that cannot be parsed yields nil and
// never fails the execution.
func summarizeRender(body string) *types.RenderSummary {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	summary := &types.RenderSummary{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				summary.Scripts++
			case "canvas":
				summary.Canvases++
			case "input":
				summary.Inputs++
			case "title":
				if summary.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					summary.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return summary
}
