package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/internal/metrics"
	"github.com/BaSui01/demoforge/llm"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// Generator runs the synchronous phase of the artifact pipeline: authorize,
// insert the record, call the generative model once, persist the cleaned
// code, and hand the artifact to the execution stage.
type Generator struct {
	documents store.DocumentStore
	artifacts store.ArtifactStore
	provider  llm.Provider
	prompts   *PromptBuilder
	scheduler ExecutionScheduler
	hub       *Hub
	collector *metrics.Collector
	model     config.ModelEndpointConfig
	logger    *zap.Logger
}

// NewGenerator creates the generation orchestrator. hub and collector may be
// nil.
func NewGenerator(
	documents store.DocumentStore,
	artifacts store.ArtifactStore,
	provider llm.Provider,
	scheduler ExecutionScheduler,
	model config.ModelEndpointConfig,
	budgetRatio float64,
	hub *Hub,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		documents: documents,
		artifacts: artifacts,
		provider:  provider,
		prompts:   NewPromptBuilder(model.Model, budgetRatio),
		scheduler: scheduler,
		hub:       hub,
		collector: collector,
		model:     model,
		logger:    logger,
	}
}

// Generate creates one artifact for a concept within a document.
//
// Authorization and existence checks run before any record is created:
// NotFound, Unauthorized and InvalidRequest surface to the caller and leave
// no trace in the store. Once the artifact record exists, failures of the
// model call or the follow-up patch are recorded into a terminal failed
// status on the record and the record is returned without error; the HTTP
// layer reports them through the record, not a response status.
//
// The execution handoff is scheduled strictly after the executing patch has
// returned, so the execution stage can never observe a pre-patch record.
func (g *Generator) Generate(ctx context.Context, ownerID, documentID, concept string) (*types.Artifact, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "concept is required")
	}
	if documentID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "document id is required")
	}

	doc, err := g.documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, types.NewError(types.ErrNotFound, "document not found")
		}
		return nil, types.NewError(types.ErrStorage, "load document").WithCause(err)
	}
	if doc.OwnerID != ownerID {
		return nil, types.NewError(types.ErrUnauthorized, "document belongs to a different owner")
	}
	if doc.Status != types.DocumentReady {
		return nil, types.NewError(types.ErrInvalidRequest, "document is not ready for generation")
	}

	artifact := &types.Artifact{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		DocumentID: documentID,
		Concept:    concept,
		Status:     types.ArtifactGenerating,
	}
	if err := g.artifacts.Insert(ctx, artifact); err != nil {
		return nil, types.NewError(types.ErrStorage, "insert artifact").WithCause(err)
	}
	g.publish(artifact, types.ArtifactGenerating, "")

	start := time.Now()
	code, genErr := g.invokeModel(ctx, doc, concept)
	if genErr != nil {
		return g.failGenerating(ctx, artifact, start, genErr)
	}

	executing := types.ArtifactExecuting
	patch := types.ArtifactPatch{
		Status:        &executing,
		GeneratedCode: &code,
	}
	if err := g.artifacts.Patch(ctx, artifact.ID, patch); err != nil {
		return g.failGenerating(ctx, artifact, start, types.NewError(types.ErrStorage, "persist generated code").WithCause(err))
	}
	artifact.Status = executing
	artifact.GeneratedCode = code

	g.observeStage("success", time.Since(start))
	g.transition(types.ArtifactGenerating, types.ArtifactExecuting)
	g.publish(artifact, types.ArtifactExecuting, "")

	// Handoff strictly after the patch returned.
	if err := g.scheduler.EnqueueExecution(artifact.ID); err != nil {
		// The record sits in executing with no worker coming; surface it in
		// the logs loudly since only a new request can move it forward.
		g.logger.Error("execution handoff failed",
			zap.String("artifact_id", artifact.ID),
			zap.Error(err),
		)
	}

	g.logger.Info("artifact generated",
		zap.String("artifact_id", artifact.ID),
		zap.String("document_id", documentID),
		zap.Int("code_bytes", len(code)),
	)
	return artifact, nil
}

// invokeModel performs the single generation call and cleans the response.
func (g *Generator) invokeModel(ctx context.Context, doc *types.Document, concept string) (string, error) {
	req := &llm.ChatRequest{
		Model:       g.model.Model,
		Messages:    toLLMMessages(g.prompts.BuildGenerationMessages(doc, concept)),
		MaxTokens:   g.model.MaxTokens,
		Temperature: g.model.Temperature,
		Timeout:     g.model.Timeout,
	}

	start := time.Now()
	resp, err := g.provider.Completion(ctx, req)
	if g.collector != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		var promptTokens, completionTokens int
		if resp != nil {
			promptTokens = resp.Usage.PromptTokens
			completionTokens = resp.Usage.CompletionTokens
		}
		g.collector.RecordLLMRequest(g.provider.Name(), g.model.Model, outcome, time.Since(start), promptTokens, completionTokens)
	}
	if err != nil {
		return "", types.NewError(types.ErrGeneration, "generation model call failed").WithCause(err)
	}

	choice, err := llm.FirstChoice(resp)
	if err != nil {
		return "", types.NewError(types.ErrGeneration, "generation model returned no output").WithCause(err)
	}

	code := llm.StripFences(choice.Message.Content)
	if strings.TrimSpace(code) == "" {
		return "", types.NewError(types.ErrGeneration, "generation model returned empty output")
	}
	return code, nil
}

// failGenerating records a synchronous-phase failure as the artifact's
// terminal status. The failed record is returned with a nil error: the
// pipeline instance exists, its outcome is in the record.
func (g *Generator) failGenerating(ctx context.Context, artifact *types.Artifact, start time.Time, genErr error) (*types.Artifact, error) {
	g.logger.Warn("generation failed",
		zap.String("artifact_id", artifact.ID),
		zap.Error(genErr),
	)

	failed := types.ArtifactFailed
	msg := genErr.Error()
	var typed *types.Error
	if errors.As(genErr, &typed) {
		msg = typed.Message
		if typed.Cause != nil {
			msg = msg + ": " + typed.Cause.Error()
		}
	}
	patch := types.ArtifactPatch{
		Status:  &failed,
		Results: &types.ExecutionResults{Errors: []string{msg}},
	}
	if err := g.artifacts.Patch(ctx, artifact.ID, patch); err != nil {
		g.logger.Error("failed patch failed",
			zap.String("artifact_id", artifact.ID),
			zap.Error(err),
		)
	} else {
		artifact.Status = failed
		artifact.Results = patch.Results
	}

	g.observeStage("failure", time.Since(start))
	g.transition(types.ArtifactGenerating, types.ArtifactFailed)
	g.publish(artifact, types.ArtifactFailed, msg)
	return artifact, nil
}

func (g *Generator) observeStage(outcome string, elapsed time.Duration) {
	if g.collector != nil {
		g.collector.RecordPipelineStage("generation", outcome, elapsed)
	}
}

func (g *Generator) transition(from, to types.ArtifactStatus) {
	if g.collector != nil {
		g.collector.RecordStatusTransition("artifact", string(from), string(to))
	}
}

func (g *Generator) publish(artifact *types.Artifact, status types.ArtifactStatus, errMsg string) {
	if g.hub == nil {
		return
	}
	g.hub.Publish(StatusEvent{
		Entity:     EntityArtifact,
		ID:         artifact.ID,
		OwnerID:    artifact.OwnerID,
		DocumentID: artifact.DocumentID,
		Status:     string(status),
		Error:      errMsg,
	})
}
