package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/internal/metrics"
	"github.com/BaSui01/demoforge/llm"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// Ingestor runs the document ingestion stage: fetchable blob address in,
// analysis model out, one atomic ready/error patch at the end.
type Ingestor struct {
	documents store.DocumentStore
	blobs     blob.Store
	analyzer  llm.Analyzer
	hub       *Hub
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewIngestor creates the ingestion coordinator. hub and collector may be
// nil.
func NewIngestor(documents store.DocumentStore, blobs blob.Store, analyzer llm.Analyzer, hub *Hub, collector *metrics.Collector, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		documents: documents,
		blobs:     blobs,
		analyzer:  analyzer,
		hub:       hub,
		collector: collector,
		logger:    logger,
	}
}

// RunExtraction extracts text and metadata for one document.
//
// The document is mutated exactly once: a single patch to ready with the
// extracted fields, or a single patch to error. A missing document is a
// collaborator bug and fails fast without touching any record. There is no
// automatic retry; a failed document stays failed and re-uploading creates a
// new one.
func (in *Ingestor) RunExtraction(ctx context.Context, documentID string) error {
	start := time.Now()

	doc, err := in.documents.Get(ctx, documentID)
	if err != nil {
		in.logger.Error("extraction target missing",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	// At-least-once dispatch can redeliver; terminal documents are done.
	if doc.Status != types.DocumentProcessing {
		in.logger.Info("extraction skipped, document already settled",
			zap.String("document_id", documentID),
			zap.String("status", string(doc.Status)),
		)
		return nil
	}

	fileURL, ok := in.blobs.URL(doc.FileBlobID)
	if !ok {
		return in.fail(ctx, doc, start, types.NewError(types.ErrExtraction, "raw file blob is not resolvable").WithCause(blob.ErrNotFound))
	}

	raw, err := in.analyzer.Analyze(ctx, fileURL, AnalysisInstructions())
	if err != nil {
		return in.fail(ctx, doc, start, types.NewError(types.ErrExtraction, "document analysis failed").WithCause(err))
	}

	result := ParseAnalysisResponse(raw)
	if !result.Structured {
		in.logger.Info("analysis response not structured, keeping raw text",
			zap.String("document_id", documentID),
		)
	}

	status := types.DocumentReady
	patch := types.DocumentPatch{
		Status:           &status,
		ExtractedContent: &result.Content,
		Metadata:         &result.Metadata,
	}
	if result.Title != "" {
		patch.Title = &result.Title
	}
	if err := in.documents.Patch(ctx, documentID, patch); err != nil {
		// Nothing left to record into; the log is the only trace.
		in.logger.Error("ready patch failed",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
		return fmt.Errorf("patch document %s ready: %w", documentID, err)
	}

	in.observe(doc, types.DocumentReady, "", time.Since(start))
	in.logger.Info("document extracted",
		zap.String("document_id", documentID),
		zap.Bool("structured", result.Structured),
		zap.Int("content_bytes", len(result.Content)),
	)
	return nil
}

// fail records the extraction failure as the document's terminal status. The
// error is returned for operational logging only, never rethrown to a
// waiting caller.
func (in *Ingestor) fail(ctx context.Context, doc *types.Document, start time.Time, stageErr *types.Error) error {
	in.logger.Warn("extraction failed",
		zap.String("document_id", doc.ID),
		zap.Error(stageErr),
	)

	status := types.DocumentError
	if err := in.documents.Patch(ctx, doc.ID, types.DocumentPatch{Status: &status}); err != nil {
		in.logger.Error("error patch failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return stageErr
	}

	in.observe(doc, types.DocumentError, stageErr.Message, time.Since(start))
	return stageErr
}

func (in *Ingestor) observe(doc *types.Document, to types.DocumentStatus, errMsg string, elapsed time.Duration) {
	if in.collector != nil {
		outcome := "success"
		if to == types.DocumentError {
			outcome = "failure"
		}
		in.collector.RecordPipelineStage("extraction", outcome, elapsed)
		in.collector.RecordStatusTransition("document", string(doc.Status), string(to))
	}
	if in.hub != nil {
		in.hub.Publish(StatusEvent{
			Entity:  EntityDocument,
			ID:      doc.ID,
			OwnerID: doc.OwnerID,
			Status:  string(to),
			Error:   errMsg,
		})
	}
}
