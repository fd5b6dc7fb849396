package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/api"
	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 🎨 工件接口 Handler
// =============================================================================

// DemoGenerator 同步执行演示生成阶段并把执行阶段移交后台。
type DemoGenerator interface {
	Generate(ctx context.Context, ownerID, documentID, concept string) (*types.Artifact, error)
}

// ArtifactsHandler 工件接口处理器
type ArtifactsHandler struct {
	artifacts store.ArtifactStore
	documents store.DocumentStore
	blobs     blob.Store
	ensurer   *store.OwnerEnsurer
	generator DemoGenerator
	logger    *zap.Logger
}

// NewArtifactsHandler 创建工件处理器
func NewArtifactsHandler(
	artifacts store.ArtifactStore,
	documents store.DocumentStore,
	blobs blob.Store,
	ensurer *store.OwnerEnsurer,
	generator DemoGenerator,
	logger *zap.Logger,
) *ArtifactsHandler {
	return &ArtifactsHandler{
		artifacts: artifacts,
		documents: documents,
		blobs:     blobs,
		ensurer:   ensurer,
		generator: generator,
		logger:    logger,
	}
}

// HandleCreate 处理演示生成请求
// @Summary 生成演示
// @Description 针对文档中的一个概念生成交互式演示；同步完成生成阶段，执行阶段在后台继续
// @Tags 工件
// @Accept json
// @Produce json
// @Param request body api.CreateArtifactRequest true "生成请求"
// @Success 202 {object} Response{data=api.ArtifactResponse} "已受理（executing 或 failed 状态记录）"
// @Failure 400 {object} Response "无效请求"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "文档不存在"
// @Security BearerAuth
// @Router /api/v1/artifacts [post]
func (h *ArtifactsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.CreateArtifactRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	artifact, err := h.generator.Generate(r.Context(), owner.ID, strings.TrimSpace(req.DocumentID), strings.TrimSpace(req.Concept))
	if err != nil {
		// 同步拒绝：请求从未产生记录
		var apiErr *types.Error
		if errors.As(err, &apiErr) {
			WriteError(w, apiErr, h.logger)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, types.NewError(types.ErrNotFound, "document not found"), h.logger)
			return
		}
		WriteError(w, types.NewError(types.ErrInternalError, "demo generation failed").WithCause(err), h.logger)
		return
	}

	// 生成阶段失败也返回 202：记录本身即结果，failed 状态由调用方读取
	h.logger.Info("artifact accepted",
		zap.String("artifact_id", artifact.ID),
		zap.String("document_id", artifact.DocumentID),
		zap.String("status", string(artifact.Status)),
	)

	WriteAccepted(w, api.NewArtifactResponse(artifact, h.demoURL(artifact)))
}

// HandleGet 处理工件点查询请求
// @Summary 查询工件
// @Description 按 ID 查询单个工件（含生成代码与执行结果）
// @Tags 工件
// @Produce json
// @Param id path string true "工件 ID"
// @Success 200 {object} Response{data=api.ArtifactResponse} "工件"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "工件不存在"
// @Security BearerAuth
// @Router /api/v1/artifacts/{id} [get]
func (h *ArtifactsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "artifact id is required"), h.logger)
		return
	}

	artifact, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		WriteError(w, storeError(err, "artifact not found"), h.logger)
		return
	}
	if artifact.OwnerID != owner.ID {
		WriteError(w, types.NewError(types.ErrUnauthorized, "artifact belongs to a different owner"), h.logger)
		return
	}

	WriteSuccess(w, api.NewArtifactResponse(artifact, h.demoURL(artifact)))
}

// HandleList 处理工件列表请求
// @Summary 列出工件
// @Description 列出当前 Owner 的工件，可按 documentId 过滤（最新优先）；列表响应省略生成代码与渲染 HTML
// @Tags 工件
// @Produce json
// @Param documentId query string false "按源文档过滤"
// @Success 200 {object} Response{data=api.ArtifactListResponse} "工件列表"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "文档不存在"
// @Security BearerAuth
// @Router /api/v1/artifacts [get]
func (h *ArtifactsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	var (
		artifacts []types.Artifact
		err       error
	)

	if documentID := strings.TrimSpace(r.URL.Query().Get("documentId")); documentID != "" {
		// 过滤前校验文档归属，避免跨 Owner 枚举
		doc, getErr := h.documents.Get(r.Context(), documentID)
		if getErr != nil {
			WriteError(w, storeError(getErr, "document not found"), h.logger)
			return
		}
		if doc.OwnerID != owner.ID {
			WriteError(w, types.NewError(types.ErrUnauthorized, "document belongs to a different owner"), h.logger)
			return
		}
		artifacts, err = h.artifacts.ListByDocument(r.Context(), documentID)
	} else {
		artifacts, err = h.artifacts.ListByOwner(r.Context(), owner.ID)
	}
	if err != nil {
		WriteError(w, storeError(err, "artifacts not found"), h.logger)
		return
	}

	items := make([]api.ArtifactResponse, 0, len(artifacts))
	for i := range artifacts {
		item := api.NewArtifactResponse(&artifacts[i], h.demoURL(&artifacts[i]))
		// 代码与渲染 HTML 可能数兆，点查询才返回
		item.GeneratedCode = ""
		if item.Results != nil {
			item.Results.OutputHTML = ""
		}
		items = append(items, item)
	}

	WriteSuccess(w, api.ArtifactListResponse{Artifacts: items})
}

// demoURL 解析渲染输出的取回地址；仅 ready 工件存在。
func (h *ArtifactsHandler) demoURL(artifact *types.Artifact) string {
	if artifact.Status != types.ArtifactReady || artifact.OutputBlobID == "" {
		return ""
	}
	u, ok := h.blobs.URL(artifact.OutputBlobID)
	if !ok {
		return ""
	}
	return u
}
