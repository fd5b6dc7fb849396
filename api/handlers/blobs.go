package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 🗃️ Blob 接口 Handler
// =============================================================================

// BlobsHandler Blob 内容处理器
type BlobsHandler struct {
	blobs  blob.Store
	logger *zap.Logger
}

// NewBlobsHandler 创建 Blob 处理器
func NewBlobsHandler(blobs blob.Store, logger *zap.Logger) *BlobsHandler {
	return &BlobsHandler{
		blobs:  blobs,
		logger: logger,
	}
}

// HandleGet 处理 Blob 内容请求
// @Summary 取回 Blob
// @Description 按内容寻址 ID 返回存储对象（原始上传或渲染输出），带存储的内容类型
// @Tags Blob
// @Produce octet-stream
// @Param id path string true "Blob ID"
// @Success 200 {string} binary "对象内容"
// @Failure 404 {object} Response "对象不存在"
// @Security BearerAuth
// @Router /api/v1/blobs/{id} [get]
func (h *BlobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "blob id is required"), h.logger)
		return
	}

	// 内容寻址：同一 ID 永远对应同一字节序列
	etag := `"` + id + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	rc, info, err := h.blobs.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			WriteError(w, types.NewError(types.ErrNotFound, "blob not found"), h.logger)
			return
		}
		WriteError(w, types.NewError(types.ErrStorage, "failed to open blob").WithCause(err).WithRetryable(true), h.logger)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if strings.HasPrefix(contentType, "text/html") {
		// 演示页自带内联脚本；sandbox CSP 允许脚本执行但将页面隔离为独立源
		w.Header().Set("Content-Security-Policy", "sandbox allow-scripts")
	}

	if _, err := io.Copy(w, rc); err != nil {
		// 响应头已发出，只能记录
		h.logger.Warn("blob stream interrupted",
			zap.String("blob_id", id),
			zap.Error(err),
		)
	}
}
