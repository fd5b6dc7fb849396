package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/api"
	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 📄 文档接口 Handler
// =============================================================================

// defaultMaxUploadBytes 未配置时的上传大小上限
const defaultMaxUploadBytes = 32 << 20 // 32 MB

// sniffLen Content-Type 嗅探读取的字节数
const sniffLen = 512

// ExtractionScheduler 将提取阶段派发到后台执行。
type ExtractionScheduler interface {
	EnqueueExtraction(documentID string) error
}

// DocumentsHandler 文档接口处理器
type DocumentsHandler struct {
	documents store.DocumentStore
	blobs     blob.Store
	ensurer   *store.OwnerEnsurer
	scheduler ExtractionScheduler
	maxUpload int64
	logger    *zap.Logger
}

// NewDocumentsHandler 创建文档处理器
func NewDocumentsHandler(
	documents store.DocumentStore,
	blobs blob.Store,
	ensurer *store.OwnerEnsurer,
	scheduler ExtractionScheduler,
	maxUpload int64,
	logger *zap.Logger,
) *DocumentsHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &DocumentsHandler{
		documents: documents,
		blobs:     blobs,
		ensurer:   ensurer,
		scheduler: scheduler,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// HandleUpload 处理文档上传请求
// @Summary 上传文档
// @Description 上传源文件并启动后台提取；返回 202 与 processing 状态记录
// @Tags 文档
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "源文件"
// @Param title formData string false "文档标题（缺省为文件名）"
// @Success 202 {object} Response{data=api.DocumentResponse} "已受理"
// @Failure 400 {object} Response "无效请求"
// @Failure 401 {object} Response "未认证"
// @Failure 500 {object} Response "内部错误"
// @Security BearerAuth
// @Router /api/v1/documents [post]
func (h *DocumentsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	// 整体请求体限制在上传上限内
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("upload exceeds limit of %d bytes", maxErr.Limit)).
				WithHTTPStatus(http.StatusRequestEntityTooLarge), h.logger)
			return
		}
		WriteError(w, types.NewError(types.ErrInvalidRequest, `multipart field "file" is required`).WithCause(err), h.logger)
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}
	if title == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "upload carries neither title nor filename"), h.logger)
		return
	}

	contentType, reader, err := sniffContentType(header.Header.Get("Content-Type"), file)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "failed to read upload").WithCause(err), h.logger)
		return
	}

	blobID, err := h.blobs.Put(r.Context(), reader, contentType)
	if err != nil {
		WriteError(w, types.NewError(types.ErrStorage, "failed to persist upload").WithCause(err).WithRetryable(true), h.logger)
		return
	}

	doc := &types.Document{
		ID:         uuid.NewString(),
		OwnerID:    owner.ID,
		Title:      title,
		Filename:   header.Filename,
		FileBlobID: blobID,
		Status:     types.DocumentProcessing,
	}
	if err := h.documents.Insert(r.Context(), doc); err != nil {
		WriteError(w, types.NewError(types.ErrStorage, "failed to persist document").WithCause(err).WithRetryable(true), h.logger)
		return
	}

	// 记录插入成功后再入队；即使派发失败，记录仍是权威状态
	if err := h.scheduler.EnqueueExtraction(doc.ID); err != nil {
		h.logger.Warn("extraction enqueue rejected",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "extraction pipeline is not accepting work").WithCause(err).WithRetryable(true), h.logger)
		return
	}

	h.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("owner_id", owner.ID),
		zap.String("filename", header.Filename),
		zap.String("content_type", contentType),
		zap.Int64("size", header.Size),
	)

	WriteAccepted(w, api.NewDocumentResponse(doc, h.fileURL(doc)))
}

// HandleGet 处理文档点查询请求
// @Summary 查询文档
// @Description 按 ID 查询单个文档（含提取正文）
// @Tags 文档
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} Response{data=api.DocumentResponse} "文档"
// @Failure 403 {object} Response "无权访问"
// @Failure 404 {object} Response "文档不存在"
// @Security BearerAuth
// @Router /api/v1/documents/{id} [get]
func (h *DocumentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "document id is required"), h.logger)
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		WriteError(w, storeError(err, "document not found"), h.logger)
		return
	}
	if doc.OwnerID != owner.ID {
		WriteError(w, types.NewError(types.ErrUnauthorized, "document belongs to a different owner"), h.logger)
		return
	}

	WriteSuccess(w, api.NewDocumentResponse(doc, h.fileURL(doc)))
}

// HandleList 处理文档列表请求
// @Summary 列出文档
// @Description 列出当前 Owner 的全部文档（最新优先）；列表响应省略提取正文
// @Tags 文档
// @Produce json
// @Success 200 {object} Response{data=api.DocumentListResponse} "文档列表"
// @Failure 401 {object} Response "未认证"
// @Security BearerAuth
// @Router /api/v1/documents [get]
func (h *DocumentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	docs, err := h.documents.ListByOwner(r.Context(), owner.ID)
	if err != nil {
		WriteError(w, storeError(err, "documents not found"), h.logger)
		return
	}

	items := make([]api.DocumentResponse, 0, len(docs))
	for i := range docs {
		item := api.NewDocumentResponse(&docs[i], h.fileURL(&docs[i]))
		// 正文可能数兆，点查询才返回
		item.ExtractedContent = nil
		items = append(items, item)
	}

	WriteSuccess(w, api.DocumentListResponse{Documents: items})
}

// fileURL 解析文档原始文件的取回地址；blob 不可解析时返回空。
func (h *DocumentsHandler) fileURL(doc *types.Document) string {
	if doc.FileBlobID == "" {
		return ""
	}
	u, ok := h.blobs.URL(doc.FileBlobID)
	if !ok {
		return ""
	}
	return u
}

// sniffContentType 确定上传内容类型。
// multipart 声明的类型优先；缺失或过于宽泛时按首 512 字节嗅探。
func sniffContentType(declared string, file io.Reader) (string, io.Reader, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, file, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]

	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), file), nil
}
