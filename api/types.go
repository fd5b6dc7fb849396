package api

import (
	"time"

	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 文档类型
// =============================================================================

// DocumentMetadata 表示从源文件中提取的结构化元数据。
// 回退解析路径会将所有字段留空。
// @Description 文档元数据结构
type DocumentMetadata struct {
	// 作者列表
	Authors []string `json:"authors,omitempty"`
	// 摘要
	Abstract string `json:"abstract,omitempty"`
	// 关键词列表
	Keywords []string `json:"keywords,omitempty"`
}

// DocumentResponse 代表一个已上传文档及其提取结果。
// @Description 文档响应结构
type DocumentResponse struct {
	// 文档 ID
	ID string `json:"id" example:"9b8f2c64-55a1-4b0e-8f1d-1d2f3a4b5c6d"`
	// 标题（提取成功前为原始文件名）
	Title string `json:"title" example:"Attention Is All You Need"`
	// 原始文件名
	Filename string `json:"filename,omitempty" example:"attention.pdf"`
	// 处理状态（processing、ready、error）
	Status string `json:"status" example:"ready"`
	// 原始文件取回地址
	FileURL string `json:"file_url,omitempty"`
	// 提取的正文文本（仅 ready 状态存在）
	ExtractedContent *string `json:"extracted_content,omitempty"`
	// 提取的结构化元数据（仅 ready 状态存在）
	Metadata *DocumentMetadata `json:"metadata,omitempty"`
	// 创建时间戳
	CreatedAt time.Time `json:"created_at"`
	// 最后更新时间戳
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentListResponse 表示文档列表。
// @Description 文档列表响应
type DocumentListResponse struct {
	// 文档清单（最新优先）
	Documents []DocumentResponse `json:"documents"`
}

// =============================================================================
// 工件类型
// =============================================================================

// CreateArtifactRequest 代表演示生成请求。
// @Description 演示生成请求结构
type CreateArtifactRequest struct {
	// 源文档 ID
	DocumentID string `json:"documentId" example:"9b8f2c64-55a1-4b0e-8f1d-1d2f3a4b5c6d" binding:"required"`
	// 要演示的概念
	Concept string `json:"concept" example:"scaled dot-product attention" binding:"required"`
}

// RenderSummary 表示沙箱渲染输出的摘要。
// @Description 渲染摘要结构
type RenderSummary struct {
	// 页面标题
	Title string `json:"title,omitempty" example:"Attention Demo"`
	// script 元素数量
	Scripts int `json:"scripts" example:"1"`
	// canvas 元素数量
	Canvases int `json:"canvases" example:"1"`
	// input 元素数量
	Inputs int `json:"inputs" example:"1"`
}

// ExecutionResults 表示一次沙箱执行产出。
// @Description 执行结果结构
type ExecutionResults struct {
	// 执行环境 ID（环境销毁后仍保留，用于日志关联）
	SandboxID string `json:"sandbox_id,omitempty" example:"demoforge-sbx-1f2e3d"`
	// 渲染后的 HTML
	OutputHTML string `json:"output_html,omitempty"`
	// 沙箱日志
	Logs []string `json:"logs,omitempty"`
	// 失败信息（仅 failed 状态存在）
	Errors []string `json:"errors,omitempty"`
	// 渲染摘要
	Render *RenderSummary `json:"render,omitempty"`
}

// ArtifactResponse 代表一个生成的交互式演示工件。
// @Description 工件响应结构
type ArtifactResponse struct {
	// 工件 ID
	ID string `json:"id" example:"3f8a1b2c-77d4-4e5f-9a0b-c1d2e3f4a5b6"`
	// 源文档 ID
	DocumentID string `json:"document_id"`
	// 演示的概念
	Concept string `json:"concept" example:"scaled dot-product attention"`
	// 工件状态（generating、executing、ready、failed）
	Status string `json:"status" example:"ready"`
	// 生成的演示代码
	GeneratedCode string `json:"generated_code,omitempty"`
	// 执行结果（仅终态存在）
	Results *ExecutionResults `json:"results,omitempty"`
	// 渲染输出取回地址（仅 ready 状态存在）
	DemoURL string `json:"demo_url,omitempty"`
	// 创建时间戳
	CreatedAt time.Time `json:"created_at"`
	// 最后更新时间戳
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtifactListResponse 表示工件列表。
// @Description 工件列表响应
type ArtifactListResponse struct {
	// 工件清单（最新优先）
	Artifacts []ArtifactResponse `json:"artifacts"`
}

// =============================================================================
// 转换函数
// =============================================================================

// NewDocumentResponse 将领域 Document 转换为 API 响应。
// fileURL 为空时省略取回地址（例如 blob 尚不可解析）。
func NewDocumentResponse(doc *types.Document, fileURL string) DocumentResponse {
	return DocumentResponse{
		ID:               doc.ID,
		Title:            doc.Title,
		Filename:         doc.Filename,
		Status:           string(doc.Status),
		FileURL:          fileURL,
		ExtractedContent: doc.ExtractedContent,
		Metadata:         newDocumentMetadata(doc.Metadata),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func newDocumentMetadata(m *types.DocumentMetadata) *DocumentMetadata {
	if m == nil {
		return nil
	}
	return &DocumentMetadata{
		Authors:  m.Authors,
		Abstract: m.Abstract,
		Keywords: m.Keywords,
	}
}

// NewArtifactResponse 将领域 Artifact 转换为 API 响应。
// demoURL 为空时省略演示地址（未就绪或输出不可解析）。
func NewArtifactResponse(artifact *types.Artifact, demoURL string) ArtifactResponse {
	return ArtifactResponse{
		ID:            artifact.ID,
		DocumentID:    artifact.DocumentID,
		Concept:       artifact.Concept,
		Status:        string(artifact.Status),
		GeneratedCode: artifact.GeneratedCode,
		Results:       newExecutionResults(artifact.Results),
		DemoURL:       demoURL,
		CreatedAt:     artifact.CreatedAt,
		UpdatedAt:     artifact.UpdatedAt,
	}
}

func newExecutionResults(r *types.ExecutionResults) *ExecutionResults {
	if r == nil {
		return nil
	}
	out := &ExecutionResults{
		SandboxID:  r.SandboxID,
		OutputHTML: r.OutputHTML,
		Logs:       r.Logs,
		Errors:     r.Errors,
	}
	if r.Render != nil {
		out.Render = &RenderSummary{
			Title:    r.Render.Title,
			Scripts:  r.Render.Scripts,
			Canvases: r.Render.Canvases,
			Inputs:   r.Render.Inputs,
		}
	}
	return out
}
