// =============================================================================
// 📦 测试数据工厂 - 文档与产物记录
// =============================================================================
// 提供各生命周期阶段的预构造记录，用于测试
// =============================================================================
package fixtures

import (
	"github.com/google/uuid"

	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 🎯 Document 工厂
// =============================================================================

// ProcessingDocument 返回处于 processing 状态的新文档。
func ProcessingDocument(ownerID string) *types.Document {
	return &types.Document{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      "attention.pdf",
		Filename:   "attention.pdf",
		FileBlobID: "blob-" + uuid.NewString(),
		Status:     types.DocumentProcessing,
	}
}

// ReadyDocument 返回提取完成的文档，带抽取文本与元数据。
func ReadyDocument(ownerID string) *types.Document {
	content := "Attention mechanisms allow models to focus on relevant parts of the input."
	return &types.Document{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Title:            "Attention Is All You Need",
		Filename:         "attention.pdf",
		FileBlobID:       "blob-" + uuid.NewString(),
		Status:           types.DocumentReady,
		ExtractedContent: &content,
		Metadata: &types.DocumentMetadata{
			Authors:  []string{"Ashish Vaswani", "Noam Shazeer"},
			Abstract: "We propose a new simple network architecture, the Transformer.",
			Keywords: []string{"attention", "transformer"},
		},
	}
}

// ErrorDocument 返回提取失败的文档。
func ErrorDocument(ownerID string) *types.Document {
	return &types.Document{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      "corrupt.pdf",
		Filename:   "corrupt.pdf",
		FileBlobID: "blob-" + uuid.NewString(),
		Status:     types.DocumentError,
	}
}

// =============================================================================
// 🎯 Artifact 工厂
// =============================================================================

// GeneratingArtifact 返回处于 generating 状态的新产物。
func GeneratingArtifact(ownerID, documentID string) *types.Artifact {
	return &types.Artifact{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		DocumentID: documentID,
		Concept:    "scaled dot-product attention",
		Status:     types.ArtifactGenerating,
	}
}

// ExecutingArtifact 返回已生成代码、等待沙箱执行的产物。
func ExecutingArtifact(ownerID, documentID string) *types.Artifact {
	a := GeneratingArtifact(ownerID, documentID)
	a.Status = types.ArtifactExecuting
	a.GeneratedCode = DemoHTML()
	return a
}

// ReadyArtifact 返回执行完成的产物。
func ReadyArtifact(ownerID, documentID string) *types.Artifact {
	a := ExecutingArtifact(ownerID, documentID)
	a.Status = types.ArtifactReady
	a.OutputBlobID = "blob-" + uuid.NewString()
	a.Results = &types.ExecutionResults{
		SandboxID:  "sandbox-001",
		OutputHTML: DemoHTML(),
		Logs:       []string{"server started"},
		Render:     &types.RenderSummary{Title: "Attention Demo", Scripts: 1, Canvases: 1, Inputs: 1},
	}
	return a
}

// FailedArtifact 返回执行失败的产物。
func FailedArtifact(ownerID, documentID string) *types.Artifact {
	a := ExecutingArtifact(ownerID, documentID)
	a.Status = types.ArtifactFailed
	a.Results = &types.ExecutionResults{
		SandboxID: "sandbox-001",
		Errors:    []string{"sandbox server answered status 500"},
	}
	return a
}
