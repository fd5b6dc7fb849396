// =============================================================================
// 📦 测试数据工厂 - 模型响应测试数据
// =============================================================================
// 提供预定义的分析响应与生成代码数据，用于测试
// =============================================================================
package fixtures

import (
	"time"

	"github.com/BaSui01/demoforge/llm"
)

// =============================================================================
// 🎯 ChatResponse 工厂
// =============================================================================

// SimpleResponse 返回简单的文本响应。
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: content,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		CreatedAt: time.Now(),
	}
}

// EmptyResponse 返回没有任何候选的响应。
func EmptyResponse() *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-empty",
		Provider: "mock",
		Model:    "gpt-4o",
	}
}

// =============================================================================
// 🎯 分析响应工厂
// =============================================================================

// StructuredAnalysisJSON 返回结构化的分析响应，
// authors 与 keywords 为 JSON 列表形式。
func StructuredAnalysisJSON() string {
	return `{
  "content": "Attention mechanisms allow models to focus on relevant parts of the input sequence.",
  "title": "Attention Is All You Need",
  "authors": ["Ashish Vaswani", "Noam Shazeer"],
  "abstract": "We propose the Transformer, based solely on attention mechanisms.",
  "keywords": ["attention", "transformer", "sequence modeling"]
}`
}

// StructuredAnalysisCommaLists 返回结构化的分析响应，
// authors 与 keywords 为逗号分隔字符串形式。
func StructuredAnalysisCommaLists() string {
	return `{
  "content": "Attention mechanisms allow models to focus on relevant parts of the input sequence.",
  "title": "Attention Is All You Need",
  "authors": "Ashish Vaswani, Noam Shazeer",
  "abstract": "We propose the Transformer, based solely on attention mechanisms.",
  "keywords": "attention; transformer; sequence modeling"
}`
}

// FencedAnalysisJSON 返回包裹在 Markdown 代码围栏中的结构化响应。
func FencedAnalysisJSON() string {
	return "```json\n" + StructuredAnalysisJSON() + "\n```"
}

// PlainTextAnalysis 返回非 JSON 的纯文本分析响应。
func PlainTextAnalysis() string {
	return "The document describes attention mechanisms in neural networks. " +
		"It introduces the Transformer architecture and evaluates it on translation tasks."
}

// =============================================================================
// 🎯 生成代码工厂
// =============================================================================

// DemoHTML 返回一份小型自包含交互演示页面。
func DemoHTML() string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Attention Demo</title>
</head>
<body>
<h1>Scaled Dot-Product Attention</h1>
<canvas id="viz" width="400" height="300"></canvas>
<input id="temperature" type="range" min="0" max="100" value="50">
<script>
const canvas = document.getElementById('viz');
const ctx = canvas.getContext('2d');
document.getElementById('temperature').addEventListener('input', function (e) {
  ctx.clearRect(0, 0, canvas.width, canvas.height);
  ctx.fillRect(10, 10, Number(e.target.value), 40);
});
</script>
</body>
</html>`
}

// FencedDemoHTML 返回包裹在 Markdown 代码围栏中的演示页面。
func FencedDemoHTML() string {
	return "```html\n" + DemoHTML() + "\n```"
}
