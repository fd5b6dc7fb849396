package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Analyzer 是文档分析协作方的统一接口。
// 实现方接收一个可抓取的文件地址与分析指令，返回模型的原始文本输出；
// 输出可能是结构化 JSON，也可能是松散的纯文本，由调用方宽松解析。
type Analyzer interface {
	// Analyze 分析指定地址的文件并返回模型原始响应文本。
	Analyze(ctx context.Context, fileURL, instructions string) (string, error)
}

// AnalyzerOptions 控制单次分析调用的模型参数。
type AnalyzerOptions struct {
	// 模型名称
	Model string
	// 最大输出 token 数
	MaxTokens int
	// 温度参数（分析任务建议取低值）
	Temperature float32
}

// ModelAnalyzer 通过 Provider 执行文档分析。
// 每次 Analyze 为一次同步补全：指令作为 system 消息，
// 文件地址嵌入 user 消息。
type ModelAnalyzer struct {
	provider Provider
	opts     AnalyzerOptions
	logger   *zap.Logger
}

// NewModelAnalyzer 创建基于模型的分析器。
func NewModelAnalyzer(provider Provider, opts AnalyzerOptions, logger *zap.Logger) *ModelAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelAnalyzer{
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Analyze 实现 Analyzer 接口。
func (a *ModelAnalyzer) Analyze(ctx context.Context, fileURL, instructions string) (string, error) {
	req := &ChatRequest{
		Model: a.opts.Model,
		Messages: []Message{
			{Role: RoleSystem, Content: instructions},
			{Role: RoleUser, Content: fmt.Sprintf("Analyze the document available at: %s", fileURL)},
		},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}

	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("analysis completion: %w", err)
	}

	choice, err := FirstChoice(resp)
	if err != nil {
		return "", fmt.Errorf("analysis response: %w", err)
	}

	a.logger.Debug("document analysis completed",
		zap.String("provider", a.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return choice.Message.Content, nil
}
