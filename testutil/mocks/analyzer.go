// MockAnalyzer 的文档分析器测试模拟实现。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/demoforge/llm"
)

// MockAnalyzerCall 记录单次分析调用。
type MockAnalyzerCall struct {
	FileURL      string
	Instructions string
}

// MockAnalyzer 是 llm.Analyzer 的模拟实现。
type MockAnalyzer struct {
	mu sync.Mutex

	response    string
	err         error
	analyzeFunc func(ctx context.Context, fileURL, instructions string) (string, error)

	calls []MockAnalyzerCall
}

// NewMockAnalyzer 创建新的 MockAnalyzer。
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		response: `{"content":"Mock extracted text","title":"Mock Title"}`,
	}
}

// WithResponse 设置固定的分析响应。
func (m *MockAnalyzer) WithResponse(response string) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError 设置返回错误。
func (m *MockAnalyzer) WithError(err error) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithAnalyzeFunc 设置自定义分析函数。
func (m *MockAnalyzer) WithAnalyzeFunc(fn func(ctx context.Context, fileURL, instructions string) (string, error)) *MockAnalyzer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzeFunc = fn
	return m
}

// Analyze 返回配置的分析结果。
func (m *MockAnalyzer) Analyze(ctx context.Context, fileURL, instructions string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockAnalyzerCall{FileURL: fileURL, Instructions: instructions})

	if m.err != nil {
		return "", m.err
	}
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, fileURL, instructions)
	}
	return m.response, nil
}

// Calls 返回全部调用记录的副本。
func (m *MockAnalyzer) Calls() []MockAnalyzerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockAnalyzerCall(nil), m.calls...)
}

// CallCount 返回 Analyze 被调用的次数。
func (m *MockAnalyzer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ llm.Analyzer = (*MockAnalyzer)(nil)
