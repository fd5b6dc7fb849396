// MockSandboxProvider 的沙箱环境测试模拟实现。
//
// 支持在 Create/Deploy/StartServer 各阶段注入失败，
// 并统计创建与销毁次数，便于验证环境生命周期配对。
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/demoforge/sandbox"
)

// MockSandboxProvider 是 sandbox.Provider 的模拟实现。
type MockSandboxProvider struct {
	mu sync.Mutex

	// 失败注入
	createErr error
	deployErr error
	startErr  error
	logsErr   error

	// 环境行为配置
	serveURL string
	logs     []string

	createCount int
	closeCount  int
	envs        []*MockEnvironment
}

// NewMockSandboxProvider 创建新的 MockSandboxProvider。
func NewMockSandboxProvider() *MockSandboxProvider {
	return &MockSandboxProvider{
		serveURL: "http://127.0.0.1:0",
		logs:     []string{"server started"},
	}
}

// WithServeURL 设置 StartServer 返回的基础 URL。
func (p *MockSandboxProvider) WithServeURL(url string) *MockSandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.serveURL = url
	return p
}

// WithLogs 设置环境日志内容。
func (p *MockSandboxProvider) WithLogs(lines ...string) *MockSandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append([]string(nil), lines...)
	return p
}

// WithCreateError 设置 Create 阶段失败。
func (p *MockSandboxProvider) WithCreateError(err error) *MockSandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createErr = err
	return p
}

// WithDeployError 设置 Deploy 阶段失败。
func (p *MockSandboxProvider) WithDeployError(err error) *MockSandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deployErr = err
	return p
}

// WithStartError 设置 StartServer 阶段失败。
func (p *MockSandboxProvider) WithStartError(err error) *MockSandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
	return p
}

// WithLogsError 设置 Logs 阶段失败。
func (p *MockSandboxProvider) WithLogsError(err error) *MockSandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logsErr = err
	return p
}

// Create 创建模拟环境。
func (p *MockSandboxProvider) Create(_ context.Context, spec sandbox.RuntimeSpec) (sandbox.Environment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.createErr != nil {
		return nil, p.createErr
	}

	p.createCount++
	env := &MockEnvironment{
		provider: p,
		id:       fmt.Sprintf("mock-sandbox-%d", p.createCount),
		spec:     spec,
	}
	p.envs = append(p.envs, env)
	return env, nil
}

// CreateCount 返回成功创建的环境数量。
func (p *MockSandboxProvider) CreateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCount
}

// CloseCount 返回环境被销毁的次数。
func (p *MockSandboxProvider) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

// Environments 返回已创建环境的副本列表。
func (p *MockSandboxProvider) Environments() []*MockEnvironment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockEnvironment(nil), p.envs...)
}

// MockEnvironment 是 sandbox.Environment 的模拟实现。
type MockEnvironment struct {
	provider *MockSandboxProvider

	mu       sync.Mutex
	id       string
	spec     sandbox.RuntimeSpec
	deployed map[string][]byte
	started  bool
	closed   bool
}

// ID 返回环境标识。
func (e *MockEnvironment) ID() string {
	return e.id
}

// Spec 返回创建时传入的运行时规格。
func (e *MockEnvironment) Spec() sandbox.RuntimeSpec {
	return e.spec
}

// Deploy 记录部署的文件。
func (e *MockEnvironment) Deploy(_ context.Context, filename string, content []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return sandbox.ErrClosed
	}
	if err := e.provider.deployError(); err != nil {
		return err
	}

	if e.deployed == nil {
		e.deployed = make(map[string][]byte)
	}
	e.deployed[filename] = append([]byte(nil), content...)
	return nil
}

// StartServer 返回配置的基础 URL。
func (e *MockEnvironment) StartServer(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", sandbox.ErrClosed
	}
	if err := e.provider.startError(); err != nil {
		return "", err
	}

	e.started = true
	return e.provider.baseURL(), nil
}

// Logs 返回配置的日志内容。
func (e *MockEnvironment) Logs(context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, sandbox.ErrClosed
	}
	if err := e.provider.logsError(); err != nil {
		return nil, err
	}
	return e.provider.logLines(), nil
}

// Close 销毁环境，重复调用不计数。
func (e *MockEnvironment) Close(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	e.provider.mu.Lock()
	e.provider.closeCount++
	e.provider.mu.Unlock()
	return nil
}

// Deployed 返回部署到环境中的文件副本。
func (e *MockEnvironment) Deployed(filename string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content, ok := e.deployed[filename]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), content...), true
}

// Closed 返回环境是否已销毁。
func (e *MockEnvironment) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (p *MockSandboxProvider) deployError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deployErr
}

func (p *MockSandboxProvider) startError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startErr
}

func (p *MockSandboxProvider) logsError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logsErr
}

func (p *MockSandboxProvider) baseURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serveURL
}

func (p *MockSandboxProvider) logLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.logs...)
}

var (
	_ sandbox.Provider    = (*MockSandboxProvider)(nil)
	_ sandbox.Environment = (*MockEnvironment)(nil)
)
