// E2E 测试环境与通用辅助函数。
//
// 在进程内装配完整服务栈（内存存储 + mock 模型 + mock 沙箱），
// 通过 HTTP 驱动上传 → 提取 → 生成 → 执行的完整流水线。
//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/demoforge/api"
	"github.com/BaSui01/demoforge/api/handlers"
	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/pipeline"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/testutil"
	"github.com/BaSui01/demoforge/testutil/fixtures"
	"github.com/BaSui01/demoforge/testutil/mocks"
	"github.com/BaSui01/demoforge/types"
)

// --- 测试环境 ---

// subjectHeader 指定请求身份；生产路径由 JWT 中间件注入。
const subjectHeader = "X-Test-Subject"

// defaultSubject 未显式指定身份时使用的调用方。
const defaultSubject = "e2e|tester"

// TestEnv E2E 测试环境
type TestEnv struct {
	Store     store.Store
	Blobs     blob.Store
	Analyzer  *mocks.MockAnalyzer
	Provider  *mocks.MockProvider
	Sandboxes *mocks.MockSandboxProvider
	Hub       *pipeline.Hub

	Dispatcher *pipeline.Dispatcher
	Server     *httptest.Server
	Logger     *zap.Logger
}

// --- 环境设置 ---

// NewTestEnv 装配进程内服务栈并启动测试 HTTP 服务器。
// 分析与生成模型、沙箱均为 mock；存储为内存实现。
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)

	stateStore := store.NewMemoryStore()
	// 相对地址：取回 URL 直接拼在测试服务器后面即可访问
	blobs := blob.NewMemoryStore("")

	analyzer := mocks.NewMockAnalyzer().WithResponse(fixtures.StructuredAnalysisJSON())
	provider := mocks.NewMockProvider().WithResponse(fixtures.DemoHTML())

	// 模拟沙箱内的静态服务
	demoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, fixtures.DemoHTML())
	}))
	t.Cleanup(demoSrv.Close)
	sandboxes := mocks.NewMockSandboxProvider().WithServeURL(demoSrv.URL)

	hub := pipeline.NewHub(logger)
	t.Cleanup(hub.Close)

	ingestor := pipeline.NewIngestor(stateStore.Documents(), blobs, analyzer, hub, nil, logger)
	executor := pipeline.NewExecutor(stateStore.Artifacts(), blobs, sandboxes, config.SandboxConfig{
		Image:         "demoforge-sandbox:latest",
		ContainerPort: 8080,
		ProbeInterval: 10 * time.Millisecond,
		ProbeBackoff:  1.5,
		ProbeDeadline: 2 * time.Second,
	}, hub, nil, logger)

	dispatcher := pipeline.NewDispatcher(config.PipelineConfig{
		Workers:           2,
		QueueSize:         32,
		ExtractionTimeout: 10 * time.Second,
		ExecutionTimeout:  10 * time.Second,
		DrainTimeout:      2 * time.Second,
	}, ingestor, executor, nil, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})

	generator := pipeline.NewGenerator(
		stateStore.Documents(), stateStore.Artifacts(), provider, dispatcher,
		config.ModelEndpointConfig{
			Provider:    "mock",
			Model:       "gpt-4o",
			MaxTokens:   8192,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
		}, 0.6, hub, nil, logger,
	)

	ensurer := store.NewOwnerEnsurer(stateStore.Owners())

	documentsHandler := handlers.NewDocumentsHandler(stateStore.Documents(), blobs, ensurer, dispatcher, 32<<20, logger)
	artifactsHandler := handlers.NewArtifactsHandler(stateStore.Artifacts(), stateStore.Documents(), blobs, ensurer, generator, logger)
	blobsHandler := handlers.NewBlobsHandler(blobs, logger)
	statusHandler := handlers.NewStatusHandler(hub, ensurer, nil, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", documentsHandler.HandleUpload)
	mux.HandleFunc("GET /api/v1/documents", documentsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/documents/{id}", documentsHandler.HandleGet)
	mux.HandleFunc("POST /api/v1/artifacts", artifactsHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/artifacts", artifactsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/artifacts/{id}", artifactsHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/blobs/{id}", blobsHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/status/ws", statusHandler.HandleStatusWS)

	server := httptest.NewServer(injectSubject(mux))
	t.Cleanup(server.Close)

	return &TestEnv{
		Store:      stateStore,
		Blobs:      blobs,
		Analyzer:   analyzer,
		Provider:   provider,
		Sandboxes:  sandboxes,
		Hub:        hub,
		Dispatcher: dispatcher,
		Server:     server,
		Logger:     logger,
	}
}

// injectSubject 把请求头中的测试身份放入上下文。
func injectSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(subjectHeader)
		if key == "" {
			key = defaultSubject
		}
		ctx := types.WithSubject(r.Context(), types.Subject{Key: key})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- HTTP 辅助 ---

// envelope 统一响应包裹结构
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (e *TestEnv) request(t *testing.T, method, path string, body io.Reader, contentType, subject string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.Server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if subject != "" {
		req.Header.Set(subjectHeader, subject)
	}
	resp, err := e.Server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// UploadDocument 以 multipart 形式上传文档，断言 202 并返回受理记录。
func (e *TestEnv) UploadDocument(t *testing.T, subject, filename string, content []byte) api.DocumentResponse {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := e.request(t, http.MethodPost, "/api/v1/documents", &buf, mw.FormDataContentType(), subject)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	env := decodeEnvelope[api.DocumentResponse](t, resp)
	require.True(t, env.Success)
	require.NotEmpty(t, env.Data.ID)
	return env.Data
}

// GetDocument 获取文档详情；返回响应体与状态码。
func (e *TestEnv) GetDocument(t *testing.T, subject, id string) (api.DocumentResponse, int) {
	t.Helper()
	resp := e.request(t, http.MethodGet, "/api/v1/documents/"+id, nil, "", subject)
	code := resp.StatusCode
	env := decodeEnvelope[api.DocumentResponse](t, resp)
	return env.Data, code
}

// CreateArtifact 发起演示生成；断言 202 并返回受理记录。
func (e *TestEnv) CreateArtifact(t *testing.T, subject, documentID, concept string) api.ArtifactResponse {
	t.Helper()
	payload, err := json.Marshal(api.CreateArtifactRequest{DocumentID: documentID, Concept: concept})
	require.NoError(t, err)

	resp := e.request(t, http.MethodPost, "/api/v1/artifacts", bytes.NewReader(payload), "application/json", subject)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	env := decodeEnvelope[api.ArtifactResponse](t, resp)
	require.True(t, env.Success)
	require.NotEmpty(t, env.Data.ID)
	return env.Data
}

// GetArtifact 获取工件详情；返回响应体与状态码。
func (e *TestEnv) GetArtifact(t *testing.T, subject, id string) (api.ArtifactResponse, int) {
	t.Helper()
	resp := e.request(t, http.MethodGet, "/api/v1/artifacts/"+id, nil, "", subject)
	code := resp.StatusCode
	env := decodeEnvelope[api.ArtifactResponse](t, resp)
	return env.Data, code
}

// WaitDocumentStatus 轮询直到文档达到目标状态。
func (e *TestEnv) WaitDocumentStatus(t *testing.T, subject, id, status string) api.DocumentResponse {
	t.Helper()
	var last api.DocumentResponse
	WaitForCondition(t, func() bool {
		doc, code := e.GetDocument(t, subject, id)
		if code != http.StatusOK {
			return false
		}
		last = doc
		return doc.Status == status
	}, 10*time.Second, "document "+id+" did not reach status "+status)
	return last
}

// WaitArtifactStatus 轮询直到工件达到目标状态。
func (e *TestEnv) WaitArtifactStatus(t *testing.T, subject, id, status string) api.ArtifactResponse {
	t.Helper()
	var last api.ArtifactResponse
	WaitForCondition(t, func() bool {
		artifact, code := e.GetArtifact(t, subject, id)
		if code != http.StatusOK {
			return false
		}
		last = artifact
		return artifact.Status == status
	}, 10*time.Second, "artifact "+id+" did not reach status "+status)
	return last
}

// --- 环境检查 ---

// SkipIfNoDocker 如果没有 Docker 则跳过测试
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("DOCKER_HOST") == "" && !fileExists("/var/run/docker.sock") {
		t.Skip("Skipping test: Docker not available")
	}
}

// SkipIfShort 如果是短测试模式则跳过
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping long-running test in short mode")
	}
}

// --- 测试辅助 ---

// WaitForCondition 等待条件满足
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	if !testutil.WaitFor(condition, timeout) {
		t.Fatalf("Condition not met within %v: %s", timeout, msg)
	}
}

// --- 文件辅助 ---

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
