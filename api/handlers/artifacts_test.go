package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/api"
	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/testutil/fixtures"
	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

// generateCall 记录一次生成调用
type generateCall struct {
	OwnerID    string
	DocumentID string
	Concept    string
}

// stubGenerator 可编程的生成器替身
type stubGenerator struct {
	mu       sync.Mutex
	calls    []generateCall
	artifact *types.Artifact
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, ownerID, documentID, concept string) (*types.Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{OwnerID: ownerID, DocumentID: documentID, Concept: concept})
	if g.err != nil {
		return nil, g.err
	}
	return g.artifact, nil
}

func (g *stubGenerator) Calls() []generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generateCall(nil), g.calls...)
}

// artifactsHarness 工件处理器测试环境
type artifactsHarness struct {
	handler   *ArtifactsHandler
	store     *store.MemoryStore
	blobs     blob.Store
	generator *stubGenerator
	ensurer   *store.OwnerEnsurer
}

func newArtifactsHarness(t *testing.T) *artifactsHarness {
	t.Helper()

	st := store.NewMemoryStore()
	blobs := blob.NewMemoryStore("http://demoforge.local")
	generator := &stubGenerator{}
	ensurer := store.NewOwnerEnsurer(st.Owners())

	return &artifactsHarness{
		handler:   NewArtifactsHandler(st.Artifacts(), st.Documents(), blobs, ensurer, generator, zap.NewNop()),
		store:     st,
		blobs:     blobs,
		generator: generator,
		ensurer:   ensurer,
	}
}

func (h *artifactsHarness) ownerFor(t *testing.T, subjectKey string) *types.Owner {
	t.Helper()
	owner, err := h.ensurer.Ensure(context.Background(), types.Subject{Key: subjectKey})
	require.NoError(t, err)
	return owner
}

// seedReadyArtifact 植入执行完成的工件，渲染输出真实写入 blob 存储
func (h *artifactsHarness) seedReadyArtifact(t *testing.T, ownerID, documentID string) *types.Artifact {
	t.Helper()

	blobID, err := h.blobs.Put(context.Background(), strings.NewReader(fixtures.DemoHTML()), "text/html")
	require.NoError(t, err)

	artifact := fixtures.ReadyArtifact(ownerID, documentID)
	artifact.OutputBlobID = blobID
	require.NoError(t, h.store.Artifacts().Insert(context.Background(), artifact))
	return artifact
}

func createArtifactRequest(body, subjectKey string) *http.Request {
	r := authedRequest(http.MethodPost, "/api/v1/artifacts", strings.NewReader(body), subjectKey)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// =============================================================================
// 🧪 生成测试
// =============================================================================

func TestArtifactsHandler_Create(t *testing.T) {
	h := newArtifactsHarness(t)
	owner := h.ownerFor(t, "user-1")
	artifact := fixtures.ExecutingArtifact(owner.ID, "doc-1")
	h.generator.artifact = artifact

	r := createArtifactRequest(`{"documentId":" doc-1 ","concept":" self-attention "}`, "user-1")
	w := httptest.NewRecorder()

	h.handler.HandleCreate(w, r)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decodeData[api.ArtifactResponse](t, w)

	assert.Equal(t, artifact.ID, resp.ID)
	assert.Equal(t, string(types.ArtifactExecuting), resp.Status)
	assert.Equal(t, fixtures.DemoHTML(), resp.GeneratedCode)
	assert.Empty(t, resp.DemoURL, "executing artifact has no demo URL yet")

	// 入参解析后再传给生成器：owner 解析 + 字段去空白
	calls := h.generator.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, owner.ID, calls[0].OwnerID)
	assert.Equal(t, "doc-1", calls[0].DocumentID)
	assert.Equal(t, "self-attention", calls[0].Concept)
}

func TestArtifactsHandler_Create_FailedRecordStillAccepted(t *testing.T) {
	h := newArtifactsHarness(t)
	owner := h.ownerFor(t, "user-1")
	h.generator.artifact = fixtures.FailedArtifact(owner.ID, "doc-1")

	r := createArtifactRequest(`{"documentId":"doc-1","concept":"positional encoding"}`, "user-1")
	w := httptest.NewRecorder()

	h.handler.HandleCreate(w, r)

	// 生成失败的记录也是受理结果：202 + failed 状态
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeData[api.ArtifactResponse](t, w)
	assert.Equal(t, string(types.ArtifactFailed), resp.Status)
	require.NotNil(t, resp.Results)
	assert.NotEmpty(t, resp.Results.Errors)
}

func TestArtifactsHandler_Create_SyncRejections(t *testing.T) {
	tests := []struct {
		name       string
		err        *types.Error
		wantStatus int
	}{
		{
			name:       "document not found",
			err:        types.NewError(types.ErrNotFound, "document not found"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "foreign document",
			err:        types.NewError(types.ErrUnauthorized, "document belongs to a different owner"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "document not ready",
			err:        types.NewError(types.ErrInvalidRequest, "document is not ready"),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newArtifactsHarness(t)
			h.generator.err = tt.err

			r := createArtifactRequest(`{"documentId":"doc-1","concept":"attention"}`, "user-1")
			w := httptest.NewRecorder()

			h.handler.HandleCreate(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, string(tt.err.Code), decodeError(t, w).Code)
		})
	}
}

func TestArtifactsHandler_Create_RejectsUnknownFields(t *testing.T) {
	h := newArtifactsHarness(t)

	r := createArtifactRequest(`{"documentId":"doc-1","concept":"attention","model":"gpt-4"}`, "user-1")
	w := httptest.NewRecorder()

	h.handler.HandleCreate(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.generator.Calls())
}

func TestArtifactsHandler_Create_RequiresJSONContentType(t *testing.T) {
	h := newArtifactsHarness(t)

	r := authedRequest(http.MethodPost, "/api/v1/artifacts", strings.NewReader(`{"documentId":"d","concept":"c"}`), "user-1")
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	h.handler.HandleCreate(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.generator.Calls())
}

// =============================================================================
// 🧪 点查询测试
// =============================================================================

func TestArtifactsHandler_Get(t *testing.T) {
	h := newArtifactsHarness(t)
	owner := h.ownerFor(t, "user-1")
	artifact := h.seedReadyArtifact(t, owner.ID, "doc-1")

	r := authedRequest(http.MethodGet, "/api/v1/artifacts/"+artifact.ID, nil, "user-1")
	r.SetPathValue("id", artifact.ID)
	w := httptest.NewRecorder()

	h.handler.HandleGet(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeData[api.ArtifactResponse](t, w)

	assert.Equal(t, artifact.ID, resp.ID)
	assert.Equal(t, string(types.ArtifactReady), resp.Status)
	assert.Equal(t, fixtures.DemoHTML(), resp.GeneratedCode)
	require.NotNil(t, resp.Results)
	assert.Equal(t, fixtures.DemoHTML(), resp.Results.OutputHTML)
	require.NotNil(t, resp.Results.Render)
	assert.Equal(t, "Attention Demo", resp.Results.Render.Title)
	assert.Contains(t, resp.DemoURL, artifact.OutputBlobID)
}

func TestArtifactsHandler_Get_NotFound(t *testing.T) {
	h := newArtifactsHarness(t)

	r := authedRequest(http.MethodGet, "/api/v1/artifacts/missing", nil, "user-1")
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.handler.HandleGet(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArtifactsHandler_Get_ForeignOwner(t *testing.T) {
	h := newArtifactsHarness(t)
	alice := h.ownerFor(t, "alice")
	artifact := h.seedReadyArtifact(t, alice.ID, "doc-1")

	r := authedRequest(http.MethodGet, "/api/v1/artifacts/"+artifact.ID, nil, "mallory")
	r.SetPathValue("id", artifact.ID)
	w := httptest.NewRecorder()

	h.handler.HandleGet(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(types.ErrUnauthorized), decodeError(t, w).Code)
}

// =============================================================================
// 🧪 列表测试
// =============================================================================

func TestArtifactsHandler_List(t *testing.T) {
	h := newArtifactsHarness(t)
	alice := h.ownerFor(t, "alice")
	bob := h.ownerFor(t, "bob")

	first := h.seedReadyArtifact(t, alice.ID, "doc-1")
	second := h.seedReadyArtifact(t, alice.ID, "doc-2")
	h.seedReadyArtifact(t, bob.ID, "doc-3")

	r := authedRequest(http.MethodGet, "/api/v1/artifacts", nil, "alice")
	w := httptest.NewRecorder()

	h.handler.HandleList(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeData[api.ArtifactListResponse](t, w)

	require.Len(t, resp.Artifacts, 2)
	ids := []string{resp.Artifacts[0].ID, resp.Artifacts[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	// 列表响应省略大字段，摘要保留
	for _, item := range resp.Artifacts {
		assert.Empty(t, item.GeneratedCode)
		require.NotNil(t, item.Results)
		assert.Empty(t, item.Results.OutputHTML)
		assert.NotNil(t, item.Results.Render)
	}
}

func TestArtifactsHandler_List_ByDocument(t *testing.T) {
	h := newArtifactsHarness(t)
	alice := h.ownerFor(t, "alice")

	doc := fixtures.ReadyDocument(alice.ID)
	require.NoError(t, h.store.Documents().Insert(context.Background(), doc))

	wanted := h.seedReadyArtifact(t, alice.ID, doc.ID)
	h.seedReadyArtifact(t, alice.ID, "other-doc")

	r := authedRequest(http.MethodGet, "/api/v1/artifacts?documentId="+doc.ID, nil, "alice")
	w := httptest.NewRecorder()

	h.handler.HandleList(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeData[api.ArtifactListResponse](t, w)

	require.Len(t, resp.Artifacts, 1)
	assert.Equal(t, wanted.ID, resp.Artifacts[0].ID)
	assert.Equal(t, doc.ID, resp.Artifacts[0].DocumentID)
}

func TestArtifactsHandler_List_ByForeignDocument(t *testing.T) {
	h := newArtifactsHarness(t)
	alice := h.ownerFor(t, "alice")

	doc := fixtures.ReadyDocument(alice.ID)
	require.NoError(t, h.store.Documents().Insert(context.Background(), doc))
	h.seedReadyArtifact(t, alice.ID, doc.ID)

	r := authedRequest(http.MethodGet, "/api/v1/artifacts?documentId="+doc.ID, nil, "mallory")
	w := httptest.NewRecorder()

	h.handler.HandleList(w, r)

	// 过滤键本身做归属校验，防止跨 Owner 枚举
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestArtifactsHandler_List_ByMissingDocument(t *testing.T) {
	h := newArtifactsHarness(t)

	r := authedRequest(http.MethodGet, "/api/v1/artifacts?documentId=missing", nil, "alice")
	w := httptest.NewRecorder()

	h.handler.HandleList(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
