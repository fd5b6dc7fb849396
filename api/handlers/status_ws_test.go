package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/pipeline"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 🧪 StatusHandler 测试
// =============================================================================

// statusFeedHarness 状态推送测试环境：真实 HTTP 服务 + 真实 WebSocket 握手
type statusFeedHarness struct {
	hub     *pipeline.Hub
	ensurer *store.OwnerEnsurer
	server  *httptest.Server
}

func newStatusFeedHarness(t *testing.T, subjectKey string) *statusFeedHarness {
	t.Helper()

	st := store.NewMemoryStore()
	hub := pipeline.NewHub(zap.NewNop())
	ensurer := store.NewOwnerEnsurer(st.Owners())
	handler := NewStatusHandler(hub, ensurer, nil, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status/ws", func(w http.ResponseWriter, r *http.Request) {
		// 测试中替代认证中间件注入主体
		if subjectKey != "" {
			r = r.WithContext(types.WithSubject(r.Context(), types.Subject{Key: subjectKey}))
		}
		handler.HandleStatusWS(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)

	return &statusFeedHarness{hub: hub, ensurer: ensurer, server: server}
}

func (h *statusFeedHarness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/v1/status/ws"
}

func (h *statusFeedHarness) ownerID(t *testing.T, subjectKey string) string {
	t.Helper()
	owner, err := h.ensurer.Ensure(context.Background(), types.Subject{Key: subjectKey})
	require.NoError(t, err)
	return owner.ID
}

// waitForSubscribers 等待服务端完成订阅，避免发布早于订阅被丢弃
func (h *statusFeedHarness) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.hub.SubscriberCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusHandler_DeliversOwnerEvents(t *testing.T) {
	h := newStatusFeedHarness(t, "user-1")
	ownerID := h.ownerID(t, "user-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, h.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	h.waitForSubscribers(t, 1)

	h.hub.Publish(pipeline.StatusEvent{
		Entity:  "document",
		ID:      "doc-1",
		OwnerID: ownerID,
		Status:  string(types.DocumentReady),
	})

	var ev pipeline.StatusEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))

	assert.Equal(t, "document", ev.Entity)
	assert.Equal(t, "doc-1", ev.ID)
	assert.Equal(t, string(types.DocumentReady), ev.Status)
	assert.False(t, ev.At.IsZero())
}

func TestStatusHandler_FiltersForeignEvents(t *testing.T) {
	h := newStatusFeedHarness(t, "user-1")
	ownerID := h.ownerID(t, "user-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, h.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	h.waitForSubscribers(t, 1)

	// 他人事件先发布：Hub 按 Owner 路由，不会到达本连接
	h.hub.Publish(pipeline.StatusEvent{Entity: "artifact", ID: "foreign", OwnerID: "someone-else", Status: string(types.ArtifactReady)})
	h.hub.Publish(pipeline.StatusEvent{Entity: "artifact", ID: "mine", OwnerID: ownerID, Status: string(types.ArtifactReady)})

	var ev pipeline.StatusEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "mine", ev.ID)
}

func TestStatusHandler_RejectsUnauthenticated(t *testing.T) {
	h := newStatusFeedHarness(t, "")

	resp, err := http.Get(h.server.URL + "/api/v1/status/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatusHandler_ClosesOnHubShutdown(t *testing.T) {
	h := newStatusFeedHarness(t, "user-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, h.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	h.waitForSubscribers(t, 1)

	h.hub.Close()

	var ev pipeline.StatusEvent
	err = wsjson.Read(ctx, conn, &ev)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
