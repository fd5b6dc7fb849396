package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/pipeline"
	"github.com/BaSui01/demoforge/store"
)

// =============================================================================
// 📡 状态推送 Handler（WebSocket）
// =============================================================================

// statusWriteTimeout 单条事件的写超时
const statusWriteTimeout = 5 * time.Second

// statusPingInterval 保活 ping 周期
const statusPingInterval = 30 * time.Second

// StatusHandler 状态事件推送处理器。
// 每个连接订阅 Hub 中当前 Owner 的事件流；推送是尽力而为的，
// 慢消费者会丢事件，存储中的记录才是权威状态。
type StatusHandler struct {
	hub            *pipeline.Hub
	ensurer        *store.OwnerEnsurer
	originPatterns []string
	logger         *zap.Logger
}

// NewStatusHandler 创建状态推送处理器
func NewStatusHandler(hub *pipeline.Hub, ensurer *store.OwnerEnsurer, originPatterns []string, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		hub:            hub,
		ensurer:        ensurer,
		originPatterns: originPatterns,
		logger:         logger,
	}
}

// HandleStatusWS 处理状态推送连接
// @Summary 状态事件流
// @Description 升级为 WebSocket，推送当前 Owner 的 Document/Artifact 状态事件
// @Tags 状态
// @Success 101 {string} string "协议切换"
// @Failure 401 {object} Response "未认证"
// @Security BearerAuth
// @Router /api/v1/status/ws [get]
func (h *StatusHandler) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	owner, ok := resolveOwner(w, r, h.ensurer, h.logger)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写出握手失败响应
		h.logger.Warn("websocket accept failed",
			zap.String("owner_id", owner.ID),
			zap.Error(err),
		)
		return
	}
	defer conn.CloseNow()

	sub := h.hub.Subscribe(owner.ID)
	defer sub.Close()

	// 客户端只收不发；CloseRead 负责消化控制帧并在对端关闭时取消 ctx
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("status feed opened", zap.String("owner_id", owner.ID))
	defer h.logger.Debug("status feed closed", zap.String("owner_id", owner.ID))

	ping := time.NewTicker(statusPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case <-ping.C:
			if err := h.ping(ctx, conn); err != nil {
				return
			}

		case ev, open := <-sub.Events():
			if !open {
				conn.Close(websocket.StatusGoingAway, "feed shutting down")
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				h.logger.Debug("status feed write failed",
					zap.String("owner_id", owner.ID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (h *StatusHandler) write(ctx context.Context, conn *websocket.Conn, ev pipeline.StatusEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}

func (h *StatusHandler) ping(ctx context.Context, conn *websocket.Conn) error {
	pingCtx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
	defer cancel()
	return conn.Ping(pingCtx)
}
