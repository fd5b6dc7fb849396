package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/internal/channel"
)

// Entity kinds carried by status events.
const (
	EntityDocument = "document"
	EntityArtifact = "artifact"
)

// StatusEvent is one observable status change on a Document or Artifact.
// Error carries the failure message on terminal failure transitions; the
// Document record itself stores no message, so the event stream and the logs
// are the only places it surfaces.
type StatusEvent struct {
	Entity     string    `json:"entity"`
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Hub fans status events out to per-owner subscribers. Publishing never
// blocks: a subscriber whose buffer is full loses the event. The record in
// the store stays authoritative, the feed is best-effort.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	logger  *zap.Logger
	dropped atomic.Int64
	closed  atomic.Bool
}

// NewHub creates an event hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a subscriber for one owner's events. The caller must
// Close the subscription when done.
func (h *Hub) Subscribe(ownerID string) *Subscription {
	sub := &Subscription{
		owner: ownerID,
		hub:   h,
		ch: channel.NewTunableChannel[StatusEvent](channel.TunableConfig{
			InitialSize:  16,
			MinSize:      16,
			MaxSize:      256,
			GrowFactor:   2.0,
			ShrinkFactor: 0.5,
			SampleWindow: 10 * time.Second,
		}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*Subscription]struct{})
	}
	h.subs[ownerID][sub] = struct{}{}
	return sub
}

// Publish delivers an event to every subscriber of its owner. Slow
// subscribers drop the event rather than stalling the publishing stage.
func (h *Hub) Publish(ev StatusEvent) {
	if h.closed.Load() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.OwnerID] {
		if !sub.ch.TrySend(ev) {
			h.dropped.Add(1)
			h.logger.Debug("status event dropped for slow subscriber",
				zap.String("owner_id", ev.OwnerID),
				zap.String("entity", ev.Entity),
				zap.String("id", ev.ID),
			)
		}
	}
}

// Dropped returns the total number of events lost to slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close tears down the hub and every active subscription.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for owner, set := range h.subs {
		for sub := range set {
			sub.closeOnce.Do(sub.ch.Close)
		}
		delete(h.subs, owner)
	}
}

// Subscription is one subscriber's view of an owner's event stream.
type Subscription struct {
	owner     string
	hub       *Hub
	ch        *channel.TunableChannel[StatusEvent]
	closeOnce sync.Once
}

// Events exposes the subscription's receive channel. The channel is closed
// when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan StatusEvent {
	return s.ch.Chan()
}

// Close unregisters the subscription and releases its buffer. Safe to call
// more than once and safe against a concurrent Hub.Close.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	if set := s.hub.subs[s.owner]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(s.hub.subs, s.owner)
		}
	}
	s.hub.mu.Unlock()
	s.closeOnce.Do(s.ch.Close)
}
