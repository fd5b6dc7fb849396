package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 📦 记录读缓存
// =============================================================================

// RecordCache 为状态存储提供只读旁路缓存。
//
// 只缓存终态记录：终态记录不可变，缓存永远不会读到过期内容。
// 流转中的记录（processing/generating/executing）始终直读存储。
// nil *RecordCache 为空实现，未启用 Redis 时所有方法直接透传。
type RecordCache struct {
	manager *Manager
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRecordCache 创建记录缓存。ttl 为 0 时使用 Manager 的默认 TTL。
func NewRecordCache(manager *Manager, ttl time.Duration, logger *zap.Logger) *RecordCache {
	return &RecordCache{
		manager: manager,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "record_cache")),
	}
}

func documentKey(id string) string { return "demoforge:document:" + id }
func artifactKey(id string) string { return "demoforge:artifact:" + id }

// GetDocument 返回缓存的文档记录，未命中返回 (nil, false)。
func (c *RecordCache) GetDocument(ctx context.Context, id string) (*types.Document, bool) {
	if c == nil {
		return nil, false
	}

	var doc types.Document
	if err := c.manager.GetJSON(ctx, documentKey(id), &doc); err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("document cache read failed", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	return &doc, true
}

// PutDocument 缓存文档记录；非终态记录直接跳过。
func (c *RecordCache) PutDocument(ctx context.Context, doc *types.Document) {
	if c == nil || doc == nil || !doc.Status.IsTerminal() {
		return
	}

	if err := c.manager.SetJSON(ctx, documentKey(doc.ID), doc, c.ttl); err != nil {
		c.logger.Warn("document cache write failed", zap.String("id", doc.ID), zap.Error(err))
	}
}

// GetArtifact 返回缓存的产物记录，未命中返回 (nil, false)。
func (c *RecordCache) GetArtifact(ctx context.Context, id string) (*types.Artifact, bool) {
	if c == nil {
		return nil, false
	}

	var artifact types.Artifact
	if err := c.manager.GetJSON(ctx, artifactKey(id), &artifact); err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("artifact cache read failed", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	return &artifact, true
}

// PutArtifact 缓存产物记录；非终态记录直接跳过。
func (c *RecordCache) PutArtifact(ctx context.Context, artifact *types.Artifact) {
	if c == nil || artifact == nil || !artifact.Status.IsTerminal() {
		return
	}

	if err := c.manager.SetJSON(ctx, artifactKey(artifact.ID), artifact, c.ttl); err != nil {
		c.logger.Warn("artifact cache write failed", zap.String("id", artifact.ID), zap.Error(err))
	}
}

// Invalidate 按 ID 清除文档与产物缓存（管理操作用）。
func (c *RecordCache) Invalidate(ctx context.Context, documentIDs, artifactIDs []string) {
	if c == nil {
		return
	}

	keys := make([]string, 0, len(documentIDs)+len(artifactIDs))
	for _, id := range documentIDs {
		keys = append(keys, documentKey(id))
	}
	for _, id := range artifactIDs {
		keys = append(keys, artifactKey(id))
	}

	if err := c.manager.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}
