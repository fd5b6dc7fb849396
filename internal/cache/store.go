package cache

import (
	"context"

	"github.com/BaSui01/demoforge/internal/metrics"
	"github.com/BaSui01/demoforge/store"
	"github.com/BaSui01/demoforge/types"
)

// =============================================================================
// 📦 带读缓存的状态存储装饰器
// =============================================================================

// CachedStore 在任意 store.Store 之上套一层记录读缓存。
//
// 只有点查询走缓存：状态轮询以 Get 为主，且终态记录命中后不再回源。
// 列表查询、写入和 Owner 操作全部透传底层存储。
type CachedStore struct {
	inner     store.Store
	documents *cachedDocuments
	artifacts *cachedArtifacts
}

// WrapStore 用记录缓存包装存储。records 为 nil 时原样返回 inner，
// 调用方无需区分缓存是否启用。collector 可为 nil。
func WrapStore(inner store.Store, records *RecordCache, collector *metrics.Collector) store.Store {
	if records == nil {
		return inner
	}
	return &CachedStore{
		inner: inner,
		documents: &cachedDocuments{
			inner:     inner.Documents(),
			records:   records,
			collector: collector,
		},
		artifacts: &cachedArtifacts{
			inner:     inner.Artifacts(),
			records:   records,
			collector: collector,
		},
	}
}

func (s *CachedStore) Owners() store.OwnerStore       { return s.inner.Owners() }
func (s *CachedStore) Documents() store.DocumentStore { return s.documents }
func (s *CachedStore) Artifacts() store.ArtifactStore { return s.artifacts }

// HealthCheck 只探测底层存储；缓存故障已在读路径降级，不影响就绪状态。
func (s *CachedStore) HealthCheck(ctx context.Context) error {
	return s.inner.HealthCheck(ctx)
}

// cachedDocuments 文档存储的旁路缓存实现。
type cachedDocuments struct {
	inner     store.DocumentStore
	records   *RecordCache
	collector *metrics.Collector
}

func (d *cachedDocuments) Insert(ctx context.Context, doc *types.Document) error {
	return d.inner.Insert(ctx, doc)
}

func (d *cachedDocuments) Get(ctx context.Context, id string) (*types.Document, error) {
	if doc, ok := d.records.GetDocument(ctx, id); ok {
		d.hit("document")
		return doc, nil
	}
	doc, err := d.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.miss("document")
	// 回填由 PutDocument 负责过滤：非终态记录不会进缓存
	d.records.PutDocument(ctx, doc)
	return doc, nil
}

func (d *cachedDocuments) Patch(ctx context.Context, id string, patch types.DocumentPatch) error {
	return d.inner.Patch(ctx, id, patch)
}

func (d *cachedDocuments) ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error) {
	return d.inner.ListByOwner(ctx, ownerID)
}

func (d *cachedDocuments) hit(kind string) {
	if d.collector != nil {
		d.collector.RecordCacheHit(kind)
	}
}

func (d *cachedDocuments) miss(kind string) {
	if d.collector != nil {
		d.collector.RecordCacheMiss(kind)
	}
}

// cachedArtifacts 产物存储的旁路缓存实现。
type cachedArtifacts struct {
	inner     store.ArtifactStore
	records   *RecordCache
	collector *metrics.Collector
}

func (a *cachedArtifacts) Insert(ctx context.Context, artifact *types.Artifact) error {
	return a.inner.Insert(ctx, artifact)
}

func (a *cachedArtifacts) Get(ctx context.Context, id string) (*types.Artifact, error) {
	if artifact, ok := a.records.GetArtifact(ctx, id); ok {
		a.hit("artifact")
		return artifact, nil
	}
	artifact, err := a.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.miss("artifact")
	a.records.PutArtifact(ctx, artifact)
	return artifact, nil
}

func (a *cachedArtifacts) Patch(ctx context.Context, id string, patch types.ArtifactPatch) error {
	return a.inner.Patch(ctx, id, patch)
}

func (a *cachedArtifacts) ListByDocument(ctx context.Context, documentID string) ([]types.Artifact, error) {
	return a.inner.ListByDocument(ctx, documentID)
}

func (a *cachedArtifacts) ListByOwner(ctx context.Context, ownerID string) ([]types.Artifact, error) {
	return a.inner.ListByOwner(ctx, ownerID)
}

func (a *cachedArtifacts) hit(kind string) {
	if a.collector != nil {
		a.collector.RecordCacheHit(kind)
	}
}

func (a *cachedArtifacts) miss(kind string) {
	if a.collector != nil {
		a.collector.RecordCacheMiss(kind)
	}
}
