// FailingBlobStore 的对象存储失败注入包装。
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/BaSui01/demoforge/blob"
)

// FailingBlobStore 包装真实的 blob.Store，按配置注入失败。
//
// 未注入失败的操作透传给底层存储，
// 便于在真实内存存储之上只破坏单个阶段。
type FailingBlobStore struct {
	inner blob.Store

	mu      sync.Mutex
	putErr  error
	openErr error
	noURL   bool

	putCount int
}

// NewFailingBlobStore 创建包装指定存储的 FailingBlobStore。
func NewFailingBlobStore(inner blob.Store) *FailingBlobStore {
	return &FailingBlobStore{inner: inner}
}

// WithPutError 设置 Put 操作失败。
func (s *FailingBlobStore) WithPutError(err error) *FailingBlobStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
	return s
}

// WithOpenError 设置 Open 操作失败。
func (s *FailingBlobStore) WithOpenError(err error) *FailingBlobStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
	return s
}

// WithoutURL 使 URL 对任何对象都返回不存在。
func (s *FailingBlobStore) WithoutURL() *FailingBlobStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noURL = true
	return s
}

// Put 写入对象或返回注入的错误。
func (s *FailingBlobStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	s.mu.Lock()
	err := s.putErr
	s.putCount++
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return s.inner.Put(ctx, r, contentType)
}

// Open 打开对象或返回注入的错误。
func (s *FailingBlobStore) Open(ctx context.Context, id string) (io.ReadCloser, blob.Info, error) {
	s.mu.Lock()
	err := s.openErr
	s.mu.Unlock()

	if err != nil {
		return nil, blob.Info{}, err
	}
	return s.inner.Open(ctx, id)
}

// Stat 返回对象元信息。
func (s *FailingBlobStore) Stat(ctx context.Context, id string) (blob.Info, error) {
	return s.inner.Stat(ctx, id)
}

// URL 返回对象地址，注入 WithoutURL 后恒为不存在。
func (s *FailingBlobStore) URL(id string) (string, bool) {
	s.mu.Lock()
	noURL := s.noURL
	s.mu.Unlock()

	if noURL {
		return "", false
	}
	return s.inner.URL(id)
}

// PutCount 返回 Put 被调用的次数。
func (s *FailingBlobStore) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCount
}

var _ blob.Store = (*FailingBlobStore)(nil)
