package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore 将对象保存在进程内存中，用于测试与单机开发。
type MemoryStore struct {
	baseURL string
	mu      sync.RWMutex
	data    map[string][]byte
	index   map[string]Info
}

// NewMemoryStore 创建内存对象存储。
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		data:    make(map[string][]byte),
		index:   make(map[string]Info),
	}
}

func (s *MemoryStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	size, err := io.Copy(buf, r)
	if err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}

	dataBytes := buf.Bytes()
	hash := sha256.Sum256(dataBytes)
	id := hex.EncodeToString(hash[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		return id, nil
	}

	stored := make([]byte, len(dataBytes))
	copy(stored, dataBytes)
	s.data[id] = stored
	s.index[id] = Info{
		ID:          id,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (s *MemoryStore) Open(ctx context.Context, id string) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.index[id]
	if !ok {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return io.NopCloser(bytes.NewReader(s.data[id])), info, nil
}

func (s *MemoryStore) Stat(ctx context.Context, id string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.index[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return info, nil
}

func (s *MemoryStore) URL(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return "", false
	}
	return s.baseURL + "/api/v1/blobs/" + id, true
}

var _ Store = (*MemoryStore)(nil)
