package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore 使用本地文件系统实现 Store。
//
// 目录布局: <base>/<id>/data 存放内容，<base>/index.json 存放元信息索引。
// ID 为内容的 sha256 十六进制摘要，天然满足追加写入语义。
type FileStore struct {
	basePath string
	baseURL  string
	mu       sync.RWMutex
	index    map[string]Info
}

// NewFileStore 创建基于文件系统的对象存储。
// baseURL 用于拼接对外取回地址，末尾斜杠会被裁剪。
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	store := &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		index:    make(map[string]Info),
	}

	if err := store.loadIndex(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *FileStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// 读取全部数据以计算内容哈希
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

	// 内容寻址：已存在即幂等返回，绝不覆盖
	if _, ok := s.index[id]; ok {
		return id, nil
	}

	blobDir := filepath.Join(s.basePath, id)
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create blob dir: %w", err)
	}

	dataPath := filepath.Join(blobDir, "data")
	if err := os.WriteFile(dataPath, dataBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	s.index[id] = Info{
		ID:          id,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.saveIndex(); err != nil {
		return "", err
	}

	return id, nil
}

func (s *FileStore) Open(ctx context.Context, id string) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	s.mu.RLock()
	info, ok := s.index[id]
	s.mu.RUnlock()

	if !ok {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	file, err := os.Open(filepath.Join(s.basePath, id, "data"))
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to open data: %w", err)
	}

	return file, info, nil
}

func (s *FileStore) Stat(ctx context.Context, id string) (Info, error) {
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

func (s *FileStore) URL(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return "", false
	}
	return s.baseURL + "/api/v1/blobs/" + id, true
}

func (s *FileStore) loadIndex() error {
	indexPath := filepath.Join(s.basePath, "index.json")
	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	return json.Unmarshal(data, &s.index)
}

func (s *FileStore) saveIndex() error {
	indexPath := filepath.Join(s.basePath, "index.json")
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return os.WriteFile(indexPath, data, 0644)
}

var _ Store = (*FileStore)(nil)
