// Package blob 提供追加写入的二进制对象存储。
//
// 对象按内容哈希寻址：相同内容重复写入返回相同 ID，
// 已存在的对象永远不会被覆盖或修改。
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound 对象不存在。
var ErrNotFound = errors.New("blob: not found")

// Info 描述一个已存储对象。
type Info struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store 是追加写入的对象存储接口。
//
// Put 返回内容哈希 ID；相同内容的重复写入幂等返回同一 ID。
// URL 返回对象的外部可取回地址；对象不存在时第二个返回值为 false。
type Store interface {
	// Put 写入对象并返回内容寻址 ID
	Put(ctx context.Context, r io.Reader, contentType string) (string, error)

	// Open 打开对象内容读取器
	Open(ctx context.Context, id string) (io.ReadCloser, Info, error)

	// Stat 返回对象元信息
	Stat(ctx context.Context, id string) (Info, error)

	// URL 返回对象的外部可取回地址
	URL(id string) (string, bool)
}
