package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_GetPut(t *testing.T) {
	p := NewPool(
		func() *bytes.Buffer { return &bytes.Buffer{} },
		func(b **bytes.Buffer) { (*b).Reset() },
	)

	buf := p.Get()
	require.NotNil(t, buf)
	buf.WriteString("demo content")

	p.Put(buf)
	assert.Equal(t, 0, buf.Len(), "reset func should run on Put")

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Gets)
	assert.Equal(t, int64(1), stats.Puts)
	assert.Equal(t, int64(1), stats.News)
	assert.Equal(t, int64(1), stats.Resets)
}

func TestPool_NilReset(t *testing.T) {
	p := NewPool(func() int { return 42 }, nil)

	v := p.Get()
	assert.Equal(t, 42, v)
	p.Put(v)

	assert.Equal(t, int64(0), p.Stats().Resets)
}

func TestPoolStats_HitRate(t *testing.T) {
	tests := []struct {
		name  string
		stats PoolStats
		want  float64
	}{
		{"no gets", PoolStats{}, 0},
		{"all misses", PoolStats{Gets: 4, News: 4}, 0},
		{"half hits", PoolStats{Gets: 4, News: 2}, 0.5},
		{"all hits", PoolStats{Gets: 4, News: 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.stats.HitRate(), 0.001)
		})
	}
}

func TestByteBufferPool(t *testing.T) {
	buf := ByteBufferPool.Get()
	require.NotNil(t, buf)
	assert.Equal(t, 0, buf.Len())

	buf.WriteString("<html></html>")
	ByteBufferPool.Put(buf)
	assert.Equal(t, 0, buf.Len())
}

func TestCopyBufferPool(t *testing.T) {
	buf := CopyBufferPool.Get()
	require.Len(t, buf, 32*1024)
	CopyBufferPool.Put(buf)
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool(
		func() *bytes.Buffer { return &bytes.Buffer{} },
		func(b **bytes.Buffer) { (*b).Reset() },
	)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				buf := p.Get()
				buf.WriteString("x")
				p.Put(buf)
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, int64(1000), stats.Gets)
	assert.Equal(t, int64(1000), stats.Puts)
}
