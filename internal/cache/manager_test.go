package cache

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/wikichat/config"
)

func newTestManager(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.KeyPrefix = "t:"
	cfg.DefaultTTL = time.Minute
	cfg.HealthCheckInterval = 0

	m, err := NewManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	m, err := NewManager(Config{Addr: addr}, nil)
	assert.Nil(t, m)
	assert.ErrorContains(t, err, addr)
}

func TestManager_GetSet(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Get(ctx, "relevance:q")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, m.Set(ctx, "relevance:q", "true", 0))
	got, err := m.Get(ctx, "relevance:q")
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	// 前缀写入 Redis，ttl 0 落到 DefaultTTL
	assert.True(t, mr.Exists("t:relevance:q"))
	assert.Equal(t, time.Minute, mr.TTL("t:relevance:q"))
}

func TestManager_Expiry(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "summary:x", "cached", 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, err := m.Get(ctx, "summary:x")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_JSON(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	type entry struct {
		Summary string `json:"summary"`
		Docs    int    `json:"docs"`
	}

	t.Run("round trip", func(t *testing.T) {
		in := entry{Summary: "He is a Burmese singer.", Docs: 3}
		require.NoError(t, m.SetJSON(ctx, "summary:a", in, 0))

		var out entry
		require.NoError(t, m.GetJSON(ctx, "summary:a", &out))
		assert.Equal(t, in, out)
	})

	t.Run("miss", func(t *testing.T) {
		var out entry
		assert.True(t, IsCacheMiss(m.GetJSON(ctx, "summary:none", &out)))
	})

	t.Run("corrupt value", func(t *testing.T) {
		require.NoError(t, m.Set(ctx, "summary:bad", "{not json", 0))
		var out entry
		err := m.GetJSON(ctx, "summary:bad", &out)
		require.Error(t, err)
		assert.False(t, IsCacheMiss(err))
	})

	t.Run("unencodable value", func(t *testing.T) {
		assert.Error(t, m.SetJSON(ctx, "summary:chan", make(chan int), 0))
	})
}

func TestManager_Delete(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Set(ctx, "b", "2", 0))

	require.NoError(t, m.Delete(ctx))
	require.NoError(t, m.Delete(ctx, "a", "missing"))
	assert.False(t, mr.Exists("t:a"))
	assert.True(t, mr.Exists("t:b"))
}

func TestManager_DeleteNamespace(t *testing.T) {
	mr, m := newTestManager(t)
	ctx := context.Background()

	// 超过一个 SCAN 批次
	for i := range scanBatch + 25 {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("summary:%d", i), "s", 0))
	}
	require.NoError(t, m.Set(ctx, "relevance:keep", "true", 0))
	mr.Set("other:summary:1", "foreign prefix")

	n, err := m.DeleteNamespace(ctx, "summary")
	require.NoError(t, err)
	assert.Equal(t, scanBatch+25, n)
	assert.True(t, mr.Exists("t:relevance:keep"))
	assert.True(t, mr.Exists("other:summary:1"))

	n, err = m.DeleteNamespace(ctx, "summary")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_Concurrent(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			assert.NoError(t, m.Set(ctx, key, key, 0))
			got, err := m.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, key, got)
		}()
	}
	wg.Wait()
}

func TestManager_Closed(t *testing.T) {
	_, m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(ctx, "k", "v", 0), ErrClosed)
	assert.ErrorIs(t, m.Delete(ctx, "k"), ErrClosed)
	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
	_, err = m.DeleteNamespace(ctx, "summary")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_HealthLoopStopsOnClose(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 10 * time.Millisecond

	m, err := NewManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	mr.Close()
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

// stallingProxy 转发到 upstream，stall 之后吞掉客户端的请求且不回包，
// 模拟 Redis 卡住而 TCP 连接仍在的情况。
type stallingProxy struct {
	ln      net.Listener
	stalled atomic.Bool
	done    chan struct{}
}

func newStallingProxy(t *testing.T, upstream string) *stallingProxy {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &stallingProxy{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() {
		close(p.done)
		_ = ln.Close()
	})

	go func() {
		for {
			client, err := ln.Accept()
			if err != nil {
				return
			}
			server, err := net.Dial("tcp", upstream)
			if err != nil {
				_ = client.Close()
				continue
			}
			go p.forward(client, server)
			go func() {
				_, _ = io.Copy(client, server)
				_ = client.Close()
			}()
		}
	}()
	return p
}

func (p *stallingProxy) forward(client, server net.Conn) {
	defer server.Close()
	buf := make([]byte, 4096)
	for {
		n, err := client.Read(buf)
		if err != nil {
			return
		}
		if p.stalled.Load() {
			<-p.done
			return
		}
		if _, err := server.Write(buf[:n]); err != nil {
			return
		}
	}
}

func (p *stallingProxy) addr() string { return p.ln.Addr().String() }

func TestManager_CloseInterruptsStuckPing(t *testing.T) {
	mr := miniredis.RunT(t)
	proxy := newStallingProxy(t, mr.Addr())

	cfg := DefaultConfig()
	cfg.Addr = proxy.addr()
	cfg.HealthCheckInterval = 10 * time.Millisecond

	m, err := NewManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	proxy.stalled.Store(true)
	// 至少一次探活已经发出并卡在读响应上
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- m.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an in-flight health check")
	}
}

func TestManager_RequestDeadlineBoundsCalls(t *testing.T) {
	mr := miniredis.RunT(t)
	proxy := newStallingProxy(t, mr.Addr())

	cfg := DefaultConfig()
	cfg.Addr = proxy.addr()
	cfg.HealthCheckInterval = 0
	m, err := NewManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	proxy.stalled.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Ping(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "ctx deadline applies to socket reads")
}

func TestHashKey(t *testing.T) {
	k := HashKey("summary", "how old is he", "doc")
	assert.Equal(t, k, HashKey("summary", "how old is he", "doc"))

	ns, sum, ok := strings.Cut(k, ":")
	require.True(t, ok)
	assert.Equal(t, "summary", ns)
	assert.Len(t, sum, 64)

	assert.NotEqual(t, HashKey("s", "ab", "c"), HashKey("s", "a", "bc"))
	assert.NotEqual(t, HashKey("relevance", "q"), HashKey("summary", "q"))
}

func TestConfigFromRedis(t *testing.T) {
	tests := []struct {
		name string
		in   config.RedisConfig
		want func(t *testing.T, c Config)
	}{
		{
			name: "overrides connection",
			in:   config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2, PoolSize: 20},
			want: func(t *testing.T, c Config) {
				assert.Equal(t, "redis:6379", c.Addr)
				assert.Equal(t, "pw", c.Password)
				assert.Equal(t, 2, c.DB)
				assert.Equal(t, 20, c.PoolSize)
				assert.Equal(t, 2, c.MinIdleConns)
			},
		},
		{
			name: "keeps defaults for zero pool",
			in:   config.RedisConfig{Addr: "localhost:6380"},
			want: func(t *testing.T, c Config) {
				assert.Equal(t, 10, c.PoolSize)
				assert.Equal(t, "wikichat:", c.KeyPrefix)
				assert.Equal(t, time.Hour, c.DefaultTTL)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, ConfigFromRedis(tt.in))
		})
	}
}
