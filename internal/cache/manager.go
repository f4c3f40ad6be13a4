package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/config"
)

var (
	// ErrCacheMiss 键不存在或已过期
	ErrCacheMiss = errors.New("cache miss")
	// ErrClosed Close 之后的任何调用
	ErrClosed = errors.New("cache manager is closed")
)

// IsCacheMiss 判断是否为缓存未命中
func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }

const (
	pingTimeout = 5 * time.Second
	scanBatch   = 100
)

// Config 连接与键空间设置
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	// KeyPrefix 加在每个键前，多个服务共用一个 Redis 时区分键空间
	KeyPrefix string
	// DefaultTTL 用于 ttl <= 0 的写入
	DefaultTTL time.Duration
	// HealthCheckInterval 为 0 时不启动后台探活
	HealthCheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		PoolSize:            10,
		MinIdleConns:        2,
		MaxRetries:          3,
		KeyPrefix:           "wikichat:",
		DefaultTTL:          time.Hour,
		HealthCheckInterval: 30 * time.Second,
	}
}

// ConfigFromRedis 以全局 redis 段覆盖默认值；连接池字段为 0 时保留默认
func ConfigFromRedis(rc config.RedisConfig) Config {
	cfg := DefaultConfig()
	cfg.Addr, cfg.Password, cfg.DB = rc.Addr, rc.Password, rc.DB
	if rc.PoolSize > 0 {
		cfg.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		cfg.MinIdleConns = rc.MinIdleConns
	}
	return cfg
}

// Manager 是 Redis 之上的带前缀 KV 缓存。
// 相关性判定与摘要结果都经它缓存，调用方把任何错误当作未命中处理。
type Manager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger

	closed atomic.Bool

	// loopCtx 在 Close 时取消，进行中的探活 PING 随之中断
	loopCtx   context.Context
	stopLoop  context.CancelFunc
	loopDone  sync.WaitGroup
	closeOnce sync.Once
}

// NewManager 连接 Redis 并 PING 一次，不通时返回错误
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,

		ContextTimeoutEnabled: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	m := &Manager{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.DefaultTTL,
		logger: logger.With(zap.String("component", "cache")),
	}
	m.loopCtx, m.stopLoop = context.WithCancel(context.Background())
	if cfg.HealthCheckInterval > 0 {
		m.loopDone.Add(1)
		go m.watch(cfg.HealthCheckInterval)
	}

	m.logger.Info("cache connected", zap.String("addr", cfg.Addr), zap.String("prefix", cfg.KeyPrefix))
	return m, nil
}

func (m *Manager) key(k string) string { return m.prefix + k }

func (m *Manager) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = m.key(k)
	}
	return out
}

// ready 在关闭后返回 ErrClosed
func (m *Manager) ready() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	val, err := m.client.Get(ctx, m.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrCacheMiss
	case err != nil:
		m.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Set 写入字符串值，ttl <= 0 时使用 DefaultTTL
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := m.ready(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	if err := m.client.Set(ctx, m.key(key), value, ttl).Err(); err != nil {
		m.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// GetJSON 读取并反序列化到 dest；值损坏时返回错误而不是 ErrCacheMiss
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return m.Set(ctx, key, string(raw), ttl)
}

// Delete 删除键，键不存在不算错误
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := m.client.Del(ctx, m.keys(keys)...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// DeleteNamespace 用 SCAN 分批删除 "namespace:*"，返回删除的键数。
// 重新抓取词条后用它清掉旧摘要。
func (m *Manager) DeleteNamespace(ctx context.Context, namespace string) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}

	deleted := 0
	iter := m.client.Scan(ctx, 0, m.key(namespace+":*"), scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := m.client.Del(ctx, batch...).Result()
		deleted += int(n)
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("cache delete namespace %s: %w", namespace, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan namespace %s: %w", namespace, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("cache delete namespace %s: %w", namespace, err)
	}
	return deleted, nil
}

// Ping 供 /ready 健康检查使用
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.client.Ping(ctx).Err()
}

// Close 停止探活并关闭连接，可重复调用
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.stopLoop()
		// 先关连接：阻塞中的读不看 ctx 取消，只能靠关闭连接打断
		err = m.client.Close()
		m.loopDone.Wait()
		m.logger.Info("cache closed")
	})
	return err
}

func (m *Manager) watch(interval time.Duration) {
	defer m.loopDone.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-m.loopCtx.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(m.loopCtx, pingTimeout)
		err := m.client.Ping(ctx).Err()
		cancel()
		if m.loopCtx.Err() != nil {
			return
		}

		// 只在状态翻转时记录
		switch {
		case err != nil && healthy:
			m.logger.Error("redis unreachable", zap.Error(err))
		case err == nil && !healthy:
			m.logger.Info("redis reachable again")
		}
		healthy = err == nil
	}
}

// HashKey 生成 "namespace:<sha256 hex>"，各部分以 0x00 分隔
func HashKey(namespace string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
