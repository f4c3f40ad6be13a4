package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/wikichat/config"
)

// StatsRecorder 接收连接池快照，*metrics.Collector 满足此接口。
type StatsRecorder interface {
	RecordDBConnections(database string, open, idle int)
}

// PoolConfig 对应 *sql.DB 的连接池参数。HealthCheckInterval 为 0 时不启动后台探活。
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// PoolConfigFromDatabase 未设置的字段取默认值。SQLite 固定单连接。
func PoolConfigFromDatabase(dc config.DatabaseConfig) PoolConfig {
	cfg := DefaultPoolConfig()
	if dc.Driver == DriverSQLite {
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
	} else {
		cfg.MaxOpenConns = positiveOr(dc.MaxOpenConns, cfg.MaxOpenConns)
		cfg.MaxIdleConns = positiveOr(dc.MaxIdleConns, cfg.MaxIdleConns)
	}
	if dc.ConnMaxLifetime > 0 {
		cfg.ConnMaxLifetime = dc.ConnMaxLifetime
	}
	return cfg
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// PoolManager 持有文档存储使用的 gorm 连接，并周期性探活、上报连接数。
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	name   string
	config PoolConfig
	logger *zap.Logger

	recorder atomic.Pointer[StatsRecorder]
	closed   atomic.Bool
	cancel   context.CancelFunc
	loopDone sync.WaitGroup
	closeErr error
	once     sync.Once
}

func NewPoolManager(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithCancel(context.Background())
	pm := &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		name:   db.Dialector.Name(),
		config: cfg,
		logger: logger.With(zap.String("component", "db_pool")),
		cancel: cancel,
	}
	if cfg.HealthCheckInterval > 0 {
		pm.loopDone.Add(1)
		go pm.probe(ctx)
	}

	pm.logger.Info("database pool initialized",
		zap.String("dialect", pm.name),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))
	return pm, nil
}

// SetStatsRecorder 可在探活循环运行中替换。
func (pm *PoolManager) SetStatsRecorder(r StatsRecorder) {
	pm.recorder.Store(&r)
}

func (pm *PoolManager) DB() *gorm.DB { return pm.db }

func (pm *PoolManager) Ping(ctx context.Context) error {
	if pm.closed.Load() {
		return errors.New("pool is closed")
	}
	return pm.sqlDB.PingContext(ctx)
}

func (pm *PoolManager) Stats() sql.DBStats { return pm.sqlDB.Stats() }

// Close 停止探活并关闭底层连接；可重复调用。
func (pm *PoolManager) Close() error {
	pm.once.Do(func() {
		pm.closed.Store(true)
		pm.cancel()
		pm.loopDone.Wait()
		pm.logger.Info("closing database pool")
		pm.closeErr = pm.sqlDB.Close()
	})
	return pm.closeErr
}

func (pm *PoolManager) probe(ctx context.Context) {
	defer pm.loopDone.Done()
	ticker := time.NewTicker(pm.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.probeOnce(ctx)
		}
	}
}

func (pm *PoolManager) probeOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pm.Ping(ctx); err != nil {
		if ctx.Err() == nil {
			pm.logger.Error("database health check failed", zap.Error(err))
		}
		return
	}
	stats := pm.Stats()
	if r := pm.recorder.Load(); r != nil && *r != nil {
		(*r).RecordDBConnections(pm.name, stats.OpenConnections, stats.Idle)
	}
	pm.logger.Debug("database health check passed",
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle))
}
