package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/config"
)

// State Manager 的生命周期阶段，只会单向前进。
type State int

const (
	StateIdle State = iota
	StateServing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServing:
		return "serving"
	default:
		return "closed"
	}
}

// Config 单个监听端口的参数，api 与 metrics 各一份。
type Config struct {
	Name            string        `yaml:"name" json:"name"`
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" json:"max_header_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Name:            "http",
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFromServer 由 server 配置段派生监听参数；IdleTimeout 取读超时的两倍。
func ConfigFromServer(name string, sc config.ServerConfig, port int) Config {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Addr = fmt.Sprintf(":%d", port)
	if sc.ReadTimeout > 0 {
		cfg.ReadTimeout, cfg.IdleTimeout = sc.ReadTimeout, 2*sc.ReadTimeout
	}
	if sc.WriteTimeout > 0 {
		cfg.WriteTimeout = sc.WriteTimeout
	}
	if sc.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = sc.ShutdownTimeout
	}
	return cfg
}

// Manager 包装 http.Server：非阻塞启动、幂等关闭、等待退出信号。
type Manager struct {
	cfg    Config
	srv    *http.Server
	logger *zap.Logger

	mu    sync.RWMutex
	state State
	ln    net.Listener

	serveErr chan error
}

func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg: cfg,
		srv: &http.Server{
			Addr:           cfg.Addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		logger:   logger.With(zap.String("component", "http_server"), zap.String("server", cfg.Name)),
		serveErr: make(chan error, 1),
	}
}

// Start 绑定端口后在后台 goroutine 中提供服务。
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateServing:
		return errors.New("server already started")
	case StateClosed:
		return errors.New("server is closed")
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln, m.state = ln, StateServing
	m.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("HTTP server failed", zap.Error(err))
		select {
		case m.serveErr <- err:
		default:
		}
	}()
	return nil
}

// Shutdown 在 ShutdownTimeout 内排空请求。重复调用直接返回 nil。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return nil
	}
	wasServing := m.state == StateServing
	m.state = StateClosed
	if !wasServing {
		return nil
	}

	m.logger.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// WaitForShutdown 阻塞到 SIGINT/SIGTERM、ctx 结束或服务异常退出之一，然后关闭。
// 只有服务异常退出时返回非 nil。
func (m *Manager) WaitForShutdown(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			m.logger.Info("shutdown requested", zap.Error(ctx.Err()))
		} else {
			m.logger.Info("received shutdown signal")
		}
	case serveErr = <-m.serveErr:
		m.logger.Error("server exited unexpectedly", zap.Error(serveErr))
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
	return serveErr
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Addr 配置的监听地址。
func (m *Manager) Addr() string { return m.cfg.Addr }

// ListenAddr 实际绑定的地址（":0" 时可取到随机端口）；未启动时为空。
func (m *Manager) ListenAddr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}
