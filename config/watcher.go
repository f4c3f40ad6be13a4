// 配置文件变更监听器实现。
//
// 轮询配置文件修改时间，防抖后重新加载并通知订阅者。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 监听器类型定义 ---

// ReloadFunc 在配置成功重载后被调用
type ReloadFunc func(old, updated *Config)

// Watcher watches the configuration file and reloads it on change.
type Watcher struct {
	mu sync.RWMutex

	loader        *Loader
	path          string
	pollInterval  time.Duration
	debounceDelay time.Duration

	current  *Config
	hooks    []ReloadFunc
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}

	lastModTime time.Time
	logger      *zap.Logger
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the file is checked
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithDebounceDelay sets the debounce delay for file events
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// --- 监听器实现 ---

// NewWatcher creates a watcher for the loader's config file.
// current 是当前生效的配置，作为第一次回调的 old 参数。
func NewWatcher(loader *Loader, current *Config, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || loader.ConfigPath() == "" {
		return nil, fmt.Errorf("watcher requires a loader with a config path")
	}

	w := &Watcher{
		loader:        loader,
		path:          loader.ConfigPath(),
		pollInterval:  time.Second,
		debounceDelay: 100 * time.Millisecond,
		current:       current,
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if _, err := os.Stat(w.path); err != nil {
		if os.IsNotExist(err) {
			w.logger.Warn("Config file does not exist, will watch for creation",
				zap.String("path", w.path))
		} else {
			return nil, fmt.Errorf("failed to stat path %s: %w", w.path, err)
		}
	}

	return w, nil
}

// OnReload registers a callback for successful reloads
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, fn)
}

// Current returns the most recently loaded config
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching for file changes
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	if info, err := os.Stat(w.path); err == nil {
		w.lastModTime = info.ModTime()
	}
	w.mu.Unlock()

	go w.loop(ctx)

	w.logger.Info("Config watcher started",
		zap.String("path", w.path),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce_delay", w.debounceDelay))

	return nil
}

// Stop stops the watcher and waits for the loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	close(w.stopChan)
	w.running = false
	done := w.doneChan
	w.mu.Unlock()

	<-done
	w.logger.Info("Config watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is running
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// loop 在单个 goroutine 中完成轮询与防抖，避免定时器回调并发访问状态
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if w.changed() {
				debounce = time.After(w.debounceDelay)
			}
		case <-debounce:
			debounce = nil
			w.reload()
		}
	}
}

// changed reports whether the file modification time moved forward
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	if info.ModTime().After(w.lastModTime) {
		w.lastModTime = info.ModTime()
		return true
	}
	return false
}

// reload 重新加载配置；失败时保留旧配置
func (w *Watcher) reload() {
	updated, err := w.loader.Load()
	if err == nil {
		err = updated.Validate()
	}
	if err != nil {
		w.logger.Warn("Config reload rejected, keeping previous config",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = updated
	hooks := make([]ReloadFunc, len(w.hooks))
	copy(hooks, w.hooks)
	w.mu.Unlock()

	w.logger.Info("Config reloaded", zap.String("path", w.path))
	for _, fn := range hooks {
		fn(old, updated)
	}
}
