package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/config"
)

func randomPortManager(t *testing.T, h http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(h, cfg, zap.NewNop())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestConfigFromServer(t *testing.T) {
	tests := []struct {
		name string
		sc   config.ServerConfig
		port int
		want Config
	}{
		{
			name: "defaults",
			port: 8000,
			want: DefaultConfig(),
		},
		{
			name: "overrides",
			sc: config.ServerConfig{
				ReadTimeout:     10 * time.Second,
				WriteTimeout:    20 * time.Second,
				ShutdownTimeout: 5 * time.Second,
			},
			port: 9091,
			want: Config{
				Name:            "metrics",
				Addr:            ":9091",
				ReadTimeout:     10 * time.Second,
				WriteTimeout:    20 * time.Second,
				IdleTimeout:     20 * time.Second,
				MaxHeaderBytes:  1 << 20,
				ShutdownTimeout: 5 * time.Second,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFromServer(tt.want.Name, tt.sc, tt.port))
		})
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m := randomPortManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, "127.0.0.1:0", m.Addr())
	assert.Empty(t, m.ListenAddr())

	require.NoError(t, m.Start())
	assert.Equal(t, StateServing, m.State())

	resp, err := http.Get("http://" + m.ListenAddr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, "closed", m.State().String())

	err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	m := randomPortManager(t, http.NewServeMux())
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, StateClosed, m.State())
}

func TestManager_StartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.Addr = ln.Addr().String()
	m := NewManager(http.NewServeMux(), cfg, nil)
	err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_WaitForShutdown_ContextCancel(t *testing.T) {
	m := randomPortManager(t, http.NewServeMux())
	require.NoError(t, m.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.WaitForShutdown(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
	assert.Equal(t, StateClosed, m.State())
}
