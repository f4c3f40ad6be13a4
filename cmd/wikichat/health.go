package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/wikichat/config"
)

const healthProbeTimeout = 5 * time.Second

// runHealthCheck 请求运行中服务的 /health，非 200 时以 1 退出
func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "", "Server address (default http://localhost:<http_port>)")
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	target := *addr
	if target == "" {
		target = localAddr(*configPath)
	}
	if err := checkHealth(&http.Client{Timeout: healthProbeTimeout}, target); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

// localAddr 配置加载失败时回退到默认端口
func localAddr(configPath string) string {
	port := config.DefaultServerConfig().HTTPPort
	if cfg, _, err := loadConfig(configPath); err == nil {
		port = cfg.Server.HTTPPort
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

func checkHealth(client *http.Client, addr string) error {
	resp, err := client.Get(strings.TrimSuffix(addr, "/") + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /health: status %d", resp.StatusCode)
	}
	return nil
}
