// @title WikiChat API
// @version 1.0.0
// @description WikiChat answers questions about a single Wikipedia article.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/config"
)

// 构建时通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type command struct {
	name    string
	summary string
	run     func(args []string)
}

var commands []command

func init() {
	commands = []command{
		{"serve", "Start the WikiChat server (default)", runServe},
		{"ingest", "Scrape the configured article into the vector store", runIngest},
		{"migrate", "Database migration commands", runMigrate},
		{"version", "Show version information", func([]string) { printVersion() }},
		{"health", "Check server health", runHealthCheck},
		{"help", "Show this help message", func([]string) { printUsage() }},
	}
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		args[0] = "help"
	}
	// 无子命令或首个参数是 flag 时按 serve 处理
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		runServe(args)
		return
	}

	name := args[0]
	for _, c := range commands {
		if c.name == name {
			c.run(args[1:])
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	printUsage()
	os.Exit(1)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, loader, err := loadConfig(*configPath, config.RequireLLMCredentials)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, level := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting WikiChat",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("topic", cfg.Wiki.Topic),
		zap.String("vector_store", cfg.VectorStore.Type))

	server := NewServer(cfg, loader, level, logger)
	if err := server.Start(); err != nil {
		server.Shutdown()
		logger.Fatal("Failed to start server", zap.Error(err))
	}
	if err := server.WaitForShutdown(context.Background()); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("WikiChat stopped")
}

func printVersion() {
	fmt.Printf("WikiChat %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
}

const usageFooter = `
Options for 'serve', 'ingest' and 'health':
  --config <path>   Path to configuration file (YAML)

Options for 'ingest':
  --force           Delete the stored article and ingest it again

Run 'wikichat migrate help' for migration subcommands.

Examples:
  wikichat serve --config /etc/wikichat/config.yaml
  wikichat ingest --force
  wikichat migrate up
  wikichat health --addr http://localhost:8000`

func printUsage() {
	var b strings.Builder
	b.WriteString("WikiChat - single-topic Wikipedia question answering\n\n")
	b.WriteString("Usage:\n  wikichat <command> [options]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	b.WriteString(usageFooter)
	fmt.Println(b.String())
}
