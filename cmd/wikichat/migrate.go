package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/internal/database"
	"github.com/BaSui01/wikichat/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// migrateCommand 一个 migrate 子命令；positional 为 flag 之前的位置参数
type migrateCommand struct {
	usage      string
	positional int
	run        func(ctx context.Context, cli *migration.CLI, args []string, all bool) error
}

var migrateCommands = map[string]migrateCommand{
	"up": {usage: "up", run: func(ctx context.Context, cli *migration.CLI, _ []string, _ bool) error {
		return cli.RunUp(ctx)
	}},
	"down": {usage: "down [--all]", run: func(ctx context.Context, cli *migration.CLI, _ []string, all bool) error {
		if all {
			return cli.RunDownAll(ctx)
		}
		return cli.RunDown(ctx)
	}},
	"steps": {usage: "steps <n>", positional: 1, run: func(ctx context.Context, cli *migration.CLI, args []string, _ bool) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count: %s", args[0])
		}
		return cli.RunSteps(ctx, n)
	}},
	"status": {usage: "status", run: func(ctx context.Context, cli *migration.CLI, _ []string, _ bool) error {
		return cli.RunStatus(ctx)
	}},
	"version": {usage: "version", run: func(ctx context.Context, cli *migration.CLI, _ []string, _ bool) error {
		return cli.RunVersion(ctx)
	}},
	"info": {usage: "info", run: func(ctx context.Context, cli *migration.CLI, _ []string, _ bool) error {
		return cli.RunInfo(ctx)
	}},
	"goto": {usage: "goto <version>", positional: 1, run: func(ctx context.Context, cli *migration.CLI, args []string, _ bool) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		return cli.RunGoto(ctx, uint(v))
	}},
	"force": {usage: "force <version>", positional: 1, run: func(ctx context.Context, cli *migration.CLI, args []string, _ bool) error {
		v, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		return cli.RunForce(ctx, int(v))
	}},
	"reset": {usage: "reset", run: func(ctx context.Context, cli *migration.CLI, _ []string, _ bool) error {
		return cli.RunReset(ctx)
	}},
}

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		printMigrateUsage()
		return
	}

	cmd, ok := migrateCommands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", name)
		printMigrateUsage()
		os.Exit(1)
	}

	if err := executeMigrate(context.Background(), name, cmd, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", name, err)
		os.Exit(1)
	}
}

func executeMigrate(ctx context.Context, name string, cmd migrateCommand, args []string) error {
	if len(args) < cmd.positional {
		return fmt.Errorf("usage: wikichat migrate %s", cmd.usage)
	}
	positional, flagArgs := args[:cmd.positional], args[cmd.positional:]

	fs := flag.NewFlagSet("migrate "+name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	all := fs.Bool("all", false, "Rollback all migrations (down only)")
	if err := fs.Parse(flagArgs); err != nil {
		return err
	}

	migrator, err := openMigrator(*configPath, *dbType)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return cmd.run(ctx, migration.NewCLI(migrator), positional, *all)
}

// openMigrator 按配置打开数据库并创建迁移器，dbType 非空时覆盖 database.driver
func openMigrator(configPath, dbType string) (*migration.DefaultMigrator, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}

	db, err := database.Open(cfg.Database, zap.NewNop())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	m, err := migration.NewMigratorFromDatabaseConfig(cfg.Database, sqlDB)
	if err != nil {
		return nil, errors.Join(err, sqlDB.Close())
	}
	return m, nil
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  wikichat migrate <subcommand> [args] [options]

Subcommands:
  up              Apply all pending migrations
  down            Rollback the last migration (--all rolls back every migration)
  steps <n>       Apply (n>0) or rollback (n<0) n migrations
  status          Show migration status
  version         Show current migration version
  info            Show detailed migration information
  goto <v>        Migrate to a specific version
  force <v>       Force set migration version (use with caution)
  reset           Rollback all migrations and re-apply them
  help            Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)

Examples:
  wikichat migrate up
  wikichat migrate up --config /etc/wikichat/config.yaml
  wikichat migrate down --all
  wikichat migrate goto 1
  wikichat migrate force 0 --db-type sqlite`)
}
