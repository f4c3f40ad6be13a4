package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// 每种方言一份目录，文件名形如 000001_create_documents.up.sql。
//
//go:embed migrations
var migrationsFS embed.FS

// DatabaseType 对应 migrations/ 下的方言目录名。
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultLockTimeout     = 15 * time.Second
)

// drivers 把 *sql.DB 包装成 golang-migrate 的数据库驱动。
var drivers = map[DatabaseType]func(db *sql.DB, table string) (database.Driver, error){
	DatabaseTypePostgres: func(db *sql.DB, table string) (database.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	},
	DatabaseTypeMySQL: func(db *sql.DB, table string) (database.Driver, error) {
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: table})
	},
	DatabaseTypeSQLite: func(db *sql.DB, table string) (database.Driver, error) {
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: table})
	},
}

type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

type Config struct {
	DatabaseType DatabaseType
	// TableName 默认 schema_migrations。
	TableName   string
	LockTimeout time.Duration
}

// Migrator 管理 documents 表的 schema 版本。
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	// Steps n > 0 前进，n < 0 回滚。
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	// Force 只改版本记录，不执行 SQL。
	Force(ctx context.Context, version int) error
	// Version 尚未应用任何迁移时返回 0。
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// DefaultMigrator 基于 golang-migrate 与内嵌 SQL 文件。
// Close 会一并关闭传入的 *sql.DB。
type DefaultMigrator struct {
	dbType  DatabaseType
	table   string
	migrate *migrate.Migrate
	catalog []migrationFile
}

func NewMigrator(db *sql.DB, cfg *Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	newDriver, ok := drivers[cfg.DatabaseType]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
	table := cfg.TableName
	if table == "" {
		table = defaultMigrationsTable
	}

	catalog, err := availableMigrations(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	dbDriver, err := newDriver(db, table)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, GetMigrationsPath(cfg.DatabaseType))
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, string(cfg.DatabaseType), dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	mg.LockTimeout = cfg.LockTimeout
	if mg.LockTimeout == 0 {
		mg.LockTimeout = defaultLockTimeout
	}
	return &DefaultMigrator{dbType: cfg.DatabaseType, table: table, migrate: mg, catalog: catalog}, nil
}

// run 把 ErrNoChange 视为成功。
func run(op string, err error) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("migration %s failed: %w", op, err)
}

func (m *DefaultMigrator) Up(context.Context) error {
	return run("up", m.migrate.Up())
}

func (m *DefaultMigrator) Down(context.Context) error {
	return run("down", m.migrate.Steps(-1))
}

func (m *DefaultMigrator) DownAll(context.Context) error {
	return run("down all", m.migrate.Down())
}

func (m *DefaultMigrator) Steps(_ context.Context, n int) error {
	return run("steps", m.migrate.Steps(n))
}

func (m *DefaultMigrator) Goto(_ context.Context, version uint) error {
	return run("goto", m.migrate.Migrate(version))
}

func (m *DefaultMigrator) Force(_ context.Context, version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	return nil
}

func (m *DefaultMigrator) Version(context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, len(m.catalog))
	for i, f := range m.catalog {
		out[i] = MigrationStatus{
			Version: f.version,
			Name:    f.name,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		}
	}
	return out, nil
}

func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	info := &MigrationInfo{TotalMigrations: len(statuses)}
	info.CurrentVersion, info.Dirty, err = m.Version(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info, nil
}

func (m *DefaultMigrator) Close() error {
	if m.migrate == nil {
		return nil
	}
	if err := errors.Join(m.migrate.Close()); err != nil {
		return fmt.Errorf("failed to close migrator: %w", err)
	}
	return nil
}

type migrationFile struct {
	version uint
	name    string
}

// availableMigrations 按版本升序列出某方言的内嵌迁移。
func availableMigrations(dbType DatabaseType) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationsFS, GetMigrationsPath(dbType))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []migrationFile
	for _, e := range entries {
		base, ok := strings.CutSuffix(e.Name(), ".up.sql")
		if e.IsDir() || !ok {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(num, 10, 32)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: uint(v), name: name})
	}

	slices.SortFunc(files, func(a, b migrationFile) int {
		return int(a.version) - int(b.version)
	})
	return slices.CompactFunc(files, func(a, b migrationFile) bool {
		return a.version == b.version
	}), nil
}

// ParseDatabaseType 接受 database.driver 的常见别名。
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	}
	return "", fmt.Errorf("unsupported database type: %s", s)
}

func GetMigrationsPath(dbType DatabaseType) string {
	return path.Join("migrations", string(dbType))
}
