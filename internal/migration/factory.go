package migration

import (
	"database/sql"
	"fmt"

	"github.com/BaSui01/wikichat/config"
)

// NewMigratorFromDatabaseConfig creates a migrator for database.driver on top of db.
// db 通常来自 gorm 连接的 DB()；迁移器关闭时会关闭它。
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig, db *sql.DB) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	return NewMigrator(db, &Config{
		DatabaseType: dbType,
		TableName:    defaultMigrationsTable,
	})
}
