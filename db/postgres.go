// Package db provides PostgreSQL connection management for the sync engine,
// built on GORM. The engine, content registry, and operation log all open
// their tables through this package rather than managing *sql.DB pooling
// themselves.
//
// Connection Management:
//
//	Implements proper PostgreSQL connection pooling with configurable parameters:
//	- Maximum idle connections for resource efficiency
//	- Maximum open connections for load management
//	- Connection lifetime management for stability
//	- Automatic reconnection and error handling
//
// Migration Safety:
//
//	GORM AutoMigrate is designed to be safe for production use:
//	- Only adds new columns, never removes existing ones
//	- Preserves existing data during schema changes
//	- Creates tables and indexes if they don't exist
//	- Does not modify existing column types incompatibly
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig controls the connection pool GORM opens against the
// underlying *sql.DB.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns production-sane pool settings.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
	}
}

// Connect opens a PostgreSQL connection with GORM and configures the
// underlying connection pool. The returned *gorm.DB is the handle the
// caller passes to engine.SetEngine (see spec.md §5, "user code supplies it
// via set_engine").
//
// Parameters:
//   - pgUrl: PostgreSQL connection string (format: "host=localhost user=username dbname=mydb sslmode=disable")
func Connect(pgUrl string, pool PoolConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(pgUrl), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return gdb, nil
}

// Migrate runs AutoMigrate for the given models against an already-open
// connection. Callers pass the sync engine's tracked models (content
// types, operations, versions, nodes, and any user-registered tables)
// so a single call brings the schema up to date.
func Migrate(gdb *gorm.DB, models ...interface{}) error {
	if len(models) == 0 {
		return nil
	}
	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("db: automigrate: %w", err)
	}
	return nil
}

// TableNames discovers existing tables in the public schema, for
// administrative inspection and diagnostics.
func TableNames(gdb *gorm.DB) ([]string, error) {
	var tables []string
	if err := gdb.Table("information_schema.tables").
		Where("table_schema = ?", "public").
		Pluck("table_name", &tables).Error; err != nil {
		return nil, fmt.Errorf("db: list tables: %w", err)
	}
	return tables, nil
}
