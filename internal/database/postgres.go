// Package database opens the relational stores behind the ledger.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RetryConfig controls how long startup waits for the database.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

var DefaultRetry = RetryConfig{Attempts: 10, Delay: 2 * time.Second}

// OpenPostgres connects to PostgreSQL, retrying while the server comes up.
func OpenPostgres(databaseURL string, pool PoolConfig, retry RetryConfig, logger *zap.Logger) (*sql.DB, error) {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}

	var lastErr error
	for i := 0; i < retry.Attempts; i++ {
		db, err := openAndPing(databaseURL)
		if err == nil {
			db.SetMaxOpenConns(pool.MaxOpenConns)
			db.SetMaxIdleConns(pool.MaxIdleConns)
			db.SetConnMaxLifetime(pool.ConnMaxLifetime)
			logger.Info("connected to PostgreSQL")
			return db, nil
		}
		lastErr = err
		if i < retry.Attempts-1 {
			logger.Warn("failed to connect to PostgreSQL, retrying",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", retry.Attempts),
				zap.Duration("retry_in", retry.Delay),
				zap.Error(err),
			)
			time.Sleep(retry.Delay)
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", retry.Attempts, lastErr)
}

func openAndPing(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded migrations. It opens its own connection so
// closing the migrator never touches the service's pool.
func Migrate(databaseURL string, logger *zap.Logger) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
