package storage

import (
	"context"
	"fmt"
)

// Config contains connection settings for the remote databases. The
// SQLite archive is configured separately by file path.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns a config with sensible local defaults.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "recon",
			Username: "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "recon_state",
			Username: "postgres",
			Password: "postgres",
		},
	}
}

// DB bundles the remote database connections.
type DB struct {
	CH *ClickHouseDB
	PG *PostgresDB
}

// Open connects to both remote databases.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	pg, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &DB{CH: ch, PG: pg}, nil
}

// Close closes all connections.
func (d *DB) Close() error {
	var errs []error
	if err := d.CH.Close(); err != nil {
		errs = append(errs, fmt.Errorf("clickhouse: %w", err))
	}
	d.PG.Close()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// CreateSchemas creates all tables in both databases.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if err := d.CH.CreateSchema(ctx); err != nil {
		return err
	}
	return d.PG.CreateSchema(ctx)
}
