package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultCredentialTable = "credential_store"

// PostgresConfig captures configuration for the Postgres-backed credential backend.
type PostgresConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresBackend persists auth state in a PostgreSQL table so credentials
// roam across machines. It ranks below the local backends in the vault;
// network failures degrade to local persistence instead of failing logins.
type PostgresBackend struct {
	db    *sql.DB
	table string
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewPostgresBackend connects to PostgreSQL and ensures the credential table exists.
func NewPostgresBackend(ctx context.Context, cfg PostgresConfig) (*PostgresBackend, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = defaultCredentialTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("postgres store: invalid table name %q", table)
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema != "" && !identifierPattern.MatchString(schema) {
		return nil, fmt.Errorf("postgres store: invalid schema name %q", schema)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}

	b := &PostgresBackend{db: db, table: table}
	if schema != "" {
		if _, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schema)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres store: create schema: %w", err)
		}
		b.table = fmt.Sprintf("%q.%q", schema, table)
	} else {
		b.table = fmt.Sprintf("%q", table)
	}

	if _, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, b.table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: create credential table: %w", err)
	}
	return b, nil
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Get(ctx context.Context, key string) (string, error) {
	var value string
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, b.table)
	err := b.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres store: get %s: %w", key, err)
	}
	return value, nil
}

func (b *PostgresBackend) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, b.table)
	if _, err := b.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres store: set %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, b.table)
	if _, err := b.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("postgres store: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database connection.
func (b *PostgresBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
