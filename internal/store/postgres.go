package store

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"autoshutdown/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the settings table. Applied by EnsureSchema at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS shutdown_settings (
    server     TEXT        NOT NULL,
    key        TEXT        NOT NULL,
    value      TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (server, key)
)`

// PostgresStore keeps settings in the shutdown_settings table, one row per
// (server, key).
type PostgresStore struct {
	db     DBTX
	server string
}

// NewPostgresStore creates a PostgresStore scoped to server.
func NewPostgresStore(db DBTX, server string) *PostgresStore {
	return &PostgresStore{db: db, server: server}
}

// EnsureSchema creates the settings table if needed.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return types.NewAppError(types.ErrCodeInternalPersistenceWrite, "failed to create settings table", err)
	}
	return nil
}

// Load returns every setting stored for this server.
func (s *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value FROM shutdown_settings WHERE server = $1`,
		s.server,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPersistenceRead, "failed to query settings", err)
	}
	defer rows.Close()

	settings := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalPersistenceRead, "failed to scan setting", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalPersistenceRead, "failed to iterate settings", err)
	}
	return settings, nil
}

// Save upserts settings in a single statement.
func (s *PostgresStore) Save(ctx context.Context, settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = settings[k]
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO shutdown_settings (server, key, value, updated_at)
		SELECT $1, k, v, NOW() FROM unnest($2::text[], $3::text[]) AS t(k, v)
		ON CONFLICT (server, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`,
		s.server, keys, values,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalPersistenceWrite, "failed to write settings", err)
	}
	return nil
}
