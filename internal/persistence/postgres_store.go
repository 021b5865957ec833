package persistence

import (
	"database/sql"
)

var postgresDialect = sqlDialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS installation_kv (
			kv_key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			expires_at BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS installation_kv_expires_at ON installation_kv (expires_at)`,
	},
	upsert: `
		INSERT INTO installation_kv (kv_key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (kv_key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
	get:   `SELECT value, expires_at FROM installation_kv WHERE kv_key = $1`,
	purge: `DELETE FROM installation_kv WHERE expires_at IS NOT NULL AND expires_at <= $1`,
}

// PostgresKV is a KeyValueStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
//	db, err := sql.Open("pgx", dsn)
type PostgresKV struct {
	*sqlKV
}

// Ensure PostgresKV implements KeyValueStore.
var _ KeyValueStore = (*PostgresKV)(nil)

// NewPostgresKV initializes the required schema in the given database and
// returns a new PostgresKV.
func NewPostgresKV(db *sql.DB) (*PostgresKV, error) {
	kv, err := newSQLKV(db, postgresDialect)
	if err != nil {
		return nil, err
	}
	return &PostgresKV{kv}, nil
}
