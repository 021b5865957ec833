package persistence

import (
	"database/sql"
)

var sqliteDialect = sqlDialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS installation_kv (
			kv_key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS installation_kv_expires_at ON installation_kv (expires_at)`,
	},
	upsert: `
		INSERT INTO installation_kv (kv_key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(kv_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
	get:   `SELECT value, expires_at FROM installation_kv WHERE kv_key = ?`,
	purge: `DELETE FROM installation_kv WHERE expires_at IS NOT NULL AND expires_at <= ?`,
}

// SQLiteKV is a KeyValueStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteKV struct {
	*sqlKV
}

// Ensure SQLiteKV implements KeyValueStore.
var _ KeyValueStore = (*SQLiteKV)(nil)

// NewSQLiteKV initializes the required schema in the given database and
// returns a new SQLiteKV.
func NewSQLiteKV(db *sql.DB) (*SQLiteKV, error) {
	kv, err := newSQLKV(db, sqliteDialect)
	if err != nil {
		return nil, err
	}
	return &SQLiteKV{kv}, nil
}
