package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultPurgeInterval is how often Put removes expired rows.
const DefaultPurgeInterval = 10 * time.Minute

// sqlDialect captures the statements that differ between SQL backends.
type sqlDialect struct {
	name   string
	schema []string
	upsert string
	get    string
	purge  string
}

// sqlKV is a KeyValueStore over database/sql. Expiry is stored as Unix
// milliseconds; expired rows are invisible to Get. Put deletes expired rows
// at most once per purgeInterval, and PurgeExpired does so on demand.
type sqlKV struct {
	db            *sql.DB
	dialect       sqlDialect
	now           func() time.Time
	purgeInterval time.Duration

	// lastPurge is the Unix millisecond time of the last purge by Put.
	lastPurge atomic.Int64
}

func newSQLKV(db *sql.DB, d sqlDialect) (*sqlKV, error) {
	s := &sqlKV{db: db, dialect: d, now: time.Now, purgeInterval: DefaultPurgeInterval}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init %s schema: %w", d.name, err)
		}
	}
	return s, nil
}

func (s *sqlKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	var expiresAt sql.NullInt64
	if exp := expiry(s.now(), ttl); exp != nil {
		expiresAt = sql.NullInt64{Int64: exp.UnixMilli(), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value, expiresAt); err != nil {
		return err
	}
	return s.maybePurge(ctx)
}

// maybePurge runs PurgeExpired when purgeInterval has passed since the last
// purge made by Put.
func (s *sqlKV) maybePurge(ctx context.Context) error {
	now := s.now().UnixMilli()
	last := s.lastPurge.Load()
	if last != 0 && now-last < s.purgeInterval.Milliseconds() {
		return nil
	}
	if !s.lastPurge.CompareAndSwap(last, now) {
		return nil
	}
	if _, err := s.PurgeExpired(ctx); err != nil {
		return fmt.Errorf("purge expired %s rows: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if expiresAt.Valid && s.now().UnixMilli() >= expiresAt.Int64 {
		return nil, false, nil
	}
	return value, true, nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *sqlKV) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.purge, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
