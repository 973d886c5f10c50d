// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package keystore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// PostgresStore implements Store against a single `keyshares(key, value)`
// table, one row per blob key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection with Ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to create postgres connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to ping postgres", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Get implements Store using a context.Background() connection per call;
// the blocking Store interface doesn't carry a context, matching C8's
// synchronous contract (spec.md §4.8).
func (s *PostgresStore) Get(key string) ([]byte, error) {
	ctx := context.Background()
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM keyshares WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to query keyshare", err)
	}
	return value, nil
}

func (s *PostgresStore) Put(key string, value []byte) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO keyshares (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to upsert keyshare", err)
	}
	return nil
}

func (s *PostgresStore) Delete(key string) error {
	ctx := context.Background()
	tag, err := s.pool.Exec(ctx, `DELETE FROM keyshares WHERE key = $1`, key)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to delete keyshare", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListKeys() ([]string, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `SELECT key FROM keyshares ORDER BY key`)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to list keyshares", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to scan keyshare key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Clear deletes every row in the keyshares table.
func (s *PostgresStore) Clear() error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `DELETE FROM keyshares`)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.StorageUnavailable, "failed to clear keyshares table", err)
	}
	return nil
}

// Available pings the connection pool.
func (s *PostgresStore) Available() bool {
	ctx := context.Background()
	return s.pool.Ping(ctx) == nil
}
