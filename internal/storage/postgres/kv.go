package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-funnel/internal/storage"
)

const (
	getSnapshotSQL = `SELECT value FROM kv_snapshots WHERE key = $1`

	putSnapshotSQL = `INSERT INTO kv_snapshots (key, value, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	deleteSnapshotSQL = `DELETE FROM kv_snapshots WHERE key = $1`
)

var _ storage.KV = (*KV)(nil)

// KV implements storage.KV on the kv_snapshots table. Every Put replaces the
// whole value in one statement.
type KV struct {
	pool *pgxpool.Pool
}

// NewKV returns a KV that uses the given pool.
func NewKV(pool *pgxpool.Pool) *KV {
	return &KV{pool: pool}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, getSnapshotSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get snapshot %q", key)
	}
	return value, nil
}

func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, putSnapshotSQL, key, string(value)); err != nil {
		return errors.Wrapf(err, "put snapshot %q", key)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteSnapshotSQL, key); err != nil {
		return errors.Wrapf(err, "delete snapshot %q", key)
	}
	return nil
}
