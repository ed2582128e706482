package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/realtime-notify/internal/domain"
)

type pgSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPgSnapshotStore returns a SnapshotStore backed by PostgreSQL.
// Snapshots are upserted into queue_snapshots, one row per persistence key.
func NewPgSnapshotStore(pool *pgxpool.Pool) SnapshotStore {
	return &pgSnapshotStore{pool: pool}
}

func (s *pgSnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM queue_snapshots WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	return data, nil
}

func (s *pgSnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_snapshots (key, data, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = $2, saved_at = $3`,
		key, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

var _ SnapshotStore = (*pgSnapshotStore)(nil)
