package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/config"
)

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{Pool: pool, log: log}, nil
}

// SQL exposes the pool through database/sql for goose.
func (db *DB) SQL() *sql.DB {
	return stdlib.OpenDBFromPool(db.Pool)
}

func (db *DB) Close() {
	db.Pool.Close()
}

// PGStore is the Postgres Store.
type PGStore struct {
	db *DB
}

func NewPGStore(db *DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateMatch(ctx context.Context, m Match) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO matches (id, scenario, seed, started_at) VALUES ($1, $2, $3, $4)`,
		m.ID, m.Scenario, int64(m.Seed), m.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *PGStore) LatestMatch(ctx context.Context) (Match, error) {
	var (
		m    Match
		seed int64
	)
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, scenario, seed, started_at FROM matches ORDER BY started_at DESC LIMIT 1`,
	).Scan(&m.ID, &m.Scenario, &seed, &m.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Match{}, ErrNotFound
	}
	if err != nil {
		return Match{}, fmt.Errorf("latest match: %w", err)
	}
	m.Seed = uint64(seed)
	return m, nil
}

func (s *PGStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO snapshots (match_id, step, hash, cosmos, mode)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (match_id, step) DO UPDATE
		 SET hash = EXCLUDED.hash, cosmos = EXCLUDED.cosmos, mode = EXCLUDED.mode, created_at = now()`,
		snap.MatchID, int64(snap.Step), int64(snap.Hash), snap.Cosmos, snap.Mode,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PGStore) LatestSnapshot(ctx context.Context, match uuid.UUID) (Snapshot, error) {
	var (
		snap       Snapshot
		step, hash int64
	)
	err := s.db.Pool.QueryRow(ctx,
		`SELECT match_id, step, hash, cosmos, mode, created_at
		 FROM snapshots WHERE match_id = $1 ORDER BY step DESC LIMIT 1`, match,
	).Scan(&snap.MatchID, &step, &hash, &snap.Cosmos, &snap.Mode, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.Step, snap.Hash = uint32(step), uint32(hash)
	return snap, nil
}

// AppendChecksums writes the batch in a single transaction.
func (s *PGStore) AppendChecksums(ctx context.Context, match uuid.UUID, sums []Checksum) error {
	if len(sums) == 0 {
		return nil
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("checksums begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range sums {
		batch.Queue(
			`INSERT INTO checksums (match_id, step, hash) VALUES ($1, $2, $3)
			 ON CONFLICT (match_id, step) DO UPDATE SET hash = EXCLUDED.hash`,
			match, int64(c.Step), int64(c.Hash),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("checksums insert: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Checksums(ctx context.Context, match uuid.UUID, from, to uint32) ([]Checksum, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT step, hash FROM checksums
		 WHERE match_id = $1 AND step >= $2 AND step < $3 ORDER BY step`,
		match, int64(from), int64(to),
	)
	if err != nil {
		return nil, fmt.Errorf("checksums: %w", err)
	}
	defer rows.Close()

	var out []Checksum
	for rows.Next() {
		var step, hash int64
		if err := rows.Scan(&step, &hash); err != nil {
			return nil, err
		}
		out = append(out, Checksum{Step: uint32(step), Hash: uint32(hash)})
	}
	return out, rows.Err()
}

func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}
