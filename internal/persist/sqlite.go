package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore is the single-file Store used for local runs and tests.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite creates or opens a database file, creating parent directories
// and applying migrations.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the game loop is the only client.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := RunMigrations(ctx, db, DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) CreateMatch(ctx context.Context, m Match) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, scenario, seed, started_at) VALUES (?, ?, ?, ?)`,
		m.ID.String(), m.Scenario, int64(m.Seed), m.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestMatch(ctx context.Context) (Match, error) {
	var (
		id       string
		m        Match
		seed, at int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, seed, started_at FROM matches ORDER BY started_at DESC LIMIT 1`,
	).Scan(&id, &m.Scenario, &seed, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Match{}, ErrNotFound
	}
	if err != nil {
		return Match{}, fmt.Errorf("latest match: %w", err)
	}
	if m.ID, err = uuid.Parse(id); err != nil {
		return Match{}, fmt.Errorf("latest match: %w", err)
	}
	m.Seed = uint64(seed)
	m.StartedAt = time.Unix(0, at).UTC()
	return m, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (match_id, step, hash, cosmos, mode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (match_id, step) DO UPDATE
		 SET hash = excluded.hash, cosmos = excluded.cosmos, mode = excluded.mode, created_at = excluded.created_at`,
		snap.MatchID.String(), int64(snap.Step), int64(snap.Hash), snap.Cosmos, snap.Mode, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, match uuid.UUID) (Snapshot, error) {
	var (
		snap           Snapshot
		step, hash, at int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT step, hash, cosmos, mode, created_at
		 FROM snapshots WHERE match_id = ? ORDER BY step DESC LIMIT 1`, match.String(),
	).Scan(&step, &hash, &snap.Cosmos, &snap.Mode, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.MatchID = match
	snap.Step, snap.Hash = uint32(step), uint32(hash)
	snap.CreatedAt = time.Unix(0, at).UTC()
	return snap, nil
}

func (s *SQLiteStore) AppendChecksums(ctx context.Context, match uuid.UUID, sums []Checksum) error {
	if len(sums) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("checksums begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checksums (match_id, step, hash) VALUES (?, ?, ?)
		 ON CONFLICT (match_id, step) DO UPDATE SET hash = excluded.hash`)
	if err != nil {
		return fmt.Errorf("checksums prepare: %w", err)
	}
	defer stmt.Close()

	id := match.String()
	for _, c := range sums {
		if _, err := stmt.ExecContext(ctx, id, int64(c.Step), int64(c.Hash)); err != nil {
			return fmt.Errorf("checksums insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Checksums(ctx context.Context, match uuid.UUID, from, to uint32) ([]Checksum, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, hash FROM checksums
		 WHERE match_id = ? AND step >= ? AND step < ? ORDER BY step`,
		match.String(), int64(from), int64(to),
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

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
