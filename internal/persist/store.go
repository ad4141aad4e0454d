package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/config"
)

var ErrNotFound = errors.New("persist: not found")

// Match is one run of a scenario. Its id keys every snapshot and checksum.
type Match struct {
	ID        uuid.UUID
	Scenario  string
	Seed      uint64
	StartedAt time.Time
}

func NewMatch(scenario string, seed uint64) Match {
	return Match{ID: uuid.New(), Scenario: scenario, Seed: seed, StartedAt: time.Now().UTC()}
}

// Snapshot is a saved world: the cosmos save bytes plus the encoded mode
// state, taken between steps.
type Snapshot struct {
	MatchID   uuid.UUID
	Step      uint32
	Hash      uint32
	Cosmos    []byte
	Mode      []byte
	CreatedAt time.Time
}

// Checksum is the per-step desync checksum.
type Checksum struct {
	Step uint32
	Hash uint32
}

// Store persists matches, snapshots and the checksum log.
type Store interface {
	CreateMatch(ctx context.Context, m Match) error
	// LatestMatch returns the most recently started match.
	LatestMatch(ctx context.Context) (Match, error)
	// SaveSnapshot replaces any snapshot at the same step.
	SaveSnapshot(ctx context.Context, s Snapshot) error
	LatestSnapshot(ctx context.Context, match uuid.UUID) (Snapshot, error)
	// AppendChecksums writes a batch atomically. Steps already logged are
	// overwritten.
	AppendChecksums(ctx context.Context, match uuid.UUID, sums []Checksum) error
	// Checksums returns the logged checksums with from <= step < to in step
	// order.
	Checksums(ctx context.Context, match uuid.UUID, from, to uint32) ([]Checksum, error)
	Close() error
}

// Open connects to the configured store and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		sqlDB := db.SQL()
		err = RunMigrations(ctx, sqlDB, DialectPostgres)
		sqlDB.Close()
		if err != nil {
			db.Close()
			return nil, err
		}
		return NewPGStore(db), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("persist: unknown driver %q", cfg.Driver)
	}
}
