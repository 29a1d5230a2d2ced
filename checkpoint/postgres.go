package checkpoint

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/psve/cryptagraph/search"
)

// RoundRecord is one finalized round of one search.
type RoundRecord struct {
	Cipher    string
	Alpha     uint64
	Direction string
	Round     int
	Masks     []search.ScoredMask
	CreatedAt time.Time
}

// Store persists finalized rounds. Only the root node uses it: it saves
// after every round and loads the latest round when resuming.
type Store interface {
	SaveRound(ctx context.Context, rec RoundRecord) error
	LatestRound(ctx context.Context, cipher string, alpha uint64, direction string) (RoundRecord, bool, error)
	Close() error
}

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore connects, verifies the connection and runs the
// schema migration.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_rounds (
		cipher     VARCHAR(32) NOT NULL,
		alpha      VARCHAR(16) NOT NULL,
		direction  VARCHAR(16) NOT NULL,
		round      INTEGER NOT NULL,
		mask_count INTEGER NOT NULL,
		set_elp    DOUBLE PRECISION NOT NULL,
		masks      BYTEA NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (cipher, alpha, direction, round)
	);

	CREATE INDEX IF NOT EXISTS idx_search_rounds_updated ON search_rounds(updated_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRound upserts one finalized round.
func (s *PostgresStore) SaveRound(ctx context.Context, rec RoundRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	total := 0.0
	for _, sm := range rec.Masks {
		total += sm.ELP
	}

	query := `
	INSERT INTO search_rounds
		(cipher, alpha, direction, round, mask_count, set_elp, masks, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (cipher, alpha, direction, round) DO UPDATE SET
		mask_count = EXCLUDED.mask_count,
		set_elp = EXCLUDED.set_elp,
		masks = EXCLUDED.masks,
		updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.Cipher,
		alphaKey(rec.Alpha),
		rec.Direction,
		rec.Round,
		len(rec.Masks),
		total,
		encodeMasks(rec.Masks),
	)
	return err
}

// LatestRound loads the highest finalized round of one search. The
// second return is false when no round has been stored yet.
func (s *PostgresStore) LatestRound(ctx context.Context, cipher string, alpha uint64, direction string) (RoundRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT round, mask_count, masks, created_at
		FROM search_rounds
		WHERE cipher = $1 AND alpha = $2 AND direction = $3
		ORDER BY round DESC
		LIMIT 1
	`, cipher, alphaKey(alpha), direction)

	var (
		round     int
		maskCount int
		blob      []byte
		createdAt time.Time
	)
	if err := row.Scan(&round, &maskCount, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoundRecord{}, false, nil
		}
		return RoundRecord{}, false, fmt.Errorf("loading round: %w", err)
	}

	masks, err := decodeMasks(blob)
	if err != nil {
		return RoundRecord{}, false, err
	}
	if len(masks) != maskCount {
		return RoundRecord{}, false, fmt.Errorf("stored round %d corrupt: %d masks, expected %d", round, len(masks), maskCount)
	}

	return RoundRecord{
		Cipher:    cipher,
		Alpha:     alpha,
		Direction: direction,
		Round:     round,
		Masks:     masks,
		CreatedAt: createdAt,
	}, true, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// alphaKey renders a mask as its hex key. BIGINT cannot hold the full
// uint64 range, so masks are keyed as text.
func alphaKey(alpha uint64) string {
	return fmt.Sprintf("%016x", alpha)
}

func encodeMasks(list []search.ScoredMask) []byte {
	buf := make([]byte, 0, len(list)*16)
	for _, sm := range list {
		buf = binary.LittleEndian.AppendUint64(buf, sm.Mask)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(sm.ELP))
	}
	return buf
}

func decodeMasks(buf []byte) ([]search.ScoredMask, error) {
	if len(buf)%16 != 0 {
		return nil, fmt.Errorf("mask blob of %d bytes is not a pair list", len(buf))
	}
	list := make([]search.ScoredMask, len(buf)/16)
	for i := range list {
		list[i].Mask = binary.LittleEndian.Uint64(buf[i*16:])
		list[i].ELP = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*16+8:]))
	}
	return list, nil
}

// InMemoryStore implements Store for tests and single-process runs
// without a database.
type InMemoryStore struct {
	mu     sync.RWMutex
	rounds map[string]RoundRecord
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rounds: make(map[string]RoundRecord),
	}
}

func memKey(cipher string, alpha uint64, direction string, round int) string {
	return fmt.Sprintf("%s/%s/%s/%d", cipher, alphaKey(alpha), direction, round)
}

// SaveRound stores a round in memory.
func (s *InMemoryStore) SaveRound(_ context.Context, rec RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.rounds[memKey(rec.Cipher, rec.Alpha, rec.Direction, rec.Round)] = rec
	return nil
}

// LatestRound returns the highest stored round of one search.
func (s *InMemoryStore) LatestRound(_ context.Context, cipher string, alpha uint64, direction string) (RoundRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := RoundRecord{Round: -1}
	for _, rec := range s.rounds {
		if rec.Cipher == cipher && rec.Alpha == alpha && rec.Direction == direction && rec.Round > best.Round {
			best = rec
		}
	}
	if best.Round < 0 {
		return RoundRecord{}, false, nil
	}
	return best, true, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
