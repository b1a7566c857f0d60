package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"rezerve/core/rebase"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("storage: history database path must be configured")

const schema = `
CREATE TABLE IF NOT EXISTS rebase_history (
    id            TEXT PRIMARY KEY,
    epoch         INTEGER NOT NULL UNIQUE,
    executed_at   INTEGER NOT NULL,
    apr           INTEGER NOT NULL,
    ratio         TEXT NOT NULL,
    epoch_mint    TEXT NOT NULL,
    to_stakers    TEXT NOT NULL,
    to_ops        TEXT NOT NULL,
    to_burner     TEXT NOT NULL,
    reserve_guard INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_rebase_history_executed_at ON rebase_history(executed_at);
`

// Store wraps the rebase history persistence layer.
type Store struct {
	db *sql.DB
}

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendRebase persists one executed epoch.
func (s *Store) AppendRebase(ctx context.Context, record rebase.Record) error {
	guard := 0
	if record.ReserveGuard {
		guard = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rebase_history (id, epoch, executed_at, apr, ratio, epoch_mint, to_stakers, to_ops, to_burner, reserve_guard)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		record.Epoch,
		record.ExecutedAt,
		record.APR,
		bigColumn(record.Ratio),
		bigColumn(record.EpochMint),
		bigColumn(record.ToStakers),
		bigColumn(record.ToOps),
		bigColumn(record.ToBurner),
		guard,
	)
	if err != nil {
		return fmt.Errorf("insert rebase record: %w", err)
	}
	return nil
}

// LatestRebase returns the most recently executed epoch, if any.
func (s *Store) LatestRebase(ctx context.Context) (rebase.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT epoch, executed_at, apr, ratio, epoch_mint, to_stakers, to_ops, to_burner, reserve_guard
FROM rebase_history ORDER BY epoch DESC LIMIT 1`)
	record, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return rebase.Record{}, false, nil
	}
	if err != nil {
		return rebase.Record{}, false, fmt.Errorf("load latest rebase: %w", err)
	}
	return record, true, nil
}

// ListRebases returns up to limit executed epochs, most recent first. A zero
// or negative limit returns the full history.
func (s *Store) ListRebases(ctx context.Context, limit int) ([]rebase.Record, error) {
	query := `
SELECT epoch, executed_at, apr, ratio, epoch_mint, to_stakers, to_ops, to_burner, reserve_guard
FROM rebase_history ORDER BY epoch DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rebase records: %w", err)
	}
	defer rows.Close()

	records := make([]rebase.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rebase record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rebase records: %w", err)
	}
	return records, nil
}

func scanRecord(scan func(dest ...any) error) (rebase.Record, error) {
	var (
		record rebase.Record
		ratio  string
		mint   string
		stak   string
		ops    string
		burn   string
		guard  int
	)
	if err := scan(&record.Epoch, &record.ExecutedAt, &record.APR, &ratio, &mint, &stak, &ops, &burn, &guard); err != nil {
		return rebase.Record{}, err
	}
	var err error
	if record.Ratio, err = bigFromColumn(ratio); err != nil {
		return rebase.Record{}, err
	}
	if record.EpochMint, err = bigFromColumn(mint); err != nil {
		return rebase.Record{}, err
	}
	if record.ToStakers, err = bigFromColumn(stak); err != nil {
		return rebase.Record{}, err
	}
	if record.ToOps, err = bigFromColumn(ops); err != nil {
		return rebase.Record{}, err
	}
	if record.ToBurner, err = bigFromColumn(burn); err != nil {
		return rebase.Record{}, err
	}
	record.ReserveGuard = guard != 0
	return record, nil
}

func bigColumn(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func bigFromColumn(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric column %q", value)
	}
	return parsed, nil
}
