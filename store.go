package luckyreel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested winner does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the site SQLite database holding winners content.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open site db: %w", err)
	}
	// WAL lets the page handlers read while an admin writes; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure site db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS winners (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    amount TEXT NOT NULL,
    game TEXT NOT NULL,
    time_ago TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_winners_active_created ON winners(active, created_at DESC);
`)
	return err
}

const winnerColumns = `id, name, amount, game, time_ago, active, created_at, updated_at`

func scanWinner(row interface{ Scan(...any) error }) (Winner, error) {
	var (
		w                Winner
		active           int
		created, updated int64
	)
	if err := row.Scan(&w.ID, &w.Name, &w.Amount, &w.Game, &w.TimeAgo, &active, &created, &updated); err != nil {
		return Winner{}, err
	}
	w.Active = active == 1
	w.CreatedAt = time.UnixMilli(created).UTC()
	w.UpdatedAt = time.UnixMilli(updated).UTC()
	return w, nil
}

func (s *Store) listWinners(ctx context.Context, query string, args ...any) ([]Winner, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	defer rows.Close()

	winners := []Winner{}
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		winners = append(winners, w)
	}
	return winners, rows.Err()
}

// ListWinners returns every winner, newest first.
func (s *Store) ListWinners(ctx context.Context) ([]Winner, error) {
	return s.listWinners(ctx, `SELECT `+winnerColumns+` FROM winners ORDER BY created_at DESC, id`)
}

// ListActiveWinners returns up to limit active winners, newest first.
func (s *Store) ListActiveWinners(ctx context.Context, limit int) ([]Winner, error) {
	return s.listWinners(ctx,
		`SELECT `+winnerColumns+` FROM winners WHERE active = 1 ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// GetWinner returns one winner by id or ErrNotFound.
func (s *Store) GetWinner(ctx context.Context, id string) (Winner, error) {
	w, err := scanWinner(s.db.QueryRowContext(ctx, `SELECT `+winnerColumns+` FROM winners WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Winner{}, ErrNotFound
	}
	if err != nil {
		return Winner{}, fmt.Errorf("get winner %s: %w", id, err)
	}
	return w, nil
}

// CreateWinner stores a new active winner and returns it.
func (s *Store) CreateWinner(ctx context.Context, in WinnerInput) (Winner, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	w := Winner{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Amount:    in.Amount,
		Game:      in.Game,
		TimeAgo:   in.TimeAgo,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO winners (`+winnerColumns+`) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		w.ID, w.Name, w.Amount, w.Game, w.TimeAgo, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Winner{}, fmt.Errorf("insert winner: %w", err)
	}
	return w, nil
}

// UpdateWinner applies p to the winner with id and returns the result.
func (s *Store) UpdateWinner(ctx context.Context, id string, p WinnerPatch) (Winner, error) {
	w, err := s.GetWinner(ctx, id)
	if err != nil {
		return Winner{}, err
	}
	w = p.apply(w)
	w.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	active := 0
	if w.Active {
		active = 1
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE winners SET name = ?, amount = ?, game = ?, time_ago = ?, active = ?, updated_at = ? WHERE id = ?`,
		w.Name, w.Amount, w.Game, w.TimeAgo, active, w.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return Winner{}, fmt.Errorf("update winner %s: %w", id, err)
	}
	return w, nil
}

// DeleteWinner removes a winner by id or returns ErrNotFound.
func (s *Store) DeleteWinner(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM winners WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete winner %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
