// Package games holds the trending-games pool shown by the landing page reels.
package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/eringen/luckyreel/rotation"
)

// RecentWin is the teaser shown under a game card.
type RecentWin struct {
	Amount  string `json:"amount"`
	Player  string `json:"player"`
	Comment string `json:"comment"`
}

// Entry is one game in the pool file.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	RecentWin RecentWin `json:"recentWin"`
}

// File is the on-disk shape of the pool, {"gamesPool": [...]}.
type File struct {
	GamesPool []Entry `json:"gamesPool"`
}

// Selection is the day's pick.
type Selection struct {
	DayIndex   int64   `json:"dayIndex"`
	StartIndex int     `json:"startIndex"`
	Games      []Entry `json:"games"`
}

// ErrDuplicateID is returned when two pool entries share an id.
var ErrDuplicateID = errors.New("duplicate game id")

// Pool is a reloadable, read-mostly snapshot of the pool file.
type Pool struct {
	path string

	mu       sync.RWMutex
	entries  []Entry
	loadedAt time.Time
}

// Load reads and validates the pool file at path.
func Load(path string) (*Pool, error) {
	p := &Pool{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStatic builds a pool from entries without a backing file.
func NewStatic(entries []Entry) *Pool {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Pool{entries: cp, loadedAt: time.Now()}
}

// Path returns the backing file path ("" for static pools).
func (p *Pool) Path() string { return p.path }

// Reload re-reads the backing file. On error the previous snapshot is kept.
func (p *Pool) Reload() error {
	entries, err := readFile(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.entries = entries
	p.loadedAt = time.Now()
	p.mu.Unlock()
	return nil
}

func readFile(path string) ([]Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read games pool: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse games pool %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(f.GamesPool))
	for i, e := range f.GamesPool {
		if e.ID == "" {
			return nil, fmt.Errorf("games pool entry %d: missing id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("games pool entry %d: %w %q", i, ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return f.GamesPool, nil
}

// Entries returns a copy of the current snapshot in rotation order.
func (p *Pool) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Len returns the number of entries in the current snapshot.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Find returns the entry with the given id.
func (p *Pool) Find(id string) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Daily returns the k games for the day containing now.
func (p *Pool) Daily(k int, now time.Time) Selection {
	p.mu.RLock()
	entries := p.entries
	p.mu.RUnlock()

	day := rotation.DayIndex(now)
	sel := Selection{DayIndex: day, Games: rotation.SelectForDay(entries, k, day)}
	if len(entries) > 0 {
		sel.StartIndex = rotation.StartIndex(day, len(entries))
	}
	return sel
}

// Status describes the pool for the admin API.
type Status struct {
	TotalGames int       `json:"totalGames"`
	DailyCount int       `json:"dailyCount"`
	DayIndex   int64     `json:"dayIndex"`
	StartIndex int       `json:"startIndex"`
	PoolPath   string    `json:"poolPath"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// Status reports the pool size and where today's rotation starts.
func (p *Pool) Status(k int, now time.Time) Status {
	p.mu.RLock()
	n, loaded := len(p.entries), p.loadedAt
	p.mu.RUnlock()

	day := rotation.DayIndex(now)
	st := Status{TotalGames: n, DailyCount: min(k, n), DayIndex: day, PoolPath: p.path, LoadedAt: loaded}
	if n > 0 {
		st.StartIndex = rotation.StartIndex(day, n)
	}
	return st
}

// Watch reloads the pool whenever its file is written, created or renamed
// into place. It blocks until ctx is done.
func (p *Pool) Watch(ctx context.Context) error {
	if p.path == "" {
		return errors.New("games pool has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files atomically, so watch the directory.
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := p.Reload(); err != nil {
				log.Warn().Err(err).Str("path", p.path).Msg("games pool reload failed, keeping previous snapshot")
				continue
			}
			log.Info().Str("path", p.path).Int("games", p.Len()).Msg("games pool reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("games pool watcher error")
		}
	}
}
