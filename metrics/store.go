package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Range is an inclusive time window [Start, End].
type Range struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the window covering the days*24h before now.
func LastDays(now time.Time, days int) Range {
	return Range{Start: now.Add(-time.Duration(days) * 24 * time.Hour), End: now}
}

// Previous returns the window of equal length ending just before r.Start.
func (r Range) Previous() Range {
	length := r.End.Sub(r.Start)
	return Range{Start: r.Start.Add(-length), End: r.Start.Add(-time.Millisecond)}
}

func (r Range) bounds() (int64, int64) {
	return r.Start.UnixMilli(), r.End.UnixMilli()
}

// DeviceCount is the number of views from one device class.
type DeviceCount struct {
	DeviceType DeviceType
	Count      int
}

// TipCounts holds the raw per-tip aggregates.
type TipCounts struct {
	TipID     string
	Views     int
	Clicks    int
	AvgTimeMs sql.NullFloat64
}

// DayCounts holds the raw per-date aggregates.
type DayCounts struct {
	Date      string
	Views     int
	Clicks    int
	AvgTimeMs sql.NullFloat64
}

// MinuteCounts holds views and clicks for one wall-clock minute.
type MinuteCounts struct {
	Minute time.Time
	Views  int
	Clicks int
}

// Store is the SQLite-backed interaction log.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the event database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure metrics db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			tip_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			user_id TEXT,
			ip_address TEXT NOT NULL,
			interaction_type TEXT NOT NULL CHECK (interaction_type IN ('view', 'click', 'time_spent')),
			device_type TEXT NOT NULL,
			os TEXT NOT NULL,
			browser TEXT NOT NULL,
			user_agent TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL,
			time_spent_ms INTEGER,
			click_url TEXT,
			click_target TEXT,
			referrer TEXT,
			page_url TEXT,
			date TEXT NOT NULL,
			hour INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23)
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_ts ON interactions(ts);
		CREATE INDEX IF NOT EXISTS idx_interactions_type_ts ON interactions(interaction_type, ts);
		CREATE INDEX IF NOT EXISTS idx_interactions_tip_date ON interactions(tip_id, date);
		CREATE INDEX IF NOT EXISTS idx_interactions_visitor ON interactions(session_id, tip_id, date);
		CREATE INDEX IF NOT EXISTS idx_interactions_device_date ON interactions(device_type, date);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	ctx := context.Background()
	verStr, err := s.getSetting(ctx, "schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		if version, err = strconv.Atoi(verStr); err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("metrics db schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	return s.setSetting(ctx, "schema_version", strconv.Itoa(currentSchemaVersion))
}

func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Append inserts one event.
func (s *Store) Append(ctx context.Context, e *Event) error {
	var timeSpent sql.NullInt64
	if e.Type == TimeSpent {
		timeSpent = sql.NullInt64{Int64: e.TimeSpentMs, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (
			id, tip_id, session_id, user_id, ip_address, interaction_type,
			device_type, os, browser, user_agent, ts, time_spent_ms,
			click_url, click_target, referrer, page_url, date, hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TipID, e.SessionID, nullStringPtr(e.UserID), e.IPAddress, string(e.Type),
		string(e.Device.DeviceType), e.Device.OS, e.Device.Browser, e.Device.UserAgent,
		e.Timestamp.UnixMilli(), timeSpent,
		nullString(e.ClickURL), nullString(e.ClickTarget), nullString(e.Referrer), nullString(e.PageURL),
		e.Date, e.Hour,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// CountType counts events of one type in r.
func (s *Store) CountType(ctx context.Context, r Range, t InteractionType) (int, error) {
	from, to := r.bounds()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE interaction_type = ? AND ts BETWEEN ? AND ?`,
		string(t), from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t, err)
	}
	return n, nil
}

// CountUniqueVisitors counts distinct (session, tip, date) triples among views.
func (s *Store) CountUniqueVisitors(ctx context.Context, r Range) (int, error) {
	from, to := r.bounds()
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM interactions
			WHERE interaction_type = 'view' AND ts BETWEEN ? AND ?
			GROUP BY session_id, tip_id, date
		)`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unique visitors: %w", err)
	}
	return n, nil
}

// AvgTimeSpent returns the mean positive time_spent value in ms and the
// number of events it was computed over.
func (s *Store) AvgTimeSpent(ctx context.Context, r Range) (float64, int, error) {
	from, to := r.bounds()
	var (
		n   int
		avg sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(time_spent_ms) FROM interactions
		WHERE interaction_type = 'time_spent' AND time_spent_ms > 0 AND ts BETWEEN ? AND ?`,
		from, to).Scan(&n, &avg)
	if err != nil {
		return 0, 0, fmt.Errorf("avg time spent: %w", err)
	}
	return avg.Float64, n, nil
}

// DeviceCounts groups views in r by device type, largest first.
func (s *Store) DeviceCounts(ctx context.Context, r Range) ([]DeviceCount, error) {
	from, to := r.bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_type, COUNT(*) AS n FROM interactions
		WHERE interaction_type = 'view' AND ts BETWEEN ? AND ?
		GROUP BY device_type ORDER BY n DESC, device_type`, from, to)
	if err != nil {
		return nil, fmt.Errorf("device counts: %w", err)
	}
	defer rows.Close()

	var out []DeviceCount
	for rows.Next() {
		var dc DeviceCount
		var dt string
		if err := rows.Scan(&dt, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan device count: %w", err)
		}
		dc.DeviceType = DeviceType(dt)
		out = append(out, dc)
	}
	return out, rows.Err()
}

// TipStats returns per-tip views, clicks and mean time_spent, ordered by
// views descending then tip id.
func (s *Store) TipStats(ctx context.Context, r Range) ([]TipCounts, error) {
	from, to := r.bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT tip_id,
			SUM(CASE WHEN interaction_type = 'view' THEN 1 ELSE 0 END) AS views,
			SUM(CASE WHEN interaction_type = 'click' THEN 1 ELSE 0 END) AS clicks,
			AVG(CASE WHEN interaction_type = 'time_spent' THEN time_spent_ms END) AS avg_time
		FROM interactions
		WHERE ts BETWEEN ? AND ?
		GROUP BY tip_id
		ORDER BY views DESC, tip_id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("tip stats: %w", err)
	}
	defer rows.Close()

	var out []TipCounts
	for rows.Next() {
		var tc TipCounts
		if err := rows.Scan(&tc.TipID, &tc.Views, &tc.Clicks, &tc.AvgTimeMs); err != nil {
			return nil, fmt.Errorf("scan tip stats: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DailyStats returns views, clicks and mean time_spent per calendar date,
// oldest first.
func (s *Store) DailyStats(ctx context.Context, r Range) ([]DayCounts, error) {
	from, to := r.bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT date,
			SUM(CASE WHEN interaction_type = 'view' THEN 1 ELSE 0 END),
			SUM(CASE WHEN interaction_type = 'click' THEN 1 ELSE 0 END),
			AVG(CASE WHEN interaction_type = 'time_spent' THEN time_spent_ms END)
		FROM interactions
		WHERE ts BETWEEN ? AND ?
		GROUP BY date
		ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer rows.Close()

	var out []DayCounts
	for rows.Next() {
		var dc DayCounts
		if err := rows.Scan(&dc.Date, &dc.Views, &dc.Clicks, &dc.AvgTimeMs); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// MinuteStats returns views and clicks per minute, oldest first. Minutes
// without views or clicks are omitted.
func (s *Store) MinuteStats(ctx context.Context, r Range) ([]MinuteCounts, error) {
	from, to := r.bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts / 60000 AS minute,
			SUM(CASE WHEN interaction_type = 'view' THEN 1 ELSE 0 END),
			SUM(CASE WHEN interaction_type = 'click' THEN 1 ELSE 0 END)
		FROM interactions
		WHERE ts BETWEEN ? AND ? AND interaction_type IN ('view', 'click')
		GROUP BY minute
		ORDER BY minute`, from, to)
	if err != nil {
		return nil, fmt.Errorf("minute stats: %w", err)
	}
	defer rows.Close()

	var out []MinuteCounts
	for rows.Next() {
		var (
			minute int64
			mc     MinuteCounts
		)
		if err := rows.Scan(&minute, &mc.Views, &mc.Clicks); err != nil {
			return nil, fmt.Errorf("scan minute stats: %w", err)
		}
		mc.Minute = time.UnixMilli(minute * 60000).UTC()
		out = append(out, mc)
	}
	return out, rows.Err()
}

// DeleteBefore removes events older than cutoff and returns how many.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete interactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
