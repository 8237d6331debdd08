package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps events in a local database for offline use.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dbPath, err := resolveDBPath(path)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func resolveDBPath(path string) (string, error) {
	abs := filepath.Clean(path)
	if strings.HasSuffix(abs, ".db") {
		if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
			return "", err
		}
		return abs, nil
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return "", err
	}
	return filepath.Join(abs, "calendar.db"), nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			status TEXT NOT NULL,
			start_unix INTEGER NOT NULL,
			end_unix INTEGER NOT NULL,
			data BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_events_time ON events(start_unix, end_unix);",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) link(id string) string {
	return "file://" + s.path + "#" + id
}

// ListEvents returns non-cancelled events intersecting [timeMin, timeMax)
// ordered by start. A zero timeMax leaves the window open.
func (s *SQLiteStore) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error) {
	query := `SELECT data FROM events WHERE status != ? AND end_unix > ?`
	args := []interface{}{models.StatusCancelled, timeMin.Unix()}
	if !timeMax.IsZero() {
		query += ` AND start_unix < ?`
		args = append(args, timeMax.Unix())
	}
	query += ` ORDER BY start_unix, id`
	if maxResults > 0 {
		query += ` LIMIT ?`
		args = append(args, maxResults)
	}
	return s.queryEvents(ctx, query, args...)
}

// SearchEvents matches query words against text fields of events that
// have not ended before timeMin.
func (s *SQLiteStore) SearchEvents(ctx context.Context, query string, timeMin time.Time, maxResults int) ([]models.Event, error) {
	candidates, err := s.queryEvents(ctx,
		`SELECT data FROM events WHERE status != ? AND end_unix > ? ORDER BY start_unix, id`,
		models.StatusCancelled, timeMin.Unix())
	if err != nil {
		return nil, err
	}

	var out []models.Event
	for i := range candidates {
		if !matchesQuery(&candidates[i], query) {
			continue
		}
		out = append(out, candidates[i])
		if maxResults > 0 && len(out) == maxResults {
			break
		}
	}
	return out, nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []models.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM events WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", service.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &ev, nil
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, event *models.Event) (models.EventRef, error) {
	ev := *event
	ev.ID = uuid.NewString()
	if ev.Status == "" {
		ev.Status = models.StatusConfirmed
	}
	ev.Link = s.link(ev.ID)

	if err := s.save(ctx, &ev, false); err != nil {
		return models.EventRef{}, err
	}
	return models.EventRef{ID: ev.ID, Link: ev.Link}, nil
}

func (s *SQLiteStore) UpdateEvent(ctx context.Context, id string, event *models.Event) (models.EventRef, error) {
	existing, err := s.GetEvent(ctx, id)
	if err != nil {
		return models.EventRef{}, err
	}

	ev := *event
	ev.ID = id
	ev.Link = existing.Link
	if ev.Status == "" {
		ev.Status = existing.Status
	}
	if err := s.save(ctx, &ev, true); err != nil {
		return models.EventRef{}, err
	}
	return models.EventRef{ID: ev.ID, Link: ev.Link}, nil
}

func (s *SQLiteStore) save(ctx context.Context, ev *models.Event, update bool) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if update {
		_, err = s.db.ExecContext(ctx,
			`UPDATE events SET summary = ?, status = ?, start_unix = ?, end_unix = ?, data = ? WHERE id = ?`,
			ev.Summary, ev.Status, ev.Start.Unix(), ev.End.Unix(), data, ev.ID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO events (id, summary, status, start_unix, end_unix, data) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.Summary, ev.Status, ev.Start.Unix(), ev.End.Unix(), data)
	}
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", service.ErrNotFound, id)
	}
	return nil
}
