package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jwulff/steno/history/internal/history"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("entry not found")

// Store provides read/write access to the history database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "Steno", "history.sqlite")
}

// Open opens (creating if needed) the database with WAL and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]history.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transcript, polished, timestamp, wordCount, polishUsed, favorite
		FROM history
		ORDER BY timestamp DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []history.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the entry with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (history.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, transcript, polished, timestamp, wordCount, polishUsed, favorite
		FROM history
		WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Entry{}, ErrNotFound
	}
	return e, err
}

// Add inserts e and returns it with the assigned id. A zero timestamp is
// set to now and a zero word count is computed from the transcript.
func (s *Store) Add(ctx context.Context, e history.Entry) (history.Entry, error) {
	if e.Transcript == "" {
		return history.Entry{}, errors.New("transcript is required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.WordCount == 0 {
		e.WordCount = history.CountWords(e.Transcript)
	}

	var polished sql.NullString
	if e.Polished != "" {
		polished = sql.NullString{String: e.Polished, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO history (transcript, polished, timestamp, wordCount, polishUsed, favorite)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Transcript, polished, unixFromTime(e.Timestamp), e.WordCount, e.PolishUsed, e.Favorite)
	if err != nil {
		return history.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return history.Entry{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return e, nil
}

// Delete removes the entry with the given id. Missing ids are ignored.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag. Missing ids are ignored.
func (s *Store) ToggleFavorite(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE history SET favorite = 1 - favorite WHERE id = ?`, id); err != nil {
		return fmt.Errorf("toggle favorite: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (history.Entry, error) {
	var e history.Entry
	var polished sql.NullString
	var ts float64

	if err := row.Scan(&e.ID, &e.Transcript, &polished, &ts,
		&e.WordCount, &e.PolishUsed, &e.Favorite); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan entry: %w", err)
	}

	e.Timestamp = timeFromUnix(ts)
	if polished.Valid {
		e.Polished = polished.String
	}
	return e, nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
