// Package sqlite implements the persistence gateway over a single SQLite
// file: room records, chat transcripts and recording metadata.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/peergrid/beacon/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id       TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id      TEXT NOT NULL,
	client_id    TEXT NOT NULL,
	display_name TEXT NOT NULL,
	body         TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	FOREIGN KEY (room_id) REFERENCES rooms (room_id)
);

CREATE TABLE IF NOT EXISTS recordings (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id          TEXT NOT NULL,
	started_at       INTEGER NOT NULL,
	ended_at         INTEGER,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	participants     TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (room_id) REFERENCES rooms (room_id)
);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements the persistence gateway over SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateRoom inserts a durable room record. passwordHash may be empty for
// open rooms.
func (s *Store) CreateRoom(ctx context.Context, id domain.RoomID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (room_id, password_hash, created_at) VALUES (?, ?, ?)`,
		string(id), passwordHash, toMillis(time.Now()))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrRoomExists
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// RoomRecord fetches the durable record for id, or domain.ErrRoomNotFound.
func (s *Store) RoomRecord(ctx context.Context, id domain.RoomID) (domain.RoomRecord, error) {
	var (
		hash      string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash, created_at FROM rooms WHERE room_id = ?`, string(id)).
		Scan(&hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomRecord{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.RoomRecord{}, fmt.Errorf("select room: %w", err)
	}
	return domain.RoomRecord{ID: id, PasswordHash: hash, CreatedAt: fromMillis(createdAt)}, nil
}

// InsertChatMessage appends a chat row and returns its timestamp.
func (s *Store) InsertChatMessage(ctx context.Context, id domain.RoomID, clientID domain.ClientID, displayName, body string) (time.Time, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, client_id, display_name, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(id), string(clientID), displayName, body, toMillis(now))
	if err != nil {
		return time.Time{}, fmt.Errorf("insert message: %w", err)
	}
	return fromMillis(toMillis(now)), nil
}

// RecentHistory returns up to limit of the room's chat transcript,
// oldest-first.
func (s *Store) RecentHistory(ctx context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client_id, display_name, body, created_at FROM messages WHERE room_id = ? ORDER BY id ASC LIMIT ?`,
		string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m         domain.ChatMessage
			createdAt int64
		)
		if err := rows.Scan(&m.ClientID, &m.DisplayName, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.RoomID = id
		m.SentAt = fromMillis(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveRecording persists client-reported recording metadata. EndedAt is
// stamped server-side when absent.
func (s *Store) SaveRecording(ctx context.Context, rec domain.Recording) error {
	ended := toMillis(time.Now())
	if rec.EndedAt != nil {
		ended = toMillis(*rec.EndedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (room_id, started_at, ended_at, duration_seconds, participants) VALUES (?, ?, ?, ?, ?)`,
		string(rec.RoomID), toMillis(rec.StartedAt), ended, rec.DurationSeconds, rec.Participants)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// ListRooms returns the most recently created rooms for admin views.
func (s *Store) ListRooms(ctx context.Context, limit int) ([]domain.RoomRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, password_hash, created_at FROM rooms ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.RoomRecord
	for rows.Next() {
		var (
			rec       domain.RoomRecord
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListMessages returns the most recent chat rows across all rooms,
// newest-first.
func (s *Store) ListMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, client_id, display_name, body, created_at FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var (
			m         domain.ChatMessage
			createdAt int64
		)
		if err := rows.Scan(&m.RoomID, &m.ClientID, &m.DisplayName, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SentAt = fromMillis(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRecordings returns the most recent recording rows, newest-first.
func (s *Store) ListRecordings(ctx context.Context, limit int) ([]domain.Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, started_at, ended_at, duration_seconds, participants FROM recordings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		var (
			rec       domain.Recording
			startedAt int64
			endedAt   sql.NullInt64
		)
		if err := rows.Scan(&rec.RoomID, &startedAt, &endedAt, &rec.DurationSeconds, &rec.Participants); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		rec.StartedAt = fromMillis(startedAt)
		if endedAt.Valid {
			t := fromMillis(endedAt.Int64)
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
