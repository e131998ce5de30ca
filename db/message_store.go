package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Defaults for StoreOptions
const (
	DefaultBusyTimeout = 5 * time.Second
	DefaultSynchronous = "NORMAL"
)

// StoreOptions configures how the shared SQLite file is opened
type StoreOptions struct {
	BusyTimeout time.Duration // How long to wait on a lock held by another process
	Synchronous string        // OFF, NORMAL or FULL
}

// MessageStore is the durable message log shared by every process of a group.
// Each statement is atomic on its own; no cross-process lock or transaction
// spans more than one statement.
type MessageStore struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// OpenMessageStore opens (creating if needed) the message log at path.
func OpenMessageStore(path string, opts StoreOptions) (*MessageStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	if opts.Synchronous == "" {
		opts.Synchronous = DefaultSynchronous
	}

	if !strings.Contains(path, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", buildDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to message store: %w", err)
	}

	// Statements from this process are already serialized by the write context.
	// One connection keeps reads on the same snapshot as our own writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened message store")

	return &MessageStore{db: db, path: path}, nil
}

// buildDSN appends connection parameters understood by go-sqlite3.
// WAL lets readers in other processes proceed while one process appends;
// busy_timeout makes a writer wait instead of failing with SQLITE_BUSY.
func buildDSN(path string, opts StoreOptions) string {
	if strings.Contains(path, ":memory:") {
		return path
	}

	params := fmt.Sprintf("_busy_timeout=%d&_journal_mode=WAL&_synchronous=%s&_txlock=immediate",
		opts.BusyTimeout.Milliseconds(), opts.Synchronous)

	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// Path returns the file the store was opened from
func (s *MessageStore) Path() string {
	return s.path
}

func (s *MessageStore) usable() bool {
	return s != nil && s.db != nil && !s.closed.Load()
}

// Execute runs a statement that returns no rows
func (s *MessageStore) Execute(ctx context.Context, query string, args ...any) error {
	if !s.usable() {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

// Select runs a query and returns every row as text keyed by column name.
// NULL values are left out of the row.
func (s *MessageStore) Select(ctx context.Context, query string, args ...any) ([]Row, error) {
	if !s.usable() {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select columns: %w", err)
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	var result []Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("select scan: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if values[i].Valid {
				row[col] = values[i].String
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}

	return result, nil
}

// Append inserts one message and returns its id
func (s *MessageStore) Append(ctx context.Context, topic, payload string) (uint64, error) {
	if !s.usable() {
		return 0, ErrStoreClosed
	}
	if topic == "" {
		return 0, ErrEmptyTopic
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO message (topic, payload) VALUES (?, ?)`, topic, payload)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}

	return uint64(id), nil
}

// MaxID returns the id of the newest message on topic, or CursorStart if there is none
func (s *MessageStore) MaxID(ctx context.Context, topic string) (uint64, error) {
	if !s.usable() {
		return CursorStart, ErrStoreClosed
	}
	if topic == "" {
		return CursorStart, ErrEmptyTopic
	}

	var maxID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM message WHERE topic = ?`, topic).Scan(&maxID)
	if err != nil {
		return CursorStart, fmt.Errorf("max id for %q: %w", topic, err)
	}
	if !maxID.Valid {
		return CursorStart, nil
	}

	return uint64(maxID.Int64), nil
}

// ReadAfter returns messages on topic with id > cursor in ascending id order.
// limit <= 0 means no limit.
//
// Rows decoded before a corrupt row are returned together with the error so
// the caller can deliver them and stop in front of the bad one.
func (s *MessageStore) ReadAfter(ctx context.Context, topic string, cursor uint64, limit int) ([]Message, error) {
	if !s.usable() {
		return nil, ErrStoreClosed
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	query := `SELECT id, topic, payload FROM message WHERE topic = ? AND id > ? ORDER BY id ASC`
	args := []any{topic, int64(cursor)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.Select(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		msg, err := DecodeMessage(row)
		if err != nil {
			return messages, err
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Clear deletes every message of every topic.
// The AUTOINCREMENT high-water mark survives, so ids are never reused.
func (s *MessageStore) Clear(ctx context.Context) error {
	if !s.usable() {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM message`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// LogStats returns the number of stored messages and the newest id across all topics
func (s *MessageStore) LogStats(ctx context.Context) (uint64, uint64, error) {
	if !s.usable() {
		return 0, 0, ErrStoreClosed
	}

	var rows int64
	var maxID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(id) FROM message`).Scan(&rows, &maxID)
	if err != nil {
		return 0, 0, fmt.Errorf("log stats: %w", err)
	}

	return uint64(rows), uint64(maxID.Int64), nil
}

// Settings returns a key-value store on the same file
func (s *MessageStore) Settings() *SettingStore {
	return &SettingStore{store: s}
}

// Close closes the database connection
func (s *MessageStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
