package db

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS message (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	topic   TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_message_topic_id ON message(topic, id);
CREATE TABLE IF NOT EXISTS setting (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// ColumnInfo represents metadata for a single column
type ColumnInfo struct {
	Name     string
	Type     string // Declared type (TEXT, INTEGER, ...)
	Nullable bool   // true if NULL allowed (notnull column == 0)
	IsPK     bool
}

// applySchema creates the tables if they don't exist.
// Every process runs it on open, so it must stay idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Columns describes the columns of a table, in declaration order.
// An unknown table yields no columns and no error.
func (s *MessageStore) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	if !s.usable() {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query table info: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var name, colType string
		var notNull, pk int
		if err := rows.Scan(&name, &colType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, ColumnInfo{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
			IsPK:     pk > 0,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column info: %w", err)
	}

	return columns, nil
}
