package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maxpert/groupbus/encoding"
)

// SettingStore is a small key-value store shared by every process of a group.
// It lives in the same SQLite file as the message log but takes no part in
// the message protocol.
type SettingStore struct {
	store *MessageStore
}

// Set stores value under key, replacing any previous value
func (ss *SettingStore) Set(ctx context.Context, key string, value any) error {
	if !ss.store.usable() {
		return ErrStoreClosed
	}

	data, err := encoding.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}

	_, err = ss.store.db.ExecContext(ctx,
		`INSERT INTO setting (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, data)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// Get decodes the value stored under key into out.
// Returns false when the key is absent.
func (ss *SettingStore) Get(ctx context.Context, key string, out any) (bool, error) {
	if !ss.store.usable() {
		return false, ErrStoreClosed
	}

	var data []byte
	err := ss.store.db.QueryRowContext(ctx, `SELECT value FROM setting WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get setting %q: %w", key, err)
	}

	if err := encoding.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode setting %q: %w", key, err)
	}
	return true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (ss *SettingStore) Delete(ctx context.Context, key string) error {
	if !ss.store.usable() {
		return ErrStoreClosed
	}

	if _, err := ss.store.db.ExecContext(ctx, `DELETE FROM setting WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}
