package group

import (
	"context"
	"errors"

	"github.com/maxpert/groupbus/db"
)

// Errors returned by Group operations
var (
	ErrGroupClosed     = errors.New("group is closed")
	ErrTopicNotAllowed = errors.New("topic not allowed")
	ErrNoSettings      = errors.New("group has no settings store")
	ErrNilHandler      = errors.New("handler is required")
)

// Handler receives one delivered message. It runs on the callback context.
type Handler func(topic, payload string)

// MessageLog is the durable storage a Group appends to and polls.
// db.MessageStore implements it.
type MessageLog interface {
	Append(ctx context.Context, topic, payload string) (uint64, error)
	MaxID(ctx context.Context, topic string) (uint64, error)
	ReadAfter(ctx context.Context, topic string, cursor uint64, limit int) ([]db.Message, error)
	Clear(ctx context.Context) error
}

// SettingStore is the shared key-value collaborator.
// db.SettingStore implements it.
type SettingStore interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, out any) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Filter determines whether a topic may be used
type Filter interface {
	Match(topic string) bool
}
