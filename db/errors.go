package db

import "errors"

var (
	// ErrStoreClosed is returned by every call on a store that failed to open or was closed.
	ErrStoreClosed = errors.New("message store is closed")

	// ErrCorruptRow is returned when a selected row cannot be decoded into a Message.
	ErrCorruptRow = errors.New("corrupt message row")

	// ErrEmptyTopic is returned when appending or reading with an empty topic.
	ErrEmptyTopic = errors.New("topic must not be empty")
)
