package db

import (
	"fmt"
	"strconv"
)

// CursorStart is the cursor value positioned before any row.
// AUTOINCREMENT ids start at 1, so every stored message is after it.
const CursorStart uint64 = 0

// Message is a durable row of the message log
type Message struct {
	ID      uint64 // Assigned by storage on insert, strictly increasing, never reused
	Topic   string
	Payload string
}

// Row is a selected row as column name -> text value.
// Columns holding NULL are absent.
type Row map[string]string

// Text returns the value of a column and whether it was present
func (r Row) Text(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// DecodeMessage converts a row selected from the message table into a Message.
// Missing or malformed columns fail with ErrCorruptRow instead of being dropped.
func DecodeMessage(row Row) (Message, error) {
	rawID, ok := row.Text("id")
	if !ok {
		return Message{}, fmt.Errorf("%w: missing column id", ErrCorruptRow)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: column id %q: %v", ErrCorruptRow, rawID, err)
	}

	topic, ok := row.Text("topic")
	if !ok {
		return Message{}, fmt.Errorf("%w: missing column topic (id %d)", ErrCorruptRow, id)
	}

	payload, ok := row.Text("payload")
	if !ok {
		return Message{}, fmt.Errorf("%w: missing column payload (id %d)", ErrCorruptRow, id)
	}

	return Message{ID: id, Topic: topic, Payload: payload}, nil
}
