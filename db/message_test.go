package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage(Row{"id": "42", "topic": "sync", "payload": "hello"})
	require.NoError(t, err)
	assert.Equal(t, Message{ID: 42, Topic: "sync", Payload: "hello"}, msg)

	msg, err = DecodeMessage(Row{"id": "7", "topic": "sync", "payload": ""})
	require.NoError(t, err)
	assert.Equal(t, "", msg.Payload)
}

func TestDecodeMessage_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"missing id", Row{"topic": "sync", "payload": "x"}},
		{"non numeric id", Row{"id": "abc", "topic": "sync", "payload": "x"}},
		{"negative id", Row{"id": "-1", "topic": "sync", "payload": "x"}},
		{"missing topic", Row{"id": "1", "payload": "x"}},
		{"missing payload", Row{"id": "1", "topic": "sync"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMessage(tc.row)
			assert.ErrorIs(t, err, ErrCorruptRow)
		})
	}
}
