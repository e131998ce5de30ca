package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectFor_ValidTokens(t *testing.T) {
	names := []string{
		"group.com.example.appsync",
		"name with spaces",
		"wild*card>",
		"unicode-ñ-名前",
	}

	for _, name := range names {
		subject := subjectFor("groupbus", name)
		assert.True(t, strings.HasPrefix(subject, "groupbus."), subject)

		token := strings.TrimPrefix(subject, "groupbus.")
		assert.NotEmpty(t, token)
		assert.NotContains(t, token, ".")
		assert.NotContains(t, token, "*")
		assert.NotContains(t, token, ">")
		assert.NotContains(t, token, " ")
	}
}

func TestSubjectFor_Distinct(t *testing.T) {
	assert.NotEqual(t, subjectFor("p", "a.b"), subjectFor("p", "a_b"))
	assert.Equal(t, subjectFor("p", "same"), subjectFor("p", "same"))
}

func TestNewNatsBusWithConn_TrimsPrefix(t *testing.T) {
	bus := NewNatsBusWithConn(nil, "groupbus.", 0)
	assert.Equal(t, subjectFor("groupbus", "topic"), bus.Subject("topic"))
	assert.Equal(t, DefaultSignalBuffer, bus.buffer)
}
