package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicFilter(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		topic    string
		want     bool
	}{
		{"empty allows all", nil, "anything", true},
		{"exact", []string{"sync"}, "sync", true},
		{"exact miss", []string{"sync"}, "sync2", false},
		{"star one segment", []string{"session.*"}, "session.login", true},
		{"star stops at separator", []string{"session.*"}, "session.a.b", false},
		{"double star any depth", []string{"session.**"}, "session.a.b", true},
		{"alternatives", []string{"{sync,cache}"}, "cache", true},
		{"second pattern", []string{"sync", "cache.*"}, "cache.images", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTopicFilter(tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(tt.topic))
		})
	}
}

func TestTopicFilter_InvalidPattern(t *testing.T) {
	_, err := NewTopicFilter([]string{"[a-"})
	assert.Error(t, err)
}

func TestTopicFilter_Patterns(t *testing.T) {
	patterns := []string{"sync"}
	f, err := NewTopicFilter(patterns)
	require.NoError(t, err)
	patterns[0] = "changed"
	assert.Equal(t, []string{"sync"}, f.Patterns())
}
