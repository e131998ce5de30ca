package group

import (
	"fmt"

	"github.com/gobwas/glob"
)

// TopicFilter allows topics matching any of a set of glob patterns
type TopicFilter struct {
	globs    []glob.Glob
	patterns []string
}

// NewTopicFilter compiles patterns. Empty patterns match everything.
// '.' is a separator, so "session.*" matches "session.login" but not
// "session.a.b"; use "session.**" for any depth.
func NewTopicFilter(patterns []string) (*TopicFilter, error) {
	filter := &TopicFilter{
		globs:    make([]glob.Glob, 0, len(patterns)),
		patterns: append([]string(nil), patterns...),
	}

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid topic pattern %q: %w", pattern, err)
		}
		filter.globs = append(filter.globs, g)
	}

	return filter, nil
}

// Match returns true if topic matches a configured pattern
func (f *TopicFilter) Match(topic string) bool {
	if len(f.globs) == 0 {
		return true
	}

	for _, g := range f.globs {
		if g.Match(topic) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns
func (f *TopicFilter) Patterns() []string {
	return f.patterns
}
