package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/tanishra/smartinfo/core"
)

// EmptyHistory is rendered when a store has no turns.
const EmptyHistory = "No conversation history."

// FormatHistory renders turns as "[timestamp] Role: content" lines, two per turn.
func FormatHistory(turns []core.Turn) string {
	if len(turns) == 0 {
		return EmptyHistory
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		ts := t.Timestamp.Format(time.RFC3339)
		fmt.Fprintf(&b, "[%s] User: %s\n[%s] Assistant: %s", ts, t.Query, ts, t.Response)
	}
	return b.String()
}

// History renders the whole store.
func (s *Store) History() string {
	return FormatHistory(s.Recent(s.Capacity()))
}
