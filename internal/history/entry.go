// internal/history/entry.go
package history

import "time"

// Status is the terminal outcome of a statement execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry represents a single executed statement. Entries are immutable
// once appended to a Store.
type Entry struct {
	ID           string
	SQL          string
	ExecutedAt   time.Time
	DurationMs   int64
	RowCount     int
	Status       Status
	ErrorMessage string
}

// Preview returns a truncated version of the SQL for list display.
func (e Entry) Preview(maxLen int) string {
	if len(e.SQL) > maxLen && maxLen > 3 {
		return e.SQL[:maxLen-3] + "..."
	}
	return e.SQL
}
