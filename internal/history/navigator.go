// internal/history/navigator.go
package history

// Navigator is a cursor over a Store for up/down recall in an editor
// buffer. The drafting position sits past the newest entry; stepping
// older from it captures the in-editor draft exactly once, and stepping
// past the newest restores it. A Navigator belongs to one editor and is
// not safe for concurrent use.
type Navigator struct {
	store    *Store
	cursor   int
	draft    string
	browsing bool
}

// NewNavigator creates a navigator positioned at the drafting position.
func NewNavigator(store *Store) *Navigator {
	return &Navigator{store: store}
}

// Browsing reports whether the cursor points into history rather than at
// the draft.
func (n *Navigator) Browsing() bool {
	return n.browsing
}

// Previous moves one step toward older entries, clamped at the oldest,
// and returns that entry's SQL. On the first step from the drafting
// position it captures the given draft text. ok is false when there is
// no history to recall.
func (n *Navigator) Previous(draft string) (sql string, ok bool) {
	entries := n.store.Entries()
	if len(entries) == 0 {
		return "", false
	}
	if !n.browsing {
		n.draft = draft
		n.browsing = true
		n.cursor = len(entries) - 1
	} else if n.cursor > 0 {
		n.cursor--
	}
	if n.cursor >= len(entries) {
		n.cursor = len(entries) - 1
	}
	return entries[n.cursor].SQL, true
}

// Next moves one step toward newer entries. Moving past the newest
// restores the captured draft and resets to the drafting position;
// browsing reports whether the cursor is still in history.
func (n *Navigator) Next() (text string, browsing bool) {
	if !n.browsing {
		return "", false
	}
	entries := n.store.Entries()
	n.cursor++
	if n.cursor >= len(entries) {
		n.browsing = false
		return n.draft, false
	}
	return entries[n.cursor].SQL, true
}

// Reset returns the cursor to the drafting position without restoring
// the draft. Called when the user edits the buffer directly.
func (n *Navigator) Reset() {
	n.browsing = false
	n.draft = ""
}
