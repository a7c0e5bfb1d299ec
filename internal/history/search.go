// internal/history/search.go
package history

// Search is an interactive search session over a Store: a query string,
// its matches most-recent-first, and a movable highlighted index that
// wraps at both ends. Opening a session never touches the editor buffer;
// the caller applies the accepted SQL itself. Not safe for concurrent
// use.
type Search struct {
	store   *Store
	query   string
	matches []Entry
	index   int
	active  bool
}

// NewSearch creates an inactive search session.
func NewSearch(store *Store) *Search {
	return &Search{store: store}
}

// Active reports whether a session is open.
func (s *Search) Active() bool {
	return s.active
}

// Open starts a session with the given query.
func (s *Search) Open(query string) {
	s.active = true
	s.SetQuery(query)
}

// SetQuery updates the query of an open session, recomputing matches and
// resetting the highlight to the most recent match.
func (s *Search) SetQuery(query string) {
	if !s.active {
		return
	}
	s.query = query
	s.matches = s.store.Search(query)
	s.index = 0
}

// Query returns the current query string.
func (s *Search) Query() string {
	return s.query
}

// Matches returns the current matches, most-recent-first.
func (s *Search) Matches() []Entry {
	out := make([]Entry, len(s.matches))
	copy(out, s.matches)
	return out
}

// Highlighted returns the currently highlighted match.
func (s *Search) Highlighted() (Entry, bool) {
	if !s.active || len(s.matches) == 0 {
		return Entry{}, false
	}
	return s.matches[s.index], true
}

// NextMatch moves the highlight one match older, wrapping to the newest.
func (s *Search) NextMatch() {
	if len(s.matches) == 0 {
		return
	}
	s.index = (s.index + 1) % len(s.matches)
}

// PrevMatch moves the highlight one match newer, wrapping to the oldest.
func (s *Search) PrevMatch() {
	if len(s.matches) == 0 {
		return
	}
	s.index = (s.index - 1 + len(s.matches)) % len(s.matches)
}

// Accept closes the session and returns the highlighted SQL for the
// caller to insert into its buffer. ok is false when nothing matched.
func (s *Search) Accept() (sql string, ok bool) {
	entry, ok := s.Highlighted()
	s.reset()
	if !ok {
		return "", false
	}
	return entry.SQL, true
}

// Cancel closes the session with no effect on the caller's buffer.
func (s *Search) Cancel() {
	s.reset()
}

func (s *Search) reset() {
	s.active = false
	s.query = ""
	s.matches = nil
	s.index = 0
}
