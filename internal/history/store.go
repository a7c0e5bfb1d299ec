// internal/history/store.go
package history

import (
	"log"
	"strings"
	"sync"
)

// DefaultLimit is the default capacity of a Store.
const DefaultLimit = 5000

// Persistence is the injected collaborator that durably stores entries.
// It is best-effort: failures are logged by the Store and never surfaced
// to callers of Append.
type Persistence interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// Store is a bounded, append-only log of executed statements, shared by
// every execution surface in the process. Entries are ordered oldest
// first; inserting past the capacity evicts the oldest. One Store is
// constructed at process start and passed by reference to consumers.
type Store struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
	persist Persistence
	subs    []chan []Entry
	closed  bool

	// Background saves run on one flusher goroutine so an older snapshot
	// can never overwrite a newer one on disk.
	saveCond    *sync.Cond
	dirty       bool
	flusherDone chan struct{}
}

// NewStore creates a store with the given capacity (DefaultLimit when
// limit <= 0). Previously persisted entries are loaded up front; a load
// failure is logged and the store starts empty. persist may be nil.
func NewStore(persist Persistence, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &Store{limit: limit, persist: persist}
	if persist != nil {
		entries, err := persist.Load()
		if err != nil {
			log.Printf("history: load failed: %v", err)
		} else {
			if len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			s.entries = entries
		}
		s.saveCond = sync.NewCond(&s.mu)
		s.flusherDone = make(chan struct{})
		go s.flusher()
	}
	return s
}

// Append inserts an entry at the newest end, evicting oldest entries past
// capacity. The in-memory state updates synchronously; the persistence
// write is fire-and-forget.
func (s *Store) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries = append(s.entries, e)
	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	s.notifyLocked(s.snapshotLocked())
	s.markDirtyLocked()
}

// Entries returns a snapshot of the current entries, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Search returns entries whose SQL contains the query, case-insensitive,
// most-recent-first.
func (s *Store) Search(q string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(q)
	var matches []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(s.entries[i].SQL), needle) {
			matches = append(matches, s.entries[i])
		}
	}
	return matches
}

// Subscribe returns a channel that receives the entry snapshot after
// every append. Slow observers only miss intermediate snapshots, never
// the latest one.
func (s *Store) Subscribe() <-chan []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan []Entry, 1)
	s.subs = append(s.subs, ch)
	return ch
}

// Reset discards all entries and persists the empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries = nil
	s.notifyLocked(nil)
	s.markDirtyLocked()
}

// Close stops background saving and flushes the current entries to
// persistence synchronously. Further appends are ignored.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	snapshot := s.snapshotLocked()
	persist := s.persist
	if s.saveCond != nil {
		s.saveCond.Signal()
	}
	s.mu.Unlock()

	if persist == nil {
		return nil
	}
	<-s.flusherDone
	return persist.Save(snapshot)
}

// flusher serializes every background save: it always writes the newest
// snapshot, and rapid appends coalesce into one write. On close it exits
// without saving; Close performs the final synchronous flush itself.
func (s *Store) flusher() {
	defer close(s.flusherDone)
	s.mu.Lock()
	for {
		for !s.dirty && !s.closed {
			s.saveCond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.dirty = false
		snapshot := s.snapshotLocked()
		s.mu.Unlock()

		if err := s.persist.Save(snapshot); err != nil {
			log.Printf("history: save failed: %v", err)
		}
		s.mu.Lock()
	}
}

func (s *Store) markDirtyLocked() {
	if s.saveCond == nil {
		return
	}
	s.dirty = true
	s.saveCond.Signal()
}

func (s *Store) snapshotLocked() []Entry {
	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

func (s *Store) notifyLocked(snapshot []Entry) {
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			// Replace the stale pending snapshot with the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
