// internal/workbench/controller.go
package workbench

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hgwr/TableGlass-sub001/internal/history"
	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// Executor runs one statement against the database. It fails with a
// descriptive error on any driver, network or SQL error.
type Executor interface {
	Execute(ctx context.Context, sql string) (*query.Result, error)
}

// Phase is the execution state of a Controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseExecuting
	PhaseSucceeded
	PhaseFailed
)

// State is an immutable snapshot of a Controller, safe to hand to a
// renderer.
type State struct {
	Buffer       string
	Phase        Phase
	Result       *query.Result
	ErrorMessage string
	Elapsed      time.Duration
}

// Controller owns one editor buffer and drives single-flight statement
// execution against an injected Executor. All mutable state is guarded
// by one mutex; callers observe it only through Snapshot and Subscribe.
type Controller struct {
	mu       sync.Mutex
	executor Executor
	hist     *history.Store
	nav      *history.Navigator
	search   *history.Search

	buffer       string
	phase        Phase
	result       *query.Result
	errMsg       string
	elapsed      time.Duration
	lastReadOnly bool

	gen    uint64
	closed bool
	subs   []chan State
}

// NewController creates a controller sharing the given history store.
func NewController(executor Executor, hist *history.Store) *Controller {
	return &Controller{
		executor: executor,
		hist:     hist,
		nav:      history.NewNavigator(hist),
		search:   history.NewSearch(hist),
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Subscribe returns a channel receiving a state snapshot after every
// change. A slow observer only misses intermediate snapshots.
func (c *Controller) Subscribe() <-chan State {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan State, 1)
	c.subs = append(c.subs, ch)
	return ch
}

// Buffer returns the current editor text.
func (c *Controller) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

// SetBuffer replaces the editor text in response to a direct user edit.
// Editing tombstones history navigation and clears a terminal result.
func (c *Controller) SetBuffer(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBufferLocked(text)
	c.nav.Reset()
	c.notifyLocked()
}

// RequestExecute runs the buffer's statement. Empty buffers and, in
// read-only mode, statements the classifier rejects are silent no-ops;
// so is a request while another execution is in flight.
func (c *Controller) RequestExecute(readOnly bool) {
	c.mu.Lock()
	if c.closed || c.phase == PhaseExecuting {
		c.mu.Unlock()
		return
	}
	trimmed := strings.TrimSpace(c.buffer)
	if trimmed == "" {
		c.mu.Unlock()
		return
	}
	// Defensive re-check: callers disable the run affordance themselves,
	// but this gate is the authoritative one.
	if readOnly && query.Classify(trimmed) == query.Unsafe {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseExecuting
	c.lastReadOnly = readOnly
	c.gen++
	gen := c.gen
	c.notifyLocked()
	c.mu.Unlock()

	go c.run(gen, trimmed)
}

// Retry re-executes the buffer's current text unchanged, with the same
// read-only mode as the previous attempt.
func (c *Controller) Retry() {
	c.mu.Lock()
	readOnly := c.lastReadOnly
	c.mu.Unlock()
	c.RequestExecute(readOnly)
}

// SelectTable seeds the buffer with a default query for the table and
// immediately executes it read-only.
func (c *Controller) SelectTable(table query.TableRef) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.setBufferLocked(fmt.Sprintf("SELECT * FROM %s LIMIT 50;", table.Qualified()))
	c.nav.Reset()
	c.notifyLocked()
	c.mu.Unlock()

	c.RequestExecute(true)
}

// Close tears the controller down. Any in-flight execution is abandoned:
// its eventual completion is discarded rather than applied.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
}

func (c *Controller) run(gen uint64, sql string) {
	start := time.Now()
	result, execErr := c.executor.Execute(context.Background(), sql)
	elapsed := time.Since(start)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	entry := history.Entry{
		ID:         uuid.NewString(),
		SQL:        sql,
		ExecutedAt: time.Now(),
		DurationMs: elapsed.Milliseconds(),
	}
	if execErr != nil {
		c.phase = PhaseFailed
		c.result = nil
		c.errMsg = execErr.Error()
		entry.Status = history.StatusError
		entry.ErrorMessage = execErr.Error()
	} else {
		c.phase = PhaseSucceeded
		c.result = result
		c.errMsg = ""
		entry.Status = history.StatusSuccess
		entry.RowCount = result.RowCount
	}
	c.elapsed = elapsed
	c.notifyLocked()
	c.mu.Unlock()

	c.hist.Append(entry)
}

// HistoryPrevious recalls the next-older history entry into the buffer,
// capturing the draft on the first step.
func (c *Controller) HistoryPrevious() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sql, ok := c.nav.Previous(c.buffer); ok {
		c.setBufferLocked(sql)
		c.notifyLocked()
	}
}

// HistoryNext recalls the next-newer entry, or restores the draft when
// moving past the newest.
func (c *Controller) HistoryNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.nav.Browsing() {
		return
	}
	text, _ := c.nav.Next()
	c.setBufferLocked(text)
	c.notifyLocked()
}

// OpenSearch starts an incremental history search. The buffer is not
// touched until a match is accepted.
func (c *Controller) OpenSearch(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search.Open(q)
}

// SetSearchQuery updates the open search's query.
func (c *Controller) SetSearchQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search.SetQuery(q)
}

// SearchMatches returns the open search's matches, most-recent-first.
func (c *Controller) SearchMatches() []history.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search.Matches()
}

// SearchNext moves the search highlight one match older, wrapping.
func (c *Controller) SearchNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search.NextMatch()
}

// SearchPrev moves the search highlight one match newer, wrapping.
func (c *Controller) SearchPrev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search.PrevMatch()
}

// AcceptSearch inserts the highlighted match into the buffer and closes
// the search.
func (c *Controller) AcceptSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sql, ok := c.search.Accept(); ok {
		c.setBufferLocked(sql)
		c.nav.Reset()
		c.notifyLocked()
	}
}

// CancelSearch closes the search with no buffer change.
func (c *Controller) CancelSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search.Cancel()
}

func (c *Controller) setBufferLocked(text string) {
	c.buffer = text
	if c.phase == PhaseSucceeded || c.phase == PhaseFailed {
		c.phase = PhaseIdle
		c.result = nil
		c.errMsg = ""
	}
}

func (c *Controller) stateLocked() State {
	return State{
		Buffer:       c.buffer,
		Phase:        c.phase,
		Result:       c.result,
		ErrorMessage: c.errMsg,
		Elapsed:      c.elapsed,
	}
}

func (c *Controller) notifyLocked() {
	state := c.stateLocked()
	for _, ch := range c.subs {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
