// internal/grid/controller.go
package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 50

// Page is one fetched page of table rows.
type Page struct {
	Columns []query.ColumnSpec
	Rows    []query.Row
	HasMore bool
}

// TableDataService is the injected collaborator for paged reads and
// row-level mutations. All methods fail with a descriptive error on
// constraint violation, connectivity loss or row-not-found.
type TableDataService interface {
	FetchPage(ctx context.Context, table query.TableRef, pageIndex, pageSize int) (*Page, error)
	InsertRow(ctx context.Context, table query.TableRef, values map[string]query.Value) (query.Row, error)
	UpdateRow(ctx context.Context, table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error)
	DeleteRow(ctx context.Context, table query.TableRef, existing query.Row) error
}

// Phase is the lifecycle state of a table editing session.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoadingFirstPage
	PhaseReady
)

// Errors CommitRow reports synchronously, before any service call.
var (
	ErrNoChanges    = errors.New("no changes to save")
	ErrSaveInFlight = errors.New("a save is already in progress for this row")
)

// State is an immutable snapshot of a Controller.
type State struct {
	Table                query.TableRef
	Columns              []query.ColumnSpec
	Rows                 []Row
	Selection            map[string]bool
	Phase                Phase
	HasMore              bool
	IsLoadingPage        bool
	IsPerformingMutation bool
	BannerError          string
}

// Controller owns a paged, mutable view of one table's rows. Switching
// tables discards all unsaved edits; there is no cross-table undo.
type Controller struct {
	mu       sync.Mutex
	svc      TableDataService
	pageSize int

	table       query.TableRef
	columns     []query.ColumnSpec
	rows        []Row
	selection   map[string]bool
	pageIndex   int
	hasMore     bool
	fetchedOnce bool

	isLoadingPage bool
	mutations     int
	bannerError   string

	gen    uint64
	closed bool
	subs   []chan State
}

// NewController creates a controller for the given service and page size
// (DefaultPageSize when pageSize <= 0).
func NewController(svc TableDataService, pageSize int) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller{
		svc:       svc,
		pageSize:  pageSize,
		selection: make(map[string]bool),
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

// LoadIfNeeded starts a session for the table. A changed table identity
// discards the previous session; re-entry with rows already loaded is a
// no-op.
func (c *Controller) LoadIfNeeded(table query.TableRef, columns []query.ColumnSpec) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.table == table && len(c.rows) > 0 {
		c.mu.Unlock()
		return
	}
	if c.table != table {
		c.gen++
		c.table = table
		c.columns = append([]query.ColumnSpec(nil), columns...)
		c.rows = nil
		c.selection = make(map[string]bool)
		c.pageIndex = 0
		c.hasMore = false
		c.fetchedOnce = false
		c.isLoadingPage = false
		c.bannerError = ""
		c.notifyLocked()
	}
	c.mu.Unlock()

	c.LoadNextPage()
}

// LoadNextPage fetches the next page and appends its rows. No-op while a
// fetch is in flight or once the last page has been seen.
func (c *Controller) LoadNextPage() {
	c.mu.Lock()
	if c.closed || c.isLoadingPage || (c.fetchedOnce && !c.hasMore) {
		c.mu.Unlock()
		return
	}
	c.isLoadingPage = true
	gen := c.gen
	table := c.table
	pageIndex := c.pageIndex
	c.notifyLocked()
	c.mu.Unlock()

	go func() {
		page, err := c.svc.FetchPage(context.Background(), table, pageIndex, c.pageSize)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.gen {
			return
		}
		c.isLoadingPage = false
		if err != nil {
			// Page cursor unchanged, safe to retry.
			c.bannerError = err.Error()
			c.notifyLocked()
			return
		}
		if len(page.Columns) > 0 {
			c.columns = append([]query.ColumnSpec(nil), page.Columns...)
		}
		for _, r := range page.Rows {
			c.rows = append(c.rows, rowFromPersisted("", c.columns, r))
		}
		c.hasMore = page.HasMore
		c.pageIndex++
		c.fetchedOnce = true
		c.bannerError = ""
		c.notifyLocked()
	}()
}

// PrefetchNextPageIfNeeded triggers LoadNextPage when the anchor row sits
// within the trailing window of the loaded set and more pages exist.
func (c *Controller) PrefetchNextPageIfNeeded(anchorRowID string) {
	c.mu.Lock()
	if c.closed || c.isLoadingPage || !c.hasMore {
		c.mu.Unlock()
		return
	}
	window := c.pageSize / 4
	if window > 10 {
		window = 10
	}
	if window < 2 {
		window = 2
	}
	idx := c.indexOfLocked(anchorRowID)
	trigger := idx >= 0 && idx >= len(c.rows)-window
	c.mu.Unlock()

	if trigger {
		c.LoadNextPage()
	}
}

// AddRow inserts a new row at the front, cells seeded from column
// defaults, and makes it the sole selection.
func (c *Controller) AddRow() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ""
	}
	row := blankRow(c.columns)
	c.rows = append([]Row{row}, c.rows...)
	c.selection = map[string]bool{row.ID: true}
	c.notifyLocked()
	return row.ID
}

// UpdateCell replaces exactly one cell's text. No validation happens at
// keystroke time.
func (c *Controller) UpdateCell(rowID, column, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexOfLocked(rowID)
	if idx < 0 {
		return
	}
	cell, ok := c.rows[idx].Cells[column]
	if !ok {
		return
	}
	cell.Text = text
	c.rows[idx].Cells[column] = cell
	c.notifyLocked()
}

// SetRowSelected adds or removes a row from the selection.
func (c *Controller) SetRowSelected(rowID string, selected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOfLocked(rowID) < 0 {
		return
	}
	if selected {
		c.selection[rowID] = true
	} else {
		delete(c.selection, rowID)
	}
	c.notifyLocked()
}

// DismissBanner clears the sticky page-fetch error.
func (c *Controller) DismissBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bannerError = ""
	c.notifyLocked()
}

// CommitRow validates, coerces and saves one row. Validation errors and
// the no-changes case resolve locally and synchronously; the service
// call itself is asynchronous, with the outcome surfaced on the row.
// A row already saving rejects a second commit until resolved.
func (c *Controller) CommitRow(rowID string) error {
	c.mu.Lock()
	idx := c.indexOfLocked(rowID)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("unknown row: %s", rowID)
	}
	row := c.rows[idx]
	if row.IsSaving {
		c.mu.Unlock()
		return ErrSaveInFlight
	}

	values := make(map[string]query.Value)
	for _, col := range c.columns {
		cell, ok := row.Cells[col.Name]
		if !ok {
			continue
		}
		if !row.IsNew && !cell.IsModified() {
			continue
		}
		v, err := query.Coerce(cell.Text, col)
		if err != nil {
			c.rows[idx].LastError = err.Error()
			c.notifyLocked()
			c.mu.Unlock()
			return err
		}
		values[col.Name] = v
	}
	if !row.IsNew && len(values) == 0 {
		c.mu.Unlock()
		return ErrNoChanges
	}

	c.rows[idx].IsSaving = true
	c.rows[idx].LastError = ""
	c.mutations++
	gen := c.gen
	table := c.table
	isNew := row.IsNew
	source := row.Source
	c.notifyLocked()
	c.mu.Unlock()

	go func() {
		var persisted query.Row
		var err error
		if isNew {
			persisted, err = c.svc.InsertRow(context.Background(), table, values)
		} else {
			persisted, err = c.svc.UpdateRow(context.Background(), table, source, values)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.mutations--
		if c.closed || gen != c.gen {
			return
		}
		i := c.indexOfLocked(rowID)
		if i < 0 {
			return
		}
		if err != nil {
			// User text stays intact for another attempt.
			c.rows[i].IsSaving = false
			c.rows[i].LastError = err.Error()
			c.notifyLocked()
			return
		}
		c.rows[i] = rowFromPersisted(rowID, c.columns, persisted)
		c.selection = map[string]bool{rowID: true}
		c.notifyLocked()
	}()

	return nil
}

// DeleteSelectedRows deletes every selected row independently. Rows that
// succeed leave the working set and the selection; failures stay put and
// their messages aggregate into the banner error.
func (c *Controller) DeleteSelectedRows() {
	c.mu.Lock()
	if c.closed || len(c.selection) == 0 {
		c.mu.Unlock()
		return
	}
	type target struct {
		id     string
		source query.Row
		isNew  bool
	}
	var targets []target
	for _, r := range c.rows {
		if c.selection[r.ID] {
			targets = append(targets, target{id: r.ID, source: r.Source, isNew: r.IsNew})
		}
	}
	c.mutations++
	gen := c.gen
	table := c.table
	c.notifyLocked()
	c.mu.Unlock()

	go func() {
		removed := make(map[string]bool)
		var failures []string
		for _, t := range targets {
			if t.isNew {
				// Never persisted; nothing to delete server-side.
				removed[t.id] = true
				continue
			}
			if err := c.svc.DeleteRow(context.Background(), table, t.source); err != nil {
				failures = append(failures, err.Error())
				continue
			}
			removed[t.id] = true
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.mutations--
		if c.closed || gen != c.gen {
			return
		}
		if len(removed) > 0 {
			kept := c.rows[:0]
			for _, r := range c.rows {
				if !removed[r.ID] {
					kept = append(kept, r)
				}
			}
			c.rows = kept
			for id := range removed {
				delete(c.selection, id)
			}
		}
		if len(failures) > 0 {
			c.bannerError = strings.Join(failures, "; ")
		}
		c.notifyLocked()
	}()
}

// Close tears the session down; pending fetches and mutations are
// discarded rather than applied.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
}

func (c *Controller) indexOfLocked(rowID string) int {
	for i := range c.rows {
		if c.rows[i].ID == rowID {
			return i
		}
	}
	return -1
}

func (c *Controller) stateLocked() State {
	rows := make([]Row, len(c.rows))
	for i, r := range c.rows {
		rows[i] = cloneRow(r)
	}
	sel := make(map[string]bool, len(c.selection))
	for k, v := range c.selection {
		sel[k] = v
	}
	phase := PhaseReady
	if !c.fetchedOnce {
		phase = PhaseEmpty
		if c.isLoadingPage {
			phase = PhaseLoadingFirstPage
		}
	}
	return State{
		Table:                c.table,
		Columns:              append([]query.ColumnSpec(nil), c.columns...),
		Rows:                 rows,
		Selection:            sel,
		Phase:                phase,
		HasMore:              c.hasMore,
		IsLoadingPage:        c.isLoadingPage,
		IsPerformingMutation: c.mutations > 0,
		BannerError:          c.bannerError,
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
