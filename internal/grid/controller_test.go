package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// mockDataService is a function-field fake; unset fields fail the call.
type mockDataService struct {
	mu         sync.Mutex
	fetchCalls int
	fetchPage  func(table query.TableRef, pageIndex, pageSize int) (*Page, error)
	insertRow  func(table query.TableRef, values map[string]query.Value) (query.Row, error)
	updateRow  func(table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error)
	deleteRow  func(table query.TableRef, existing query.Row) error
}

func (m *mockDataService) FetchPage(_ context.Context, table query.TableRef, pageIndex, pageSize int) (*Page, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	if m.fetchPage == nil {
		return nil, errors.New("unexpected FetchPage")
	}
	return m.fetchPage(table, pageIndex, pageSize)
}

func (m *mockDataService) InsertRow(_ context.Context, table query.TableRef, values map[string]query.Value) (query.Row, error) {
	if m.insertRow == nil {
		return query.Row{}, errors.New("unexpected InsertRow")
	}
	return m.insertRow(table, values)
}

func (m *mockDataService) UpdateRow(_ context.Context, table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error) {
	if m.updateRow == nil {
		return query.Row{}, errors.New("unexpected UpdateRow")
	}
	return m.updateRow(table, existing, changed)
}

func (m *mockDataService) DeleteRow(_ context.Context, table query.TableRef, existing query.Row) error {
	if m.deleteRow == nil {
		return errors.New("unexpected DeleteRow")
	}
	return m.deleteRow(table, existing)
}

func (m *mockDataService) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

var artistColumns = []query.ColumnSpec{
	{Name: "id", Type: query.DataType{Class: query.Integer}, Nullable: false},
	{Name: "name", Type: query.DataType{Class: query.Text}, Nullable: false},
}

func artistRow(id int64, name string) query.Row {
	return query.NewRow([]string{"id", "name"}, map[string]query.Value{
		"id":   query.Int(id),
		"name": query.String(name),
	})
}

// artistService pages three artists two at a time.
func artistService() *mockDataService {
	all := []query.Row{
		artistRow(1, "AC/DC"),
		artistRow(2, "Accept"),
		artistRow(3, "Aerosmith"),
	}
	return &mockDataService{
		fetchPage: func(_ query.TableRef, pageIndex, pageSize int) (*Page, error) {
			start := pageIndex * pageSize
			if start >= len(all) {
				return &Page{Columns: artistColumns, HasMore: false}, nil
			}
			end := start + pageSize
			if end > len(all) {
				end = len(all)
			}
			return &Page{
				Columns: artistColumns,
				Rows:    all[start:end],
				HasMore: end < len(all),
			}, nil
		},
	}
}

var artists = query.TableRef{Schema: "public", Name: "artists"}

func waitFor(t *testing.T, cond func(State) bool, c *Controller) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state := c.Snapshot()
		if cond(state) {
			return state
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never met")
	return State{}
}

func settled(s State) bool {
	return s.Phase == PhaseReady && !s.IsLoadingPage && !s.IsPerformingMutation
}

func TestLoadPagesAppend(t *testing.T) {
	svc := artistService()
	c := NewController(svc, 2)

	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)
	assert.True(t, state.HasMore)

	c.LoadNextPage()
	state = waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 3 }, c)
	assert.False(t, state.HasMore)
	assert.Equal(t, "Aerosmith", state.Rows[2].Cells["name"].Text)

	// The last page has been seen; a further load never calls the service.
	calls := svc.fetchCount()
	c.LoadNextPage()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, svc.fetchCount())
}

func TestLoadIfNeededIsIdempotent(t *testing.T) {
	svc := artistService()
	c := NewController(svc, 2)

	c.LoadIfNeeded(artists, artistColumns)
	waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	c.LoadIfNeeded(artists, artistColumns)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, svc.fetchCount())
	assert.Len(t, c.Snapshot().Rows, 2)
}

func TestSwitchingTablesDiscardsSession(t *testing.T) {
	svc := artistService()
	c := NewController(svc, 2)

	c.LoadIfNeeded(artists, artistColumns)
	waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)
	c.UpdateCell(c.Snapshot().Rows[0].ID, "name", "edited")

	albums := query.TableRef{Schema: "public", Name: "albums"}
	c.LoadIfNeeded(albums, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && s.Table == albums }, c)
	for _, r := range state.Rows {
		assert.False(t, r.HasChanges())
	}
}

func TestFetchFailureKeepsCursor(t *testing.T) {
	var fail bool
	svc := artistService()
	inner := svc.fetchPage
	svc.fetchPage = func(table query.TableRef, pageIndex, pageSize int) (*Page, error) {
		if fail {
			return nil, errors.New("connection reset")
		}
		return inner(table, pageIndex, pageSize)
	}
	c := NewController(svc, 2)

	c.LoadIfNeeded(artists, artistColumns)
	waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	fail = true
	c.LoadNextPage()
	state := waitFor(t, func(s State) bool { return s.BannerError != "" }, c)
	assert.Equal(t, "connection reset", state.BannerError)
	assert.Len(t, state.Rows, 2)

	// Retrying the same page succeeds and clears the banner.
	fail = false
	c.LoadNextPage()
	state = waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 3 }, c)
	assert.Empty(t, state.BannerError)
}

func TestPrefetchTriggersNearEnd(t *testing.T) {
	svc := artistService()
	c := NewController(svc, 2)

	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	// Page size 2 clamps the trailing window to 2 rows, so the first
	// loaded row already sits inside it.
	c.PrefetchNextPageIfNeeded(state.Rows[0].ID)
	waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 3 }, c)

	// No more pages: prefetch becomes a no-op.
	calls := svc.fetchCount()
	c.PrefetchNextPageIfNeeded(state.Rows[0].ID)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, svc.fetchCount())
}

func TestAddRowSeededFromDefaults(t *testing.T) {
	active := query.Bool(true)
	cols := append(append([]query.ColumnSpec(nil), artistColumns...), query.ColumnSpec{
		Name:     "active",
		Type:     query.DataType{Class: query.Boolean},
		Nullable: false,
		Default:  &active,
	})
	svc := artistService()
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, cols)
	waitFor(t, func(s State) bool { return settled(s) }, c)

	id := c.AddRow()
	state := c.Snapshot()
	require.Equal(t, id, state.Rows[0].ID)
	assert.True(t, state.Rows[0].IsNew)
	assert.Equal(t, "true", state.Rows[0].Cells["active"].Text)
	assert.Equal(t, map[string]bool{id: true}, state.Selection)
}

func TestCommitNewRowValidationNeverCallsService(t *testing.T) {
	svc := artistService()
	inserted := false
	svc.insertRow = func(query.TableRef, map[string]query.Value) (query.Row, error) {
		inserted = true
		return query.Row{}, nil
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	waitFor(t, func(s State) bool { return settled(s) }, c)

	id := c.AddRow()
	c.UpdateCell(id, "id", "7")
	// name left empty: required, no default

	err := c.CommitRow(id)
	var verr *query.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Column)
	assert.False(t, inserted)

	state := c.Snapshot()
	assert.NotEmpty(t, state.Rows[0].LastError)
}

func TestCommitNewRowInsertSuccess(t *testing.T) {
	svc := artistService()
	svc.insertRow = func(_ query.TableRef, values map[string]query.Value) (query.Row, error) {
		assert.True(t, values["id"].Equal(query.Int(7)))
		assert.True(t, values["name"].Equal(query.String("Bowie")))
		return artistRow(7, "Bowie"), nil
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	waitFor(t, func(s State) bool { return settled(s) }, c)

	id := c.AddRow()
	c.UpdateCell(id, "id", "7")
	c.UpdateCell(id, "name", "Bowie")
	require.NoError(t, c.CommitRow(id))

	state := waitFor(t, func(s State) bool {
		return settled(s) && len(s.Rows) == 3 && !s.Rows[0].IsNew
	}, c)
	// The handle survives the save; the row now mirrors the persisted data.
	assert.Equal(t, id, state.Rows[0].ID)
	assert.False(t, state.Rows[0].HasChanges())
	assert.Equal(t, "Bowie", state.Rows[0].Cells["name"].Text)
	assert.Equal(t, map[string]bool{id: true}, state.Selection)
}

func TestCommitExistingRowSendsOnlyChanges(t *testing.T) {
	svc := artistService()
	var got map[string]query.Value
	svc.updateRow = func(_ query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error) {
		got = changed
		return artistRow(1, "AC/DC (remastered)"), nil
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	id := state.Rows[0].ID
	c.UpdateCell(id, "name", "AC/DC (remastered)")
	require.NoError(t, c.CommitRow(id))
	waitFor(t, func(s State) bool { return settled(s) && !s.Rows[0].HasChanges() }, c)

	require.Len(t, got, 1)
	assert.True(t, got["name"].Equal(query.String("AC/DC (remastered)")))
}

func TestCommitUnchangedRowIsNoChanges(t *testing.T) {
	svc := artistService()
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	assert.ErrorIs(t, c.CommitRow(state.Rows[0].ID), ErrNoChanges)
}

func TestCommitFailureKeepsEditedText(t *testing.T) {
	svc := artistService()
	svc.updateRow = func(query.TableRef, query.Row, map[string]query.Value) (query.Row, error) {
		return query.Row{}, errors.New("value too long for type character varying(10)")
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	id := state.Rows[0].ID
	c.UpdateCell(id, "name", "a very long name indeed")
	require.NoError(t, c.CommitRow(id))

	state = waitFor(t, func(s State) bool { return settled(s) && s.Rows[0].LastError != "" }, c)
	assert.Contains(t, state.Rows[0].LastError, "value too long")
	assert.Equal(t, "a very long name indeed", state.Rows[0].Cells["name"].Text)
	assert.True(t, state.Rows[0].HasChanges())
}

func TestCommitWhileSavingIsRejected(t *testing.T) {
	release := make(chan struct{})
	svc := artistService()
	svc.updateRow = func(query.TableRef, query.Row, map[string]query.Value) (query.Row, error) {
		<-release
		return artistRow(1, "renamed"), nil
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	id := state.Rows[0].ID
	c.UpdateCell(id, "name", "renamed")
	require.NoError(t, c.CommitRow(id))
	assert.ErrorIs(t, c.CommitRow(id), ErrSaveInFlight)

	close(release)
	waitFor(t, func(s State) bool { return settled(s) && !s.Rows[0].IsSaving }, c)
}

func TestDeleteSelectedRowsPartialFailure(t *testing.T) {
	svc := artistService()
	svc.deleteRow = func(_ query.TableRef, existing query.Row) error {
		if v, _ := existing.Value("id"); v.Equal(query.Int(2)) {
			return fmt.Errorf("update or delete on table %q violates foreign key constraint", "artists")
		}
		return nil
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	c.SetRowSelected(state.Rows[0].ID, true)
	c.SetRowSelected(state.Rows[1].ID, true)
	c.DeleteSelectedRows()

	state = waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 1 }, c)
	assert.Contains(t, state.BannerError, "foreign key constraint")
	assert.Equal(t, "Accept", state.Rows[0].Cells["name"].Text)
	assert.True(t, state.Selection[state.Rows[0].ID])
}

func TestDeleteNewRowSkipsService(t *testing.T) {
	svc := artistService()
	deleted := false
	svc.deleteRow = func(query.TableRef, query.Row) error {
		deleted = true
		return nil
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)
	waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)

	c.AddRow()
	c.DeleteSelectedRows()

	state := waitFor(t, func(s State) bool { return settled(s) && len(s.Rows) == 2 }, c)
	assert.False(t, deleted)
	assert.Empty(t, state.Selection)
}

func TestCloseDiscardsInFlightFetch(t *testing.T) {
	release := make(chan struct{})
	svc := &mockDataService{
		fetchPage: func(query.TableRef, int, int) (*Page, error) {
			<-release
			return &Page{Columns: artistColumns, Rows: []query.Row{artistRow(1, "AC/DC")}}, nil
		},
	}
	c := NewController(svc, 2)
	c.LoadIfNeeded(artists, artistColumns)

	c.Close()
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.Snapshot().Rows)
}
