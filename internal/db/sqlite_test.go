package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgwr/TableGlass-sub001/internal/query"
)

var artists = query.TableRef{Name: "artists"}

// openTestDriver connects to a throwaway SQLite file and seeds a small
// artists table.
func openTestDriver(t *testing.T) *SQLiteDriver {
	t.Helper()
	d := &SQLiteDriver{}
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, d.Connect(ConnectParams{Database: path}))
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE artists (
			id INTEGER NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			rating NUMERIC(3,1),
			active BOOLEAN NOT NULL DEFAULT 1
		)`,
		`INSERT INTO artists (id, name, rating, active) VALUES (1, 'AC/DC', 4.5, 1)`,
		`INSERT INTO artists (id, name, rating, active) VALUES (2, 'Accept', NULL, 0)`,
		`INSERT INTO artists (id, name, rating, active) VALUES (3, 'Aerosmith', 3.0, 1)`,
	}
	for _, s := range stmts {
		_, err := d.db.ExecContext(ctx, s)
		require.NoError(t, err)
	}
	return d
}

func TestSQLitePing(t *testing.T) {
	d := openTestDriver(t)
	assert.NoError(t, d.Ping(context.Background()))

	var unconnected SQLiteDriver
	assert.Error(t, unconnected.Ping(context.Background()))
}

func TestSQLiteExecuteSelect(t *testing.T) {
	d := openTestDriver(t)

	res, err := d.Execute(context.Background(), "SELECT id, name FROM artists ORDER BY id")
	require.NoError(t, err)
	assert.True(t, res.IsSelect)
	require.Equal(t, 3, res.RowCount)

	v, ok := res.Rows[0].Value("id")
	require.True(t, ok)
	assert.True(t, v.Equal(query.Int(1)))
	v, _ = res.Rows[0].Value("name")
	assert.Equal(t, "AC/DC", v.Display())
}

func TestSQLiteExecuteMutation(t *testing.T) {
	d := openTestDriver(t)

	res, err := d.Execute(context.Background(), "UPDATE artists SET rating = 5.0 WHERE id = 3")
	require.NoError(t, err)
	assert.False(t, res.IsSelect)
	assert.EqualValues(t, 1, res.AffectedRows)
}

func TestSQLiteExecuteError(t *testing.T) {
	d := openTestDriver(t)

	_, err := d.Execute(context.Background(), "SELECT nope FROM missing")
	require.Error(t, err)
	var qerr *QueryError
	assert.ErrorAs(t, err, &qerr)
}

func TestSQLiteTablesAndColumns(t *testing.T) {
	d := openTestDriver(t)
	ctx := context.Background()

	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "artists", tables[0].Name)

	cols, err := d.Columns(ctx, artists)
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, query.Integer, cols[0].Type.Class)
	assert.False(t, cols[0].Nullable)

	assert.Equal(t, query.Numeric, cols[2].Type.Class)
	assert.True(t, cols[2].Nullable)

	require.NotNil(t, cols[3].Default)
	assert.True(t, cols[3].Default.Equal(query.Bool(true)))
}

func TestSQLiteFetchPage(t *testing.T) {
	d := openTestDriver(t)
	ctx := context.Background()

	page, err := d.FetchPage(ctx, artists, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.True(t, page.HasMore)

	// Typed conversion: numeric comes back as a decimal, boolean as a bool.
	rating, _ := page.Rows[0].Value("rating")
	assert.True(t, rating.Equal(query.Decimal(decimal.RequireFromString("4.5"))))
	active, _ := page.Rows[1].Value("active")
	assert.True(t, active.Equal(query.Bool(false)))
	nullRating, _ := page.Rows[1].Value("rating")
	assert.True(t, nullRating.IsNull())

	page, err = d.FetchPage(ctx, artists, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.False(t, page.HasMore)
}

func TestSQLiteInsertRow(t *testing.T) {
	d := openTestDriver(t)
	ctx := context.Background()

	row, err := d.InsertRow(ctx, artists, map[string]query.Value{
		"id":     query.Int(4),
		"name":   query.String("Bowie"),
		"rating": query.Null(),
		"active": query.Bool(true),
	})
	require.NoError(t, err)

	name, _ := row.Value("name")
	assert.Equal(t, "Bowie", name.Display())
	active, _ := row.Value("active")
	assert.True(t, active.Equal(query.Bool(true)))

	res, err := d.Execute(ctx, "SELECT id FROM artists")
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowCount)
}

func TestSQLiteUpdateRow(t *testing.T) {
	d := openTestDriver(t)
	ctx := context.Background()

	page, err := d.FetchPage(ctx, artists, 0, 10)
	require.NoError(t, err)

	// Row 2 has a NULL rating; the identity predicate must match it.
	updated, err := d.UpdateRow(ctx, artists, page.Rows[1], map[string]query.Value{
		"rating": query.Decimal(decimal.RequireFromString("4.0")),
	})
	require.NoError(t, err)
	rating, _ := updated.Value("rating")
	assert.True(t, rating.Equal(query.Decimal(decimal.RequireFromString("4.0"))))
	name, _ := updated.Value("name")
	assert.Equal(t, "Accept", name.Display())
}

func TestSQLiteUpdateRowStale(t *testing.T) {
	d := openTestDriver(t)
	ctx := context.Background()

	page, err := d.FetchPage(ctx, artists, 0, 10)
	require.NoError(t, err)

	// Another session renames the row; the stale snapshot no longer matches.
	_, err = d.db.ExecContext(ctx, "UPDATE artists SET name = 'renamed' WHERE id = 1")
	require.NoError(t, err)

	_, err = d.UpdateRow(ctx, artists, page.Rows[0], map[string]query.Value{
		"rating": query.Int(5),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")
}

func TestSQLiteDeleteRow(t *testing.T) {
	d := openTestDriver(t)
	ctx := context.Background()

	page, err := d.FetchPage(ctx, artists, 0, 10)
	require.NoError(t, err)
	require.NoError(t, d.DeleteRow(ctx, artists, page.Rows[2]))

	res, err := d.Execute(ctx, "SELECT id FROM artists")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)

	// Deleting the same snapshot twice reports the row as gone.
	err = d.DeleteRow(ctx, artists, page.Rows[2])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")
}
