// internal/history/persist.go
package history

import (
	"database/sql"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3"
)

// SQLitePersistence stores history entries in a SQLite database under
// the XDG data directory. It implements Persistence.
type SQLitePersistence struct {
	db *sql.DB
}

// NewSQLitePersistence opens the default per-user history database.
func NewSQLitePersistence() (*SQLitePersistence, error) {
	dbPath, err := xdg.DataFile("tableglass/history.db")
	if err != nil {
		return nil, err
	}
	return OpenSQLitePersistence(dbPath)
}

// OpenSQLitePersistence opens a history database at an explicit path.
func OpenSQLitePersistence(path string) (*SQLitePersistence, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			sql_text TEXT NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_history_executed_at ON history(executed_at);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLitePersistence{db: db}, nil
}

// Close closes the database connection.
func (p *SQLitePersistence) Close() error {
	return p.db.Close()
}

// Load returns all persisted entries, oldest first.
func (p *SQLitePersistence) Load() ([]Entry, error) {
	rows, err := p.db.Query(`
		SELECT id, sql_text, executed_at, duration_ms, row_count, status, error_message
		FROM history
		ORDER BY executed_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.SQL, &e.ExecutedAt, &e.DurationMs,
			&e.RowCount, &e.Status, &errMsg); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			e.ErrorMessage = errMsg.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the persisted set with the given entries. The store caps
// the set at its capacity, so a full rewrite stays small.
func (p *SQLitePersistence) Save(entries []Entry) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM history"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO history (id, sql_text, executed_at, duration_ms, row_count, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.ID, e.SQL, e.ExecutedAt, e.DurationMs,
			e.RowCount, e.Status, e.ErrorMessage); err != nil {
			return err
		}
	}

	return tx.Commit()
}
