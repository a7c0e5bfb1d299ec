package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMutatingVerbs(t *testing.T) {
	stmts := []string{
		"INSERT INTO users (name) VALUES ('a')",
		"update users set name = 'b'",
		"  DELETE FROM users",
		"\n\tALTER TABLE users ADD COLUMN age int",
		"CREATE TABLE t (id int)",
		"drop table users",
		"TRUNCATE users",
		"GRANT ALL ON users TO alice",
		"REVOKE ALL ON users FROM alice",
	}
	for _, sql := range stmts {
		assert.Equal(t, Unsafe, Classify(sql), "statement: %s", sql)
	}
}

func TestClassifyReadVerbs(t *testing.T) {
	stmts := []string{
		"SELECT * FROM users",
		"select 1",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"SHOW TABLES",
		"DESCRIBE users",
		"EXPLAIN SELECT * FROM users",
		"-- leading comment\nSELECT 1",
		"/* block\ncomment */ SELECT 1",
	}
	for _, sql := range stmts {
		assert.Equal(t, Safe, Classify(sql), "statement: %s", sql)
	}
}

func TestClassifyChainedStatements(t *testing.T) {
	assert.Equal(t, Unsafe, Classify("SELECT 1; DROP TABLE users"))
	assert.Equal(t, Unsafe, Classify("SELECT 1; DELETE FROM users;"))
	// A separator inside a string literal is not a statement boundary
	assert.Equal(t, Safe, Classify("SELECT '; DROP TABLE users' AS note"))
	// Multiple reads chain safely
	assert.Equal(t, Safe, Classify("SELECT 1; SELECT 2;"))
}

func TestClassifyAmbiguousInput(t *testing.T) {
	assert.Equal(t, Unsafe, Classify(""))
	assert.Equal(t, Unsafe, Classify("   "))
	assert.Equal(t, Unsafe, Classify("-- only a comment"))
	assert.Equal(t, Unsafe, Classify("FROBNICATE THE DATABASE"))
}

func TestSplitStatements(t *testing.T) {
	got := SplitStatements(`SELECT 'a;b'; SELECT "c;d"; SELECT 2`)
	assert.Equal(t, []string{`SELECT 'a;b'`, `SELECT "c;d"`, "SELECT 2"}, got)
}
