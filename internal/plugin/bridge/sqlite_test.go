package bridge

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE sessions (id INTEGER PRIMARY KEY, label TEXT, tokens REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sessions (label, tokens) VALUES ('a', 100.5), ('b', 200.0)`)
	require.NoError(t, err)
	return path
}

func TestSQLiteQuery_ReturnsJSONRows(t *testing.T) {
	b := newTestBridge(t, nil)
	path := seedDB(t)

	out, err := b.SQLiteQuery(path, "SELECT label, tokens FROM sessions ORDER BY id")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"label":"a","tokens":100.5},{"label":"b","tokens":200.0}]`, out)
}

func TestSQLiteQuery_RejectsDotCommand(t *testing.T) {
	b := newTestBridge(t, nil)
	path := seedDB(t)

	_, err := b.SQLiteQuery(path, ".dump")
	assert.Error(t, err)
}

func TestSQLiteExec_RejectsDotCommand(t *testing.T) {
	b := newTestBridge(t, nil)
	path := seedDB(t)

	err := b.SQLiteExec(path, ".schema")
	assert.Error(t, err)
}

func TestSQLiteExec_RunsStatement(t *testing.T) {
	b := newTestBridge(t, nil)
	path := seedDB(t)

	err := b.SQLiteExec(path, "UPDATE sessions SET tokens = 0 WHERE label = 'a'")
	require.NoError(t, err)

	out, err := b.SQLiteQuery(path, "SELECT tokens FROM sessions WHERE label = 'a'")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"tokens":0}]`, out)
}
