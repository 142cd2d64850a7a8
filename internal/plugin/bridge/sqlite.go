package bridge

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sunstory/openusage/internal/metrics"
)

// dotCommandGuard rejects any SQL whose trimmed line begins with ".". Per
// spec.md §9, this is the sole SQL sanitization: plugins are trusted, so it
// guards against copy/pasted shell transcripts, not a security boundary.
func dotCommandGuard(query string) error {
	for _, line := range strings.Split(query, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), ".") {
			return fmt.Errorf("dot-commands are not permitted in host.sqlite")
		}
	}
	return nil
}

// SQLiteQuery implements host.sqlite.query: opens read-only, falling back to
// an immutable URI open when the direct open fails (tolerates WAL/SHM locks
// left over after the host OS slept), then returns rows as a JSON array of
// column-keyed objects.
func (b *Bridge) SQLiteQuery(dbPath, query string) (string, error) {
	metrics.BridgeCall(b.pluginID, "sqlite.query")
	if err := dotCommandGuard(query); err != nil {
		return "", err
	}

	db, err := openReadOnly(dbPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLiteValue(vals[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration: %w", err)
	}

	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	return string(out), nil
}

// SQLiteExec implements host.sqlite.exec: opens read-write with create.
func (b *Bridge) SQLiteExec(dbPath, query string) error {
	metrics.BridgeCall(b.pluginID, "sqlite.exec")
	if err := dotCommandGuard(query); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

func openReadOnly(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err == nil {
		if pingErr := db.Ping(); pingErr == nil {
			return db, nil
		}
		db.Close()
	}
	return sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&immutable=1")
}

// normalizeSQLiteValue converts a driver-returned value to something the
// JSON encoder can render per spec.md §4.4: BLOBs base64, NaN/Inf -> null.
func normalizeSQLiteValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return x
	}
}
