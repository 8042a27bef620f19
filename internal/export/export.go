// Package export takes a one-shot, one-way snapshot of a Store's current
// resident window into a DuckDB file for offline analysis. It never reads
// back into the Store, so it does not reintroduce durability to the core.
package export

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/store"
)

//go:embed schema/*.sql
var schema embed.FS

// Exporter snapshots a Store to a DuckDB file on demand.
type Exporter struct {
	s *store.Store
}

// New creates an Exporter over s.
func New(s *store.Store) *Exporter {
	return &Exporter{s: s}
}

// Snapshot opens (creating if necessary) a DuckDB database at path, applies
// the embedded schema, and writes every entry currently resident in the
// Store's [minSeq, nextSeq) window as of the moment Snapshot is called.
// Each entry is copied out of the Store under its own brief lock via
// Store.Range, so a slow export never blocks concurrent Push calls for
// longer than a single entry copy.
func (x *Exporter) Snapshot(path string) (int, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return 0, fmt.Errorf("export: mkdir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return 0, fmt.Errorf("export: open: %w", err)
	}
	defer db.Close()

	if err := applySchema(db); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("export: begin: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO log_entries (seq, ts, level, feed_kind, producer, message, fields) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("export: prepare: %w", err)
	}
	defer stmt.Close()

	minSeq, nextSeq := x.s.Bounds()
	count := 0
	var insertErr error
	x.s.Range(minSeq, nextSeq, store.Filter{}, func(e model.LogEntry) bool {
		fieldsJSON, err := fieldsToJSON(e.Fields)
		if err != nil {
			insertErr = err
			return false
		}
		if _, err := stmt.Exec(e.Seq, e.Timestamp, e.Level.String(), e.FeedKind.String(), e.Producer, e.Message, fieldsJSON); err != nil {
			insertErr = err
			return false
		}
		count++
		return true
	})
	if insertErr != nil {
		tx.Rollback()
		return 0, fmt.Errorf("export: insert: %w", insertErr)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("export: commit: %w", err)
	}
	return count, nil
}

func applySchema(db *sql.DB) error {
	entries, err := schema.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("export: reading embedded schema: %w", err)
	}
	for _, e := range entries {
		data, err := schema.ReadFile("schema/" + e.Name())
		if err != nil {
			return fmt.Errorf("export: reading schema %s: %w", e.Name(), err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("export: applying schema %s: %w", e.Name(), err)
		}
	}
	return nil
}

func fieldsToJSON(f model.Fields) (string, error) {
	m := make(map[string]string, f.Len())
	f.Each(func(k, v string) { m[k] = v })
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
