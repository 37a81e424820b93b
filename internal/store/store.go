// Package store persists built catalogs in a local SQLite database, so
// searching never has to re-crawl the mirror.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ferrule/hoard/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalogs (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	root_url TEXT NOT NULL,
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	url TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	kind INTEGER NOT NULL,
	size INTEGER NOT NULL,
	last_modified INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS subtrees (
	url TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS failures (
	url TEXT PRIMARY KEY,
	error TEXT NOT NULL
);
`

var ErrNoCatalog = errors.New("no catalog stored yet, run an index first")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored catalog with the given version, atomically.
func (s *Store) Save(cat *catalog.Catalog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"catalogs", "entries", "subtrees", "failures"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("INSERT INTO catalogs (id, root_url, version) VALUES (1, ?, ?)", cat.RootURL, cat.Version); err != nil {
		return err
	}

	insertEntry, err := tx.Prepare("INSERT OR REPLACE INTO entries (url, path, name, kind, size, last_modified) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer insertEntry.Close()
	for _, e := range cat.Entries {
		var mtime int64
		if !e.LastModified.IsZero() {
			mtime = e.LastModified.Unix()
		}
		if _, err := insertEntry.Exec(e.URL, e.RelPath(), e.Name, int(e.Kind), e.Size, mtime); err != nil {
			return err
		}
	}

	for url, fetched := range cat.FetchedAt {
		if _, err := tx.Exec("INSERT OR REPLACE INTO subtrees (url, fetched_at) VALUES (?, ?)", url, fetched.Unix()); err != nil {
			return err
		}
	}
	for _, f := range cat.Failed {
		if _, err := tx.Exec("INSERT OR REPLACE INTO failures (url, error) VALUES (?, ?)", f.URL, f.Err.Error()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load reads the stored catalog back. Directory entries were persisted
// alongside files, so the loaded tree satisfies the same connectivity
// invariant as a freshly built one.
func (s *Store) Load() (*catalog.Catalog, error) {
	var rootURL string
	var version uint64
	err := s.db.QueryRow("SELECT root_url, version FROM catalogs WHERE id = 1").Scan(&rootURL, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCatalog
	}
	if err != nil {
		return nil, err
	}
	cat := catalog.New(rootURL)
	cat.Version = version

	rows, err := s.db.Query("SELECT url, path, name, kind, size, last_modified FROM entries")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var url, relPath, name string
		var kind int
		var size, mtime int64
		if err := rows.Scan(&url, &relPath, &name, &kind, &size, &mtime); err != nil {
			return nil, err
		}
		entry := catalog.Entry{
			Path: strings.Split(relPath, "/"),
			Name: name,
			Kind: catalog.Kind(kind),
			URL:  url,
			Size: size,
		}
		if mtime > 0 {
			entry.LastModified = time.Unix(mtime, 0).UTC()
		}
		cat.Entries[url] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := s.db.Query("SELECT url, fetched_at FROM subtrees")
	if err != nil {
		return nil, err
	}
	defer subRows.Close()
	for subRows.Next() {
		var url string
		var fetched int64
		if err := subRows.Scan(&url, &fetched); err != nil {
			return nil, err
		}
		cat.FetchedAt[url] = time.Unix(fetched, 0).UTC()
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}

	failRows, err := s.db.Query("SELECT url, error FROM failures")
	if err != nil {
		return nil, err
	}
	defer failRows.Close()
	for failRows.Next() {
		var url, msg string
		if err := failRows.Scan(&url, &msg); err != nil {
			return nil, err
		}
		cat.Failed = append(cat.Failed, catalog.SubtreeError{URL: url, Err: errors.New(msg)})
	}
	return cat, failRows.Err()
}
