// Package registry persists resolved catalog matches in SQLite so a forced
// profile rebuild does not repeat searches already answered in earlier runs.
// A nil *Registry is a valid no-op handle: the pipeline degrades to pure
// remote lookups when the registry cannot be opened.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_matches (
	track_key    TEXT PRIMARY KEY,
	track_id     TEXT NOT NULL,
	artist_id    TEXT,
	artist_name  TEXT,
	matched_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// Mapping is one memoized library-track-to-catalog resolution.
type Mapping struct {
	TrackKey   string
	TrackID    string
	ArtistID   string
	ArtistName string
}

// Registry is a SQLite-backed match memo.
type Registry struct {
	db *sql.DB
}

// Key builds the lookup key from raw artist and title.
func Key(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
}

// Open creates (or opens) the registry database at path and ensures the
// schema exists. WAL mode keeps saves cheap during long profile builds.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Lookup returns the stored mapping for key, or (nil, nil) when absent.
func (r *Registry) Lookup(key string) (*Mapping, error) {
	if r == nil || key == "" {
		return nil, nil
	}

	m := Mapping{TrackKey: key}
	err := r.db.QueryRow(
		`SELECT track_id, COALESCE(artist_id, ''), COALESCE(artist_name, '')
		 FROM catalog_matches WHERE track_key = ?`, key,
	).Scan(&m.TrackID, &m.ArtistID, &m.ArtistName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry lookup: %w", err)
	}
	return &m, nil
}

// Store upserts a mapping. COALESCE keeps previously stored columns when the
// new mapping carries empty fields.
func (r *Registry) Store(m Mapping) error {
	if r == nil || m.TrackKey == "" || m.TrackID == "" {
		return nil
	}

	_, err := r.db.Exec(`
	INSERT INTO catalog_matches (track_key, track_id, artist_id, artist_name, matched_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(track_key) DO UPDATE SET
		track_id    = excluded.track_id,
		artist_id   = COALESCE(NULLIF(excluded.artist_id, ''), catalog_matches.artist_id),
		artist_name = COALESCE(NULLIF(excluded.artist_name, ''), catalog_matches.artist_name),
		matched_at  = CURRENT_TIMESTAMP;`,
		m.TrackKey, m.TrackID, m.ArtistID, m.ArtistName)
	if err != nil {
		return fmt.Errorf("registry store: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}
