// Package store provides the versioned, atomically-written JSON file backing
// for the pipeline caches, plus the shutdown coordinator that flushes them on
// interrupt or normal exit.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// File is a single on-disk JSON document of state type S. Saves go through a
// temporary sibling file and an atomic rename, so a reader never observes a
// half-written document: an interrupted save leaves either the previous file
// or the fully written new one.
//
// State is exclusively owned by the cache holding the File; there is no
// locking because the pipeline is single-threaded (saves triggered from the
// shutdown path happen after the pipeline has stopped mutating).
type File[S any] struct {
	path    string
	version string
	fresh   func() S
	verOf   func(*S) string
	log     zerolog.Logger

	dirty bool

	// State is the live document. Mutators must call MarkDirty.
	State S
}

// NewFile creates the backing for path. fresh produces an empty state carrying
// the compiled-in version; verOf reads the version out of a loaded state.
// The state is loaded immediately: a missing file, a version mismatch or a
// deserialization failure all yield a fresh empty state, never an error:
// cache corruption must not abort the pipeline.
func NewFile[S any](path, version string, fresh func() S, verOf func(*S) string, log zerolog.Logger) *File[S] {
	f := &File[S]{
		path:    path,
		version: version,
		fresh:   fresh,
		verOf:   verOf,
		log:     log.With().Str("store", filepath.Base(path)).Logger(),
	}
	f.load()
	return f
}

func (f *File[S]) load() {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.log.Info().Msg("no existing store file, starting fresh")
		} else {
			f.log.Warn().Err(err).Msg("failed to read store file, starting fresh")
		}
		f.State = f.fresh()
		return
	}

	var state S
	if err := json.Unmarshal(raw, &state); err != nil {
		f.log.Warn().Err(err).Msg("store file corrupt, discarding")
		f.State = f.fresh()
		return
	}

	if got := f.verOf(&state); got != f.version {
		// No partial migration: a version bump discards the whole store.
		f.log.Warn().Str("got", got).Str("want", f.version).Msg("store version mismatch, discarding")
		f.State = f.fresh()
		return
	}

	f.State = state
}

// Path returns the on-disk location of the document.
func (f *File[S]) Path() string { return f.path }

// MarkDirty records that State has unsaved changes.
func (f *File[S]) MarkDirty() { f.dirty = true }

// Dirty reports whether State has unsaved changes.
func (f *File[S]) Dirty() bool { return f.dirty }

// Save persists State if dirty or forced. On any write failure the temporary
// file is removed and the prior on-disk state stays intact.
func (f *File[S]) Save(force bool) error {
	if !f.dirty && !force {
		return nil
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	raw, err := json.MarshalIndent(f.State, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store file: %w", err)
	}

	f.dirty = false
	return nil
}

// Flush satisfies the shutdown coordinator: a best-effort save of pending
// state. Idempotent: a second flush with nothing dirty is a no-op.
func (f *File[S]) Flush() error { return f.Save(false) }
