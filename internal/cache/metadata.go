// Package cache holds the pipeline's two persistent caches: per-file track
// metadata and the library taste profile.
package cache

import (
	"time"

	"github.com/rs/zerolog"

	"tunescout/internal/models"
	"tunescout/internal/store"
)

const metadataVersion = "1.0"

// DefaultAutoSaveInterval bounds data loss on interruption without paying a
// disk write per entry.
const DefaultAutoSaveInterval = 50

// metadataState is the on-disk schema of the metadata cache.
type metadataState struct {
	Version     string                   `json:"version"`
	LastUpdated time.Time                `json:"last_updated"`
	Tracks      map[string]MetadataEntry `json:"tracks"`
}

// MetadataEntry is one memoized extraction result, keyed by the remote file id.
type MetadataEntry struct {
	FileID   string    `json:"file_id"`
	FileName string    `json:"file_name"`
	FilePath string    `json:"file_path"`
	FileSize int64     `json:"file_size,omitempty"`
	CachedAt time.Time `json:"cached_at"`
	Metadata TrackMeta `json:"metadata"`
}

// TrackMeta is the TrackRecord subset worth persisting per file.
type TrackMeta struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// MetadataCache memoizes per-file metadata extraction so unchanged files are
// never re-downloaded or re-parsed. Counters are exclusively owned by the
// instance; the pipeline is single-threaded.
type MetadataCache struct {
	file             *store.File[metadataState]
	autoSaveInterval int
	log              zerolog.Logger

	hits       int
	misses     int
	newEntries int
}

// MetadataStats is the observability snapshot.
type MetadataStats struct {
	TotalCached    int
	Hits           int
	Misses         int
	HitRate        float64
	UnsavedEntries int
}

// NewMetadataCache loads (or freshly creates) the cache at path and registers
// it with the shutdown coordinator.
func NewMetadataCache(path string, autoSaveInterval int, coord *store.ShutdownCoordinator, log zerolog.Logger) *MetadataCache {
	if autoSaveInterval <= 0 {
		autoSaveInterval = DefaultAutoSaveInterval
	}
	log = log.With().Str("component", "metadata-cache").Logger()

	c := &MetadataCache{
		file: store.NewFile(path, metadataVersion, func() metadataState {
			return metadataState{Version: metadataVersion, Tracks: map[string]MetadataEntry{}}
		}, func(s *metadataState) string { return s.Version }, log),
		autoSaveInterval: autoSaveInterval,
		log:              log,
	}
	coord.Register(c)
	c.log.Info().Int("tracks", len(c.file.State.Tracks)).Msg("metadata cache loaded")
	return c
}

// Get returns the cached record for fileID. A hit requires the entry to
// exist, the stored size to equal the size hint whenever a hint is given,
// and the stored title and artist to be non-empty. sizeHint <= 0 means
// unknown. An entry cached with an unknown size never satisfies a hint: the
// file may have changed since, so it is re-extracted.
func (c *MetadataCache) Get(fileID string, sizeHint int64) (models.TrackRecord, bool) {
	entry, ok := c.file.State.Tracks[fileID]
	if !ok {
		c.misses++
		return models.TrackRecord{}, false
	}
	if sizeHint > 0 && entry.FileSize != sizeHint {
		c.misses++
		return models.TrackRecord{}, false
	}
	if entry.Metadata.Title == "" || entry.Metadata.Artist == "" {
		c.misses++
		return models.TrackRecord{}, false
	}

	c.hits++
	return models.TrackRecord{
		Title:      entry.Metadata.Title,
		Artist:     entry.Metadata.Artist,
		Album:      entry.Metadata.Album,
		Genre:      entry.Metadata.Genre,
		Year:       entry.Metadata.Year,
		SourcePath: entry.FilePath,
	}, true
}

// Put upserts the extraction result for fileID and auto-saves once enough new
// entries accumulate.
func (c *MetadataCache) Put(fileID, fileName, filePath string, sizeHint int64, rec models.TrackRecord) {
	c.file.State.Tracks[fileID] = MetadataEntry{
		FileID:   fileID,
		FileName: fileName,
		FilePath: filePath,
		FileSize: sizeHint,
		CachedAt: time.Now(),
		Metadata: TrackMeta{
			Title:  rec.Title,
			Artist: rec.Artist,
			Album:  rec.Album,
			Genre:  rec.Genre,
			Year:   rec.Year,
		},
	}
	c.file.MarkDirty()
	c.newEntries++

	if c.newEntries >= c.autoSaveInterval {
		c.log.Info().Int("new_entries", c.newEntries).Msg("auto-saving metadata cache")
		if err := c.Save(false); err != nil {
			c.log.Error().Err(err).Msg("auto-save failed")
		}
	}
}

// All returns every usable cached record (non-empty title and artist).
func (c *MetadataCache) All() []models.TrackRecord {
	tracks := make([]models.TrackRecord, 0, len(c.file.State.Tracks))
	for _, entry := range c.file.State.Tracks {
		if entry.Metadata.Title == "" || entry.Metadata.Artist == "" {
			continue
		}
		tracks = append(tracks, models.TrackRecord{
			Title:      entry.Metadata.Title,
			Artist:     entry.Metadata.Artist,
			Album:      entry.Metadata.Album,
			Genre:      entry.Metadata.Genre,
			Year:       entry.Metadata.Year,
			SourcePath: entry.FilePath,
		})
	}
	return tracks
}

// RemoveDeleted prunes entries whose file id is absent from the current
// remote listing. Must run before new entries are added in a run, so stale
// entries never shadow a same-named-but-different remote file.
func (c *MetadataCache) RemoveDeleted(currentIDs map[string]struct{}) int {
	removed := 0
	for id := range c.file.State.Tracks {
		if _, ok := currentIDs[id]; !ok {
			delete(c.file.State.Tracks, id)
			removed++
		}
	}
	if removed > 0 {
		c.file.MarkDirty()
		c.log.Info().Int("removed", removed).Msg("pruned deleted files from cache")
	}
	return removed
}

// Save persists the cache if dirty or forced.
func (c *MetadataCache) Save(force bool) error {
	if !c.file.Dirty() && !force {
		return nil
	}
	c.file.State.LastUpdated = time.Now()
	if err := c.file.Save(force); err != nil {
		return err
	}
	c.log.Info().Int("tracks", len(c.file.State.Tracks)).Msg("saved metadata cache")
	c.newEntries = 0
	return nil
}

// Flush implements store.Flusher for the shutdown coordinator.
func (c *MetadataCache) Flush() error { return c.Save(false) }

// Path implements store.Flusher.
func (c *MetadataCache) Path() string { return c.file.Path() }

// Clear resets the cache to empty, pending a save.
func (c *MetadataCache) Clear() {
	c.file.State = metadataState{Version: metadataVersion, Tracks: map[string]MetadataEntry{}}
	c.file.MarkDirty()
}

// Stats returns hit/miss counters for observability.
func (c *MetadataCache) Stats() MetadataStats {
	s := MetadataStats{
		TotalCached:    len(c.file.State.Tracks),
		Hits:           c.hits,
		Misses:         c.misses,
		UnsavedEntries: c.newEntries,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
