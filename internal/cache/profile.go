package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tunescout/internal/models"
	"tunescout/internal/store"
)

const profileVersion = "1.1"

// DefaultRebuildThreshold is the track-count delta at which the cached
// profile is considered stale.
const DefaultRebuildThreshold = 75

// Fingerprint is a coarse, order-independent identity of a track collection:
// the count plus a digest over the sorted normalized "artist|title" set.
type Fingerprint struct {
	TrackCount int    `json:"track_count"`
	Digest     string `json:"digest"`
}

// ProfileRecord is the persisted taste profile. GenreWeights is a normalized
// distribution (sums to 1.0 at creation); reads never re-normalize.
type ProfileRecord struct {
	GenreWeights map[string]float64 `json:"genre_weights"`
	ArtistIDs    []string           `json:"artist_ids"`
	TrackIDs     []string           `json:"track_ids"`
	TopArtists   []string           `json:"top_artists"`
	TopGenres    []string           `json:"top_genres"`
}

// ProfileStats captures the build that produced the profile.
type ProfileStats struct {
	TracksAnalyzed  int `json:"tracks_analyzed"`
	TracksOnCatalog int `json:"tracks_on_catalog"`
	UniqueArtists   int `json:"unique_artists"`
	UniqueGenres    int `json:"unique_genres"`
}

// profileState is the on-disk schema of the profile cache.
type profileState struct {
	Version          string         `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	Fingerprint      *Fingerprint   `json:"library_fingerprint,omitempty"`
	RebuildThreshold int            `json:"rebuild_threshold"`
	Profile          *ProfileRecord `json:"profile,omitempty"`
	Stats            *ProfileStats  `json:"stats,omitempty"`
}

// ProfileCache memoizes the expensive taste-profile computation. Staleness is
// decided by a count-delta threshold, not exact equality: rebuilding costs one
// rate-limited catalog lookup per track, and marginal library edits do not
// materially shift the aggregate weights. The content digest is stored for
// diagnostics but intentionally not consulted for validity.
type ProfileCache struct {
	file             *store.File[profileState]
	rebuildThreshold int
	log              zerolog.Logger
}

// NewProfileCache loads (or freshly creates) the cache at path and registers
// it with the shutdown coordinator.
func NewProfileCache(path string, rebuildThreshold int, coord *store.ShutdownCoordinator, log zerolog.Logger) *ProfileCache {
	if rebuildThreshold <= 0 {
		rebuildThreshold = DefaultRebuildThreshold
	}
	log = log.With().Str("component", "profile-cache").Logger()

	c := &ProfileCache{
		file: store.NewFile(path, profileVersion, func() profileState {
			return profileState{Version: profileVersion}
		}, func(s *profileState) string { return s.Version }, log),
		rebuildThreshold: rebuildThreshold,
		log:              log,
	}
	coord.Register(c)
	return c
}

// ComputeFingerprint builds the order-independent summary of tracks.
func ComputeFingerprint(tracks []models.TrackRecord) Fingerprint {
	keys := make([]string, 0, len(tracks))
	for _, t := range tracks {
		keys = append(keys, strings.ToLower(strings.TrimSpace(t.Artist))+"|"+strings.ToLower(strings.TrimSpace(t.Title)))
	}
	sort.Strings(keys)

	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return Fingerprint{
		TrackCount: len(tracks),
		Digest:     hex.EncodeToString(sum[:])[:16],
	}
}

// IsValidForLibrary reports whether the cached profile is still usable for
// the current library: a stored profile and fingerprint exist, and the track
// count delta is strictly below the rebuild threshold. A delta equal to the
// threshold triggers a rebuild.
func (c *ProfileCache) IsValidForLibrary(tracks []models.TrackRecord) bool {
	if c.file.State.Profile == nil {
		c.log.Info().Msg("no cached profile")
		return false
	}
	if c.file.State.Fingerprint == nil {
		c.log.Info().Msg("no library fingerprint in cache")
		return false
	}

	cached := c.file.State.Fingerprint.TrackCount
	current := len(tracks)
	diff := current - cached
	if diff < 0 {
		diff = -diff
	}

	if diff >= c.rebuildThreshold {
		c.log.Info().
			Int("cached", cached).Int("current", current).
			Int("diff", diff).Int("threshold", c.rebuildThreshold).
			Msg("library changed significantly, profile stale")
		return false
	}

	c.log.Info().
		Int("cached", cached).Int("current", current).Int("diff", diff).
		Msg("cached taste profile still valid")
	return true
}

// Cached returns the stored profile, or false when none is usable.
func (c *ProfileCache) Cached() (*ProfileRecord, bool) {
	p := c.file.State.Profile
	if p == nil {
		return nil, false
	}
	if len(p.GenreWeights) == 0 && len(p.ArtistIDs) == 0 && len(p.TrackIDs) == 0 {
		return nil, false
	}
	return p, true
}

// CacheProfile stores a freshly built profile. The fingerprint is recomputed
// from the current tracks, top genres are the 20 highest-weighted, and the
// cache is flushed immediately: rebuilds are rare and expensive enough to
// always pay the write.
func (c *ProfileCache) CacheProfile(tracks []models.TrackRecord, genreWeights map[string]float64, artistIDs []string, trackIDs []string, topArtists []string) error {
	fp := ComputeFingerprint(tracks)

	c.file.State = profileState{
		Version:          profileVersion,
		CreatedAt:        time.Now(),
		Fingerprint:      &fp,
		RebuildThreshold: c.rebuildThreshold,
		Profile: &ProfileRecord{
			GenreWeights: genreWeights,
			ArtistIDs:    artistIDs,
			TrackIDs:     trackIDs,
			TopArtists:   topArtists,
			TopGenres:    topGenresOf(genreWeights, 20),
		},
		Stats: &ProfileStats{
			TracksAnalyzed:  len(tracks),
			TracksOnCatalog: len(trackIDs),
			UniqueArtists:   len(artistIDs),
			UniqueGenres:    len(genreWeights),
		},
	}
	c.file.MarkDirty()
	if err := c.file.Save(false); err != nil {
		return err
	}
	c.log.Info().Int("tracks", fp.TrackCount).Str("digest", fp.Digest).Msg("taste profile cached")
	return nil
}

// ForceRebuild clears only the fingerprint so the next validity check fails,
// preserving historical stats until the rebuild overwrites them.
func (c *ProfileCache) ForceRebuild() error {
	c.file.State.Fingerprint = nil
	c.file.MarkDirty()
	if err := c.file.Save(false); err != nil {
		return err
	}
	c.log.Info().Msg("taste profile will rebuild on next run")
	return nil
}

// CachedTrackCount returns the fingerprinted count, 0 when absent.
func (c *ProfileCache) CachedTrackCount() int {
	if fp := c.file.State.Fingerprint; fp != nil {
		return fp.TrackCount
	}
	return 0
}

// TopGenres returns up to n of the stored top genres.
func (c *ProfileCache) TopGenres(n int) []string {
	p := c.file.State.Profile
	if p == nil {
		return nil
	}
	if n > len(p.TopGenres) {
		n = len(p.TopGenres)
	}
	return p.TopGenres[:n]
}

// Stats returns the stored rebuild stats, nil when no profile was ever built.
func (c *ProfileCache) Stats() *ProfileStats { return c.file.State.Stats }

// Clear resets the cache to empty, pending a save.
func (c *ProfileCache) Clear() {
	c.file.State = profileState{Version: profileVersion}
	c.file.MarkDirty()
}

// Flush implements store.Flusher for the shutdown coordinator.
func (c *ProfileCache) Flush() error { return c.file.Save(false) }

// Path implements store.Flusher.
func (c *ProfileCache) Path() string { return c.file.Path() }

// topGenresOf ranks genres by descending weight; ties keep the sort's
// ordering of equal elements.
func topGenresOf(weights map[string]float64, n int) []string {
	genres := make([]string, 0, len(weights))
	for g := range weights {
		genres = append(genres, g)
	}
	sort.SliceStable(genres, func(i, j int) bool {
		if weights[genres[i]] != weights[genres[j]] {
			return weights[genres[i]] > weights[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}
