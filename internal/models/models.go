package models

import "strings"

// TrackRecord is a single track extracted from the user's library.
// Two records with the same case-insensitive (title, artist) pair are the
// same logical track regardless of other fields. Produced by the source
// extractor; CatalogID is attached later, during profile building.
type TrackRecord struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Year       int    `json:"year,omitempty"`
	SourcePath string `json:"source_path,omitempty"`
	CatalogID  string `json:"catalog_id,omitempty"`
}

// Key returns the lowercase (title, artist) identity pair.
func (t TrackRecord) Key() (string, string) {
	return strings.ToLower(t.Title), strings.ToLower(t.Artist)
}

// HasUnknownArtist reports whether the artist field carries the sentinel
// value used when extraction could not determine an artist.
func (t TrackRecord) HasUnknownArtist() bool {
	a := strings.ToLower(strings.TrimSpace(t.Artist))
	return a == "" || a == "unknown" || a == "unknown artist"
}

// Recommendation is the externally-facing projection of a scored candidate.
type Recommendation struct {
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Album      string   `json:"album"`
	Score      float64  `json:"score"`
	Popularity int      `json:"popularity"`
	CatalogURL string   `json:"catalog_url,omitempty"`
	YoutubeURL string   `json:"youtube_url"`
	Genres     []string `json:"genres"`
}

// PipelineStats summarizes a full run for the report output.
type PipelineStats struct {
	TotalFiles      int     `json:"total_files"`
	TracksParsed    int     `json:"tracks_parsed"`
	GenresFound     int     `json:"genres_found"`
	ArtistsFound    int     `json:"artists_found"`
	TracksOnCatalog int     `json:"tracks_on_catalog"`
	CacheHits       int     `json:"cache_hits"`
	CacheMisses     int     `json:"cache_misses"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}
