// Package recommend aggregates catalog candidates with three strategies,
// scores them against the taste profile, filters out owned and excluded
// tracks, and ranks what survives.
package recommend

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"tunescout/internal/catalog"
	"tunescout/internal/library"
	"tunescout/internal/models"
	"tunescout/internal/profile"
)

// ErrNoArtists means the profile has no usable artist ids: no meaningful
// recommendations are possible, so the run fails rather than fabricating a
// partial list.
var ErrNoArtists = errors.New("no artist ids available for recommendations")

// Aggregation caps.
const (
	sampleArtistCount   = 15 // profile artists sampled for expansion
	relatedPerArtist    = 5  // related artists collected per sampled artist
	relatedArtistCap    = 25 // related artists whose top tracks are pulled
	tracksPerRelated    = 5  // top tracks taken per related artist
	genreSearchCount    = 10 // top profile genres searched
	genreSearchLimit    = 15 // results per genre search
	reinforceArtistsCap = 10 // sampled artists whose full top lists are pulled
)

// Catalog is the remote surface the engine consumes.
type Catalog interface {
	RelatedArtists(ctx context.Context, artistID string) ([]catalog.Artist, error)
	ArtistTopTracks(ctx context.Context, artistID string) ([]catalog.Track, error)
	SearchByGenre(ctx context.Context, genre string, limit int) ([]catalog.Track, error)
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)
}

// Config controls scoring weights, exclusion toggles and output size.
type Config struct {
	TagSimilarityWeight  float64
	ArtistAffinityWeight float64
	PopularityWeight     float64

	ExcludeRemixes       bool
	ExcludeCovers        bool
	ExcludeLive          bool
	ExcludeKaraoke       bool
	ExcludeInstrumentals bool

	MinPopularity      int
	MaxRecommendations int
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		TagSimilarityWeight:  0.60,
		ArtistAffinityWeight: 0.25,
		PopularityWeight:     0.15,
		ExcludeRemixes:       true,
		ExcludeCovers:        true,
		ExcludeLive:          true,
		ExcludeKaraoke:       true,
		ExcludeInstrumentals: false,
		MinPopularity:        10,
		MaxRecommendations:   30,
	}
}

// FilterStats counts drops per reason. A candidate can increment several
// counters; it is dropped when any fired.
type FilterStats struct {
	InLibrary     int `json:"in_library"`
	Remix         int `json:"remix"`
	Cover         int `json:"cover"`
	Live          int `json:"live"`
	Karaoke       int `json:"karaoke"`
	Instrumental  int `json:"instrumental"`
	LowPopularity int `json:"low_popularity"`
}

// Dropped is the total number of candidates removed by filtering.
func (s FilterStats) Dropped() int {
	return s.InLibrary + s.Remix + s.Cover + s.Live + s.Karaoke + s.Instrumental + s.LowPopularity
}

// candidate is a catalog track plus its attached genre tag-set.
type candidate struct {
	catalog.Track
	Genres []string
}

type scoredCandidate struct {
	candidate
	Score float64
}

// Engine runs the aggregation/scoring/ranking pipeline.
type Engine struct {
	catalog Catalog
	cfg     Config
	rng     *rand.Rand
	log     zerolog.Logger
}

// NewEngine builds an engine. rng may be nil, in which case a fixed-seed
// source is used (the sample choice is not meant to be cryptographic, just
// varied across artists).
func NewEngine(cat Catalog, cfg Config, rng *rand.Rand, log zerolog.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	return &Engine{
		catalog: cat,
		cfg:     cfg,
		rng:     rng,
		log:     log.With().Str("component", "recommend").Logger(),
	}
}

// Recommend produces the final ranked recommendation list.
func (e *Engine) Recommend(ctx context.Context, prof profile.Profile, idx *library.Index) ([]models.Recommendation, FilterStats, error) {
	var stats FilterStats

	if len(prof.ArtistIDs) == 0 {
		return nil, stats, ErrNoArtists
	}

	sampled := e.sampleArtists(prof.ArtistIDs, sampleArtistCount)
	candidates := e.aggregate(ctx, prof, sampled)
	if len(candidates) == 0 {
		e.log.Warn().Msg("no candidate tracks found")
		return nil, stats, nil
	}

	e.log.Info().Int("candidates", len(candidates)).Msg("scoring and filtering candidates")

	popularities := make([]int, len(candidates))
	for i, c := range candidates {
		popularities[i] = c.Popularity
	}

	artistSet := prof.ArtistIDSet()
	var scored []scoredCandidate
	for _, c := range candidates {
		if e.filtered(c, idx, &stats) {
			continue
		}
		scored = append(scored, scoredCandidate{
			candidate: c,
			Score:     e.score(c, prof.GenreWeights, artistSet, popularities),
		})
	}

	e.log.Info().
		Int("in_library", stats.InLibrary).
		Int("excluded", stats.Dropped()-stats.InLibrary).
		Msg("filtering complete")

	// Score descending, ties broken by catalog popularity descending.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Popularity > scored[j].Popularity
	})
	if len(scored) > e.cfg.MaxRecommendations {
		scored = scored[:e.cfg.MaxRecommendations]
	}

	recs := make([]models.Recommendation, 0, len(scored))
	for _, s := range scored {
		recs = append(recs, models.Recommendation{
			Title:      s.Name,
			Artist:     s.ArtistName,
			Album:      s.AlbumName,
			Score:      s.Score,
			Popularity: s.Popularity,
			CatalogURL: s.URL,
			YoutubeURL: YoutubeSearchURL(s.ArtistName, s.Name),
			Genres:     s.Genres,
		})
	}

	e.log.Info().Int("recommendations", len(recs)).Msg("recommendations generated")
	return recs, stats, nil
}

// aggregate merges the three collection strategies into one pool,
// deduplicating by the (lowercased name, lowercased primary artist) pair.
func (e *Engine) aggregate(ctx context.Context, prof profile.Profile, sampled []string) []candidate {
	seen := map[string]struct{}{}
	var pool []candidate

	add := func(t catalog.Track, genres []string) {
		if t.ArtistName == "" {
			return
		}
		key := strings.ToLower(t.Name) + "|" + strings.ToLower(t.ArtistName)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		pool = append(pool, candidate{Track: t, Genres: genres})
	}

	// Strategy 1: related-artist expansion.
	relatedIDs := e.collectRelated(ctx, sampled)
	e.log.Info().Int("related_artists", len(relatedIDs)).Msg("expanding related artists")

	count := 0
	for _, artistID := range relatedIDs {
		if count >= relatedArtistCap {
			break
		}
		count++

		top, err := e.catalog.ArtistTopTracks(ctx, artistID)
		if err != nil {
			e.log.Debug().Err(err).Str("artist", artistID).Msg("top tracks failed")
			continue
		}
		if len(top) > tracksPerRelated {
			top = top[:tracksPerRelated]
		}
		for _, t := range top {
			genres, err := e.catalog.ArtistGenres(ctx, t.ArtistID)
			if err != nil {
				genres = nil
			}
			add(t, genres)
		}
	}
	e.log.Info().Int("candidates", len(pool)).Msg("collected from related artists")

	// Strategy 2: genre search over the top profile genres.
	for _, genre := range topGenres(prof.GenreWeights, genreSearchCount) {
		tracks, err := e.catalog.SearchByGenre(ctx, genre, genreSearchLimit)
		if err != nil {
			e.log.Debug().Err(err).Str("genre", genre).Msg("genre search failed")
			continue
		}
		for _, t := range tracks {
			add(t, []string{genre})
		}
	}
	e.log.Info().Int("candidates", len(pool)).Msg("pool after genre search")

	// Strategy 3: more from the user's own top artists.
	reinforce := sampled
	if len(reinforce) > reinforceArtistsCap {
		reinforce = reinforce[:reinforceArtistsCap]
	}
	for _, artistID := range reinforce {
		top, err := e.catalog.ArtistTopTracks(ctx, artistID)
		if err != nil {
			continue
		}
		genres, err := e.catalog.ArtistGenres(ctx, artistID)
		if err != nil {
			genres = nil
		}
		for _, t := range top {
			add(t, genres)
		}
	}
	e.log.Info().Int("candidates", len(pool)).Msg("final candidate pool")

	return pool
}

func (e *Engine) collectRelated(ctx context.Context, sampled []string) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, artistID := range sampled {
		related, err := e.catalog.RelatedArtists(ctx, artistID)
		if err != nil {
			e.log.Debug().Err(err).Str("artist", artistID).Msg("related artists failed")
			continue
		}
		if len(related) > relatedPerArtist {
			related = related[:relatedPerArtist]
		}
		for _, a := range related {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func (e *Engine) sampleArtists(artistIDs []string, n int) []string {
	sampled := make([]string, len(artistIDs))
	copy(sampled, artistIDs)
	e.rng.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})
	if len(sampled) > n {
		sampled = sampled[:n]
	}
	return sampled
}

// filtered evaluates every drop reason independently so diagnostics count
// them all, and reports whether any fired.
func (e *Engine) filtered(c candidate, idx *library.Index, stats *FilterStats) bool {
	dropped := false

	if idx.Contains(c.ID, c.Name, c.ArtistName) {
		stats.InLibrary++
		dropped = true
	}
	for _, reason := range exclusionReasons(c.Name, e.cfg) {
		switch reason {
		case "remix":
			stats.Remix++
		case "cover":
			stats.Cover++
		case "live":
			stats.Live++
		case "karaoke":
			stats.Karaoke++
		case "instrumental":
			stats.Instrumental++
		}
		dropped = true
	}
	if c.Popularity < e.cfg.MinPopularity {
		stats.LowPopularity++
		dropped = true
	}
	return dropped
}

// YoutubeSearchURL builds the fallback external link for a recommendation.
func YoutubeSearchURL(artist, title string) string {
	query := title
	if low := strings.ToLower(artist); low != "" && low != "unknown" && low != "unknown artist" {
		query = artist + " " + title
	}
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
}

// topGenres returns up to n genres by descending weight.
func topGenres(weights map[string]float64, n int) []string {
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
