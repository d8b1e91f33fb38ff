// Package profile builds the taste profile: aggregate genre weights and known
// artist/track ids summarizing a user's library.
package profile

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"tunescout/internal/catalog"
	"tunescout/internal/library"
	"tunescout/internal/models"
	"tunescout/internal/registry"
)

const topArtistLimit = 20

// Catalog is the lookup surface the builder needs.
type Catalog interface {
	SearchTrack(ctx context.Context, rec models.TrackRecord) (*catalog.Match, error)
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)
}

// Tagger supplies secondary genre tags, weighted at half a catalog genre.
type Tagger interface {
	RecordingTags(ctx context.Context, artist, title string) []string
}

// Profile is the in-memory taste profile consumed by the recommendation
// engine. GenreWeights is a normalized distribution summing to 1.0.
type Profile struct {
	GenreWeights map[string]float64
	ArtistIDs    []string
	TrackIDs     []string
	TopArtists   []string
}

// ArtistIDSet returns the artist ids as a set.
func (p Profile) ArtistIDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.ArtistIDs))
	for _, id := range p.ArtistIDs {
		set[id] = struct{}{}
	}
	return set
}

// FromRecord rehydrates a Profile from its cached form.
func FromRecord(genreWeights map[string]float64, artistIDs, trackIDs, topArtists []string) Profile {
	return Profile{
		GenreWeights: genreWeights,
		ArtistIDs:    artistIDs,
		TrackIDs:     trackIDs,
		TopArtists:   topArtists,
	}
}

// Builder resolves each library track against the catalog and accumulates the
// genre/artist statistics. Resolutions are memoized in the registry so a
// rebuild only pays for tracks never resolved before.
type Builder struct {
	catalog  Catalog
	tagger   Tagger
	registry *registry.Registry // nil disables memoization
	log      zerolog.Logger
}

func NewBuilder(cat Catalog, tagger Tagger, reg *registry.Registry, log zerolog.Logger) *Builder {
	return &Builder{
		catalog:  cat,
		tagger:   tagger,
		registry: reg,
		log:      log.With().Str("component", "profile").Logger(),
	}
}

// Build computes the profile over tracks. Discovered catalog track ids are
// attached to the records, and recorded in the library index so the
// recommendation engine never suggests an owned track. Per-track lookup
// failures are counted and skipped; they never abort the build.
func (b *Builder) Build(ctx context.Context, tracks []models.TrackRecord, idx *library.Index) (Profile, error) {
	genreWeights := map[string]float64{}
	artistCount := map[string]int{}
	artistIDName := map[string]string{}
	var artistIDs []string
	artistSeen := map[string]struct{}{}
	var trackIDs []string

	matched := 0
	unknownArtists := 0

	b.log.Info().Int("tracks", len(tracks)).Msg("building taste profile")

	for i := range tracks {
		if err := ctx.Err(); err != nil {
			return Profile{}, err
		}
		track := &tracks[i]

		if (i+1)%50 == 0 {
			b.log.Info().Int("done", i+1).Int("total", len(tracks)).Msg("analyzing tracks")
		}

		if track.HasUnknownArtist() {
			unknownArtists++
		} else {
			artistCount[strings.ToLower(track.Artist)]++
		}

		match := b.resolve(ctx, *track)
		if match != nil {
			matched++
			track.CatalogID = match.TrackID
			trackIDs = append(trackIDs, match.TrackID)
			idx.AddCatalogID(match.TrackID)

			if match.ArtistID != "" {
				if _, ok := artistSeen[match.ArtistID]; !ok {
					artistSeen[match.ArtistID] = struct{}{}
					artistIDs = append(artistIDs, match.ArtistID)
				}
				artistIDName[match.ArtistID] = match.ArtistName

				genres, err := b.catalog.ArtistGenres(ctx, match.ArtistID)
				if err != nil {
					b.log.Debug().Err(err).Str("artist", match.ArtistName).Msg("genre lookup failed")
				}
				for _, g := range genres {
					genreWeights[g]++
				}
			}
		}

		if b.tagger != nil && !track.HasUnknownArtist() {
			for _, tag := range b.tagger.RecordingTags(ctx, track.Artist, track.Title) {
				genreWeights[tag] += 0.5
			}
		}
	}

	normalizeWeights(genreWeights)
	topArtists := rankArtists(artistIDs, artistIDName, artistCount)

	b.log.Info().
		Int("tracks", len(tracks)).
		Int("unknown_artists", unknownArtists).
		Int("matched", matched).
		Int("genres", len(genreWeights)).
		Int("artists", len(artistIDs)).
		Msg("taste profile built")

	return Profile{
		GenreWeights: genreWeights,
		ArtistIDs:    artistIDs,
		TrackIDs:     trackIDs,
		TopArtists:   topArtists,
	}, nil
}

// resolve answers from the registry when possible, otherwise searches the
// catalog and memoizes a successful match.
func (b *Builder) resolve(ctx context.Context, track models.TrackRecord) *catalog.Match {
	key := registry.Key(track.Artist, track.Title)

	if cached, err := b.registry.Lookup(key); err == nil && cached != nil {
		return &catalog.Match{
			TrackID:    cached.TrackID,
			ArtistID:   cached.ArtistID,
			ArtistName: cached.ArtistName,
		}
	} else if err != nil {
		b.log.Debug().Err(err).Str("key", key).Msg("registry lookup failed")
	}

	match, err := b.catalog.SearchTrack(ctx, track)
	if err != nil {
		b.log.Debug().Err(err).Str("title", track.Title).Msg("catalog search failed")
		return nil
	}
	if match == nil {
		return nil
	}

	if err := b.registry.Store(registry.Mapping{
		TrackKey:   key,
		TrackID:    match.TrackID,
		ArtistID:   match.ArtistID,
		ArtistName: match.ArtistName,
	}); err != nil {
		b.log.Debug().Err(err).Str("key", key).Msg("registry store failed")
	}
	return match
}

// normalizeWeights scales the counter into a distribution summing to 1.0.
func normalizeWeights(weights map[string]float64) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return
	}
	for g, w := range weights {
		weights[g] = w / total
	}
}

// rankArtists orders artist ids by how often the artist appears in the
// library, then keeps the top names.
func rankArtists(artistIDs []string, idName map[string]string, countByName map[string]int) []string {
	ranked := make([]string, len(artistIDs))
	copy(ranked, artistIDs)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci := countByName[strings.ToLower(idName[ranked[i]])]
		cj := countByName[strings.ToLower(idName[ranked[j]])]
		return ci > cj
	})

	var names []string
	for _, id := range ranked {
		name := idName[id]
		if name == "" {
			continue
		}
		if low := strings.ToLower(name); low == "unknown" || low == "unknown artist" {
			continue
		}
		names = append(names, name)
		if len(names) >= topArtistLimit {
			break
		}
	}
	return names
}
