package profile

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"tunescout/internal/catalog"
	"tunescout/internal/library"
	"tunescout/internal/models"
)

// buildCatalog resolves tracks from a fixed table keyed by lowercase
// "artist|title" and counts searches so memoization can be asserted.
type buildCatalog struct {
	matches  map[string]catalog.Match
	genres   map[string][]string
	searches int
}

func (c *buildCatalog) SearchTrack(_ context.Context, rec models.TrackRecord) (*catalog.Match, error) {
	c.searches++
	key := strings.ToLower(rec.Artist) + "|" + strings.ToLower(rec.Title)
	if m, ok := c.matches[key]; ok {
		return &m, nil
	}
	return nil, nil
}

func (c *buildCatalog) ArtistGenres(_ context.Context, artistID string) ([]string, error) {
	return c.genres[artistID], nil
}

type staticTagger struct {
	tags map[string][]string
}

func (t *staticTagger) RecordingTags(_ context.Context, artist, title string) []string {
	return t.tags[strings.ToLower(artist)+"|"+strings.ToLower(title)]
}

func libraryTracks() []models.TrackRecord {
	return []models.TrackRecord{
		{Title: "Shinunoga E-Wa", Artist: "Fujii Kaze"},
		{Title: "Matsuri", Artist: "Fujii Kaze"},
		{Title: "Kick Back", Artist: "Kenshi Yonezu"},
		{Title: "Obscure B-Side", Artist: "Nobody"}, // no catalog match
		{Title: "ripped_track_07", Artist: "Unknown"},
	}
}

func fullCatalog() *buildCatalog {
	return &buildCatalog{
		matches: map[string]catalog.Match{
			"fujii kaze|shinunoga e-wa": {TrackID: "tk1", ArtistID: "ar1", ArtistName: "Fujii Kaze"},
			"fujii kaze|matsuri":        {TrackID: "tk2", ArtistID: "ar1", ArtistName: "Fujii Kaze"},
			"kenshi yonezu|kick back":   {TrackID: "tk3", ArtistID: "ar2", ArtistName: "Kenshi Yonezu"},
		},
		genres: map[string][]string{
			"ar1": {"j-pop", "city pop"},
			"ar2": {"j-pop"},
		},
	}
}

func TestBuild_Profile(t *testing.T) {
	cat := fullCatalog()
	idx := library.NewIndex()
	tracks := libraryTracks()

	b := NewBuilder(cat, nil, nil, zerolog.Nop())
	prof, err := b.Build(context.Background(), tracks, idx)
	if err != nil {
		t.Fatal(err)
	}

	if len(prof.TrackIDs) != 3 {
		t.Errorf("track ids = %v, want 3 matches", prof.TrackIDs)
	}
	if len(prof.ArtistIDs) != 2 {
		t.Errorf("artist ids = %v, want deduped ar1 ar2", prof.ArtistIDs)
	}

	// ar1 contributed twice, so j-pop carries 3 of 5 genre observations.
	var total float64
	for _, w := range prof.GenreWeights {
		total += w
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("genre weights sum to %v, want 1.0", total)
	}
	if prof.GenreWeights["j-pop"] <= prof.GenreWeights["city pop"] {
		t.Errorf("j-pop must outweigh city pop: %v", prof.GenreWeights)
	}

	// Fujii Kaze owns two library tracks and ranks first; the unknown
	// sentinel never appears.
	if len(prof.TopArtists) != 2 || prof.TopArtists[0] != "Fujii Kaze" {
		t.Errorf("top artists = %v", prof.TopArtists)
	}

	// Matched catalog ids are attached in place and indexed as owned.
	if tracks[0].CatalogID != "tk1" {
		t.Errorf("catalog id not attached: %+v", tracks[0])
	}
	if !idx.Contains("tk3", "", "") {
		t.Error("matched ids must land in the library index")
	}
	if idx.Contains("tk9", "", "") {
		t.Error("unmatched id must not be indexed")
	}
}

func TestBuild_TaggerHalfWeight(t *testing.T) {
	cat := &buildCatalog{
		matches: map[string]catalog.Match{
			"fujii kaze|shinunoga e-wa": {TrackID: "tk1", ArtistID: "ar1", ArtistName: "Fujii Kaze"},
		},
		genres: map[string][]string{"ar1": {"j-pop"}},
	}
	tagger := &staticTagger{tags: map[string][]string{
		"fujii kaze|shinunoga e-wa": {"funk"},
	}}

	b := NewBuilder(cat, tagger, nil, zerolog.Nop())
	prof, err := b.Build(context.Background(),
		[]models.TrackRecord{{Title: "Shinunoga E-Wa", Artist: "Fujii Kaze"}},
		library.NewIndex())
	if err != nil {
		t.Fatal(err)
	}

	// One full catalog genre plus one half-weight tag: 2/3 vs 1/3.
	if math.Abs(prof.GenreWeights["j-pop"]-2.0/3.0) > 1e-9 {
		t.Errorf("j-pop = %v, want 2/3", prof.GenreWeights["j-pop"])
	}
	if math.Abs(prof.GenreWeights["funk"]-1.0/3.0) > 1e-9 {
		t.Errorf("funk = %v, want 1/3", prof.GenreWeights["funk"])
	}
}

func TestBuild_NilRegistryAndTagger(t *testing.T) {
	b := NewBuilder(fullCatalog(), nil, nil, zerolog.Nop())
	if _, err := b.Build(context.Background(), libraryTracks(), library.NewIndex()); err != nil {
		t.Fatalf("nil registry and tagger must be usable: %v", err)
	}
}

func TestBuild_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(fullCatalog(), nil, nil, zerolog.Nop())
	_, err := b.Build(ctx, libraryTracks(), library.NewIndex())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuild_EmptyLibrary(t *testing.T) {
	b := NewBuilder(&buildCatalog{}, nil, nil, zerolog.Nop())
	prof, err := b.Build(context.Background(), nil, library.NewIndex())
	if err != nil {
		t.Fatal(err)
	}
	if len(prof.ArtistIDs) != 0 || len(prof.GenreWeights) != 0 {
		t.Errorf("empty library must yield an empty profile: %+v", prof)
	}
}

func TestFromRecordRoundTrip(t *testing.T) {
	prof := FromRecord(map[string]float64{"rock": 1}, []string{"a"}, []string{"t"}, []string{"N"})
	set := prof.ArtistIDSet()
	if _, ok := set["a"]; !ok || len(set) != 1 {
		t.Errorf("artist id set = %v", set)
	}
}
