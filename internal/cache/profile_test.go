package cache

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"tunescout/internal/models"
	"tunescout/internal/store"
)

func newProfileCache(t *testing.T, threshold int) *ProfileCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.json")
	coord := store.NewShutdownCoordinator(zerolog.Nop())
	return NewProfileCache(path, threshold, coord, zerolog.Nop())
}

func libraryOf(n int) []models.TrackRecord {
	tracks := make([]models.TrackRecord, n)
	for i := range tracks {
		tracks[i] = models.TrackRecord{
			Title:  fmt.Sprintf("Track %d", i),
			Artist: fmt.Sprintf("Artist %d", i%7),
		}
	}
	return tracks
}

func cacheAt(t *testing.T, c *ProfileCache, tracks []models.TrackRecord) {
	t.Helper()
	err := c.CacheProfile(tracks,
		map[string]float64{"j-pop": 0.7, "rock": 0.3},
		[]string{"artist-a"}, []string{"track-a"}, []string{"Artist A"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestProfileCache_NoProfileInvalid(t *testing.T) {
	c := newProfileCache(t, 75)
	if c.IsValidForLibrary(libraryOf(10)) {
		t.Error("empty cache must be invalid")
	}
}

func TestProfileCache_ThresholdPolicy(t *testing.T) {
	// Cached at 100 tracks with threshold 75.
	c := newProfileCache(t, 75)
	cacheAt(t, c, libraryOf(100))

	cases := []struct {
		current int
		valid   bool
	}{
		{100, true},  // unchanged
		{150, true},  // delta 50 < 75
		{26, true},   // shrink, delta 74 < 75
		{175, false}, // delta 75 == threshold: invalid
		{176, false}, // delta 76 >= threshold
		{25, false},  // shrink past threshold
	}
	for _, tc := range cases {
		if got := c.IsValidForLibrary(libraryOf(tc.current)); got != tc.valid {
			t.Errorf("current=%d: valid=%v, want %v", tc.current, got, tc.valid)
		}
	}
}

func TestProfileCache_RebuildRecomputesFingerprint(t *testing.T) {
	c := newProfileCache(t, 75)
	cacheAt(t, c, libraryOf(100))

	grown := libraryOf(176)
	if c.IsValidForLibrary(grown) {
		t.Fatal("delta 76 must invalidate")
	}

	cacheAt(t, c, grown)
	if c.CachedTrackCount() != 176 {
		t.Errorf("fingerprint count not recomputed: %d", c.CachedTrackCount())
	}
	if !c.IsValidForLibrary(grown) {
		t.Error("freshly cached profile must be valid")
	}
}

// A library with the same track count but entirely different content is still
// treated as valid: only the count delta gates rebuild, the digest is stored
// for diagnostics and deliberately never compared.
func TestProfileCache_DigestNotConsulted(t *testing.T) {
	c := newProfileCache(t, 75)
	cacheAt(t, c, libraryOf(100))

	swapped := make([]models.TrackRecord, 100)
	for i := range swapped {
		swapped[i] = models.TrackRecord{
			Title:  fmt.Sprintf("Completely Different %d", i),
			Artist: "Someone Else",
		}
	}

	if !c.IsValidForLibrary(swapped) {
		t.Error("same-count library must stay valid under the count-only policy")
	}
}

func TestProfileCache_ForceRebuild(t *testing.T) {
	c := newProfileCache(t, 75)
	tracks := libraryOf(100)
	cacheAt(t, c, tracks)

	if err := c.ForceRebuild(); err != nil {
		t.Fatal(err)
	}
	if c.IsValidForLibrary(tracks) {
		t.Error("force rebuild must invalidate the profile")
	}
	// Stats survive until the next rebuild overwrites them.
	if c.Stats() == nil {
		t.Error("stats should be preserved across force rebuild")
	}
}

func TestProfileCache_CachedRoundTrip(t *testing.T) {
	c := newProfileCache(t, 75)
	cacheAt(t, c, libraryOf(10))

	p, ok := c.Cached()
	if !ok {
		t.Fatal("expected cached profile")
	}
	if p.GenreWeights["j-pop"] != 0.7 {
		t.Errorf("genre weights not preserved: %v", p.GenreWeights)
	}
	if got := c.TopGenres(1); len(got) != 1 || got[0] != "j-pop" {
		t.Errorf("expected top genre j-pop, got %v", got)
	}
}

func TestComputeFingerprint_OrderIndependent(t *testing.T) {
	a := []models.TrackRecord{
		{Title: "One", Artist: "A"},
		{Title: "Two", Artist: "B"},
	}
	b := []models.TrackRecord{
		{Title: "Two", Artist: "B"},
		{Title: "One", Artist: "A"},
	}

	fpA, fpB := ComputeFingerprint(a), ComputeFingerprint(b)
	if fpA != fpB {
		t.Errorf("fingerprint must be order-independent: %+v vs %+v", fpA, fpB)
	}
	if fpA.TrackCount != 2 {
		t.Errorf("expected count 2, got %d", fpA.TrackCount)
	}
	if len(fpA.Digest) != 16 {
		t.Errorf("expected 16-char digest, got %q", fpA.Digest)
	}

	different := ComputeFingerprint([]models.TrackRecord{{Title: "Three", Artist: "C"}, {Title: "One", Artist: "A"}})
	if different.Digest == fpA.Digest {
		t.Error("different content must digest differently")
	}
}

func TestTopGenresOf_RanksByWeight(t *testing.T) {
	weights := map[string]float64{"a": 0.1, "b": 0.5, "c": 0.3, "d": 0.1}
	got := topGenresOf(weights, 3)
	if len(got) != 3 || got[0] != "b" || got[1] != "c" {
		t.Errorf("unexpected ranking: %v", got)
	}
}
