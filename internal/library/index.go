// Package library holds the in-memory duplicate index built fresh each run
// from the user's owned tracks. It must match semantically identical tracks
// across inconsistent metadata, preferring a false positive over recommending
// something the user already owns.
package library

import (
	"regexp"
	"strings"

	"tunescout/internal/models"
)

// Matching thresholds for the token-overlap rule.
const (
	tokenOverlapRatio  = 0.6
	tokenOverlapMinLen = 5
)

var (
	// Release-suffix noise that shows up in rip filenames and video titles.
	suffixNoiseRe = regexp.MustCompile(`(?i)\s*[-_]?\s*(official\s*(music\s*)?(video|mv|audio)|music\s*video|lyrics?(\s*video)?|\bmv\b|\bpv\b|\b(hd|hq|4k)\b|remaster(ed)?(\s*\d{4})?)`)
	featRe        = regexp.MustCompile(`(?i)\s*[（(]\s*f(ea)?t\.?[^)）]*[)）]`)
	bracketRe     = regexp.MustCompile(`[【】「」『』\[\]()（）]`)
	// Keep letters and digits of any script so non-Latin titles survive.
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
	theRe   = regexp.MustCompile(`^the\s+`)
)

// NormalizeTitle lowercases, strips release-suffix noise and bracket
// annotation, drops punctuation outside a script-aware character set and
// collapses whitespace.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}
	s := featRe.ReplaceAllString(title, " ")
	s = suffixNoiseRe.ReplaceAllString(s, " ")
	s = strings.ToLower(strings.TrimSpace(s))
	s = bracketRe.ReplaceAllString(s, " ")
	s = punctRe.ReplaceAllString(s, " ")
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeArtist lowercases, maps the unknown sentinel to empty, strips a
// leading "the " and normalizes punctuation like NormalizeTitle.
func NormalizeArtist(artist string) string {
	s := strings.ToLower(strings.TrimSpace(artist))
	if s == "" || s == "unknown" || s == "unknown artist" {
		return ""
	}
	s = theRe.ReplaceAllString(s, "")
	s = punctRe.ReplaceAllString(s, " ")
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Index is rebuilt every run and never persisted: it must reflect exactly the
// current owned tracks plus catalog ids discovered during this run's profile
// build.
type Index struct {
	catalogIDs   map[string]struct{}
	pairs        map[string]struct{}            // normalized "artist|||title"
	titles       map[string]struct{}            // normalized title alone
	titleArtists map[string]map[string]struct{} // title -> artists seen with it
}

// Stats describes index occupancy.
type Stats struct {
	CatalogIDs   int
	Pairs        int
	UniqueTitles int
}

func NewIndex() *Index {
	return &Index{
		catalogIDs:   map[string]struct{}{},
		pairs:        map[string]struct{}{},
		titles:       map[string]struct{}{},
		titleArtists: map[string]map[string]struct{}{},
	}
}

// Add indexes one owned track. Adding the same record twice is idempotent.
func (x *Index) Add(track models.TrackRecord) {
	if track.CatalogID != "" {
		x.catalogIDs[track.CatalogID] = struct{}{}
	}

	normTitle := NormalizeTitle(track.Title)
	if normTitle == "" {
		return
	}
	normArtist := NormalizeArtist(track.Artist)

	// The pair set only gets real artists; the title set gets everything so
	// an unknown-artist rip still blocks a recommendation of the same song.
	if normArtist != "" {
		x.pairs[normArtist+"|||"+normTitle] = struct{}{}
	}
	x.titles[normTitle] = struct{}{}

	artists, ok := x.titleArtists[normTitle]
	if !ok {
		artists = map[string]struct{}{}
		x.titleArtists[normTitle] = artists
	}
	if normArtist != "" {
		artists[normArtist] = struct{}{}
	}
}

// AddCatalogID records a catalog track id discovered for an owned track.
func (x *Index) AddCatalogID(id string) {
	if id != "" {
		x.catalogIDs[id] = struct{}{}
	}
}

// ArtistsForTitle returns the normalized artists seen with a title, capturing
// one-title/many-artists ambiguity such as covers.
func (x *Index) ArtistsForTitle(title string) []string {
	artists := x.titleArtists[NormalizeTitle(title)]
	out := make([]string, 0, len(artists))
	for a := range artists {
		out = append(out, a)
	}
	return out
}

// Contains reports whether the query track is already owned. Rules are
// evaluated in precedence order, short-circuiting on the first match:
//
//  1. catalog id in the owned-id set
//  2. exact normalized (artist, title) pair
//  3. normalized title in the title-only set
//  4. substring containment either direction against any indexed title
//  5. token-overlap ratio >= 0.6, both normalized titles longer than 5 chars
func (x *Index) Contains(catalogID, title, artist string) bool {
	if catalogID != "" {
		if _, ok := x.catalogIDs[catalogID]; ok {
			return true
		}
	}
	if title == "" {
		return false
	}

	normTitle := NormalizeTitle(title)
	if normTitle == "" {
		return false
	}

	if normArtist := NormalizeArtist(artist); normArtist != "" {
		if _, ok := x.pairs[normArtist+"|||"+normTitle]; ok {
			return true
		}
	}

	if _, ok := x.titles[normTitle]; ok {
		return true
	}

	queryTokens := strings.Fields(normTitle)
	for indexed := range x.titles {
		if strings.Contains(indexed, normTitle) || strings.Contains(normTitle, indexed) {
			return true
		}
		if len(normTitle) > tokenOverlapMinLen && len(indexed) > tokenOverlapMinLen {
			if tokenOverlap(queryTokens, strings.Fields(indexed)) >= tokenOverlapRatio {
				return true
			}
		}
	}
	return false
}

// Stats returns index occupancy counts.
func (x *Index) Stats() Stats {
	return Stats{
		CatalogIDs:   len(x.catalogIDs),
		Pairs:        len(x.pairs),
		UniqueTitles: len(x.titles),
	}
}

// tokenOverlap is |a ∩ b| / max(|a|, |b|) over unique tokens.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	max := len(setA)
	if len(setB) > max {
		max = len(setB)
	}
	return float64(shared) / float64(max)
}
