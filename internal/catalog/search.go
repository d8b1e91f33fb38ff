package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/zmb3/spotify/v2"

	"tunescout/internal/models"
)

// acceptThreshold is the Jaro-Winkler floor for accepting a search result
// when neither string contains the other.
const acceptThreshold = 0.85

const searchLimit = 5

// SearchTrack resolves a library track to a catalog match. It walks a query
// ladder (structured field query, then free text, then title only) and accepts the
// first result whose title matches, verifying the artist too when one is
// known. A nil match with nil error means the track is not on the catalog.
func (c *Client) SearchTrack(ctx context.Context, rec models.TrackRecord) (*Match, error) {
	title := cleanTitle(rec.Title)
	if title == "" {
		title = rec.Title
	}

	var queries []string
	if !rec.HasUnknownArtist() {
		queries = append(queries,
			fmt.Sprintf("track:%q artist:%q", title, rec.Artist),
			strings.ToLower(rec.Artist+" "+title),
		)
	}
	queries = append(queries, title)

	for _, query := range queries {
		tracks, err := c.searchTracks(ctx, query)
		if err != nil {
			// One failed query is not fatal: fall through the ladder.
			c.log.Debug().Err(err).Str("query", query).Msg("search query failed")
			continue
		}

		for _, t := range tracks {
			if !namesMatch(rec.Title, t.Name) {
				continue
			}
			if !rec.HasUnknownArtist() && !namesMatch(rec.Artist, t.ArtistName) {
				continue
			}
			return &Match{TrackID: t.ID, ArtistID: t.ArtistID, ArtistName: t.ArtistName}, nil
		}
	}
	return nil, nil
}

func (c *Client) searchTracks(ctx context.Context, query string) ([]Track, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(searchLimit), spotify.Market(c.market))
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", ErrCatalog, query, err)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	out := make([]Track, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		out = append(out, fromFullTrack(t))
	}
	return out, nil
}

// cleanTitle drops bracketed annotation for better search recall.
func cleanTitle(title string) string {
	if idx := strings.IndexAny(title, "([【「『"); idx > 0 {
		return strings.TrimSpace(title[:idx])
	}
	return strings.TrimSpace(title)
}

// namesMatch accepts containment either direction, or high string similarity.
func namesMatch(want, got string) bool {
	a := strings.ToLower(strings.TrimSpace(want))
	b := strings.ToLower(strings.TrimSpace(got))
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return strutil.Similarity(a, b, metrics.NewJaroWinkler()) >= acceptThreshold
}
