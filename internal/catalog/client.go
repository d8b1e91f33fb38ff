// Package catalog wraps the Spotify Web API behind the collaborator surface
// the pipeline core consumes: track search, related artists, top tracks,
// genre search and artist genres. All calls go through a shared rate limiter;
// transient failures are returned to the caller, which treats them as a skip
// for that item only.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// ErrCatalog wraps failures from the remote catalog.
var ErrCatalog = errors.New("catalog error")

// Artist is a catalog artist reference.
type Artist struct {
	ID   string
	Name string
}

// Track is a catalog track as consumed by the recommendation engine.
type Track struct {
	ID         string
	Name       string
	ArtistID   string
	ArtistName string
	AlbumName  string
	Popularity int
	URL        string
}

// Match is a resolved library-track-to-catalog mapping.
type Match struct {
	TrackID    string
	ArtistID   string
	ArtistName string
}

// Client is the Spotify-backed catalog client.
type Client struct {
	api     *spotify.Client
	limiter *rate.Limiter
	market  string
	log     zerolog.Logger

	// genres per artist id, memoized for the run: profile building and
	// candidate tagging hit the same artists repeatedly.
	genreCache map[string][]string
}

// New authenticates with the client-credentials flow and returns a client.
func New(ctx context.Context, clientID, clientSecret, market string, log zerolog.Logger) (*Client, error) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)

	return &Client{
		api: spotify.New(httpClient),
		// Stay under Spotify's per-30s window with headroom for bursts.
		limiter:    rate.NewLimiter(rate.Limit(8), 4),
		market:     market,
		log:        log.With().Str("component", "catalog").Logger(),
		genreCache: map[string][]string{},
	}, nil
}

// Market returns the configured market/region code.
func (c *Client) Market() string { return c.market }

func (c *Client) pace(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// ArtistGenres returns the genre tags of an artist, memoized per run.
func (c *Client) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	if genres, ok := c.genreCache[artistID]; ok {
		return genres, nil
	}
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	artist, err := c.api.GetArtist(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, fmt.Errorf("%w: get artist %s: %v", ErrCatalog, artistID, err)
	}
	c.genreCache[artistID] = artist.Genres
	return artist.Genres, nil
}

// RelatedArtists returns artists related to the given one.
func (c *Client) RelatedArtists(ctx context.Context, artistID string) ([]Artist, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	related, err := c.api.GetRelatedArtists(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, fmt.Errorf("%w: related artists for %s: %v", ErrCatalog, artistID, err)
	}

	out := make([]Artist, 0, len(related))
	for _, a := range related {
		out = append(out, Artist{ID: string(a.ID), Name: a.Name})
	}
	return out, nil
}

// ArtistTopTracks returns an artist's top tracks in the configured market.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID string) ([]Track, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	tracks, err := c.api.GetArtistsTopTracks(ctx, spotify.ID(artistID), c.market)
	if err != nil {
		return nil, fmt.Errorf("%w: top tracks for %s: %v", ErrCatalog, artistID, err)
	}

	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, fromFullTrack(t))
	}
	return out, nil
}

// SearchByGenre searches the catalog for tracks tagged with genre.
func (c *Client) SearchByGenre(ctx context.Context, genre string, limit int) ([]Track, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("genre:%q", genre)
	res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(limit), spotify.Market(c.market))
	if err != nil {
		return nil, fmt.Errorf("%w: genre search %q: %v", ErrCatalog, genre, err)
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

func fromFullTrack(t spotify.FullTrack) Track {
	track := Track{
		ID:         string(t.ID),
		Name:       t.Name,
		AlbumName:  t.Album.Name,
		Popularity: int(t.Popularity),
		URL:        t.ExternalURLs["spotify"],
	}
	if len(t.Artists) > 0 {
		track.ArtistID = string(t.Artists[0].ID)
		track.ArtistName = t.Artists[0].Name
	}
	return track
}
