package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// TagClient fetches secondary genre tags from MusicBrainz. Lookups are best
// effort: any failure yields an empty tag set, never an error the pipeline
// has to handle.
type TagClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewTagClient builds a client honoring the MusicBrainz 1 req/s guideline.
func NewTagClient() *TagClient {
	return &TagClient{
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type mbResponse struct {
	Recordings []struct {
		Score int `json:"score"`
		Tags  []struct {
			Name string `json:"name"`
		} `json:"tags"`
		ArtistCredit []struct {
			Artist struct {
				Tags []struct {
					Name string `json:"name"`
				} `json:"tags"`
			} `json:"artist"`
		} `json:"artist-credit"`
	} `json:"recordings"`
}

// RecordingTags returns the deduplicated lowercase tags attached to matching
// recordings and their credited artists.
func (c *TagClient) RecordingTags(ctx context.Context, artist, title string) []string {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	query := fmt.Sprintf("artist:%q AND recording:%q", artist, title)
	searchURL := fmt.Sprintf("https://musicbrainz.org/ws/2/recording?query=%s&limit=3&fmt=json", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil
	}
	// MusicBrainz requires a descriptive User-Agent.
	req.Header.Set("User-Agent", "tunescout/1.0 (music library recommender)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var res mbResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil
	}

	seen := map[string]struct{}{}
	var tags []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
	}

	for _, rec := range res.Recordings {
		for _, t := range rec.Tags {
			add(t.Name)
		}
		for _, credit := range rec.ArtistCredit {
			for _, t := range credit.Artist.Tags {
				add(t.Name)
			}
		}
	}
	return tags
}
