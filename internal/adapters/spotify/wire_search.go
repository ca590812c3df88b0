package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// maxSearchLimit is the largest page the search endpoint serves.
const maxSearchLimit = 50

// Search runs a free-text track search.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]domain.Track, error) {
	items, err := c.search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return mapTracksToDomain(items), nil
}

// FindTrack searches by title and artist and returns the best confident match.
func (c *Client) FindTrack(ctx context.Context, title string, artist string) (domain.Track, error) {
	items, err := c.search(ctx, fieldQuery(title, artist), 5, 0)
	if err != nil {
		return domain.Track{}, err
	}
	if len(items) == 0 {
		return domain.Track{}, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{Title: title, Artist: artist})
	}

	idx, score := bestMatch(title, artist, items)
	for _, candidate := range items {
		c.log.Debug().
			Str("candidate", joinArtistNames(candidate)+" - "+candidate.Name).
			Float64("score", pairScore(title, artist, candidate.Name, joinArtistNames(candidate))).
			Msg("spotify adapter: match candidate")
	}
	if idx == -1 {
		return domain.Track{}, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{Title: title, Artist: artist})
	}

	c.log.Debug().Str("track_id", items[idx].ID).Float64("score", score).Msg("spotify adapter: matched track")
	return mapTrackToDomain(items[idx]), nil
}

func (c *Client) search(ctx context.Context, query string, limit, offset int) ([]spotifyTrack, error) {
	limit = min(max(limit, 1), maxSearchLimit)
	offset = max(offset, 0)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if c.market != "" {
		params.Set("market", c.market)
	}

	req, err := c.newRequest(ctx, "/search", params)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: search: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "spotify search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Op: "spotify search", Err: statusError(resp)}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify adapter: search decode error: %w", err)
	}
	return body.Tracks.Items, nil
}

// statusError reads a short excerpt of an error response body.
func statusError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if len(excerpt) == 0 {
		return fmt.Errorf("spotify adapter: status %d", resp.StatusCode)
	}
	return fmt.Errorf("spotify adapter: status %d: %s", resp.StatusCode, excerpt)
}
