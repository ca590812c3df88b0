package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// LookupTrack fetches one track by Spotify id.
func (c *Client) LookupTrack(ctx context.Context, id string) (domain.Track, error) {
	if id == "" {
		return domain.Track{}, &domain.ValidationError{Field: "track_id", Reason: "must not be empty"}
	}

	var params url.Values
	if c.market != "" {
		params = url.Values{"market": []string{c.market}}
	}

	req, err := c.newRequest(ctx, "/tracks/"+url.PathEscape(id), params)
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: lookup track: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return domain.Track{}, &domain.TransportError{Op: "spotify track", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		// Spotify answers 400 for malformed ids.
		return domain.Track{}, fmt.Errorf("spotify adapter: track %q: %w", id, domain.ErrNotFound)
	default:
		return domain.Track{}, &domain.TransportError{Op: "spotify track", Err: statusError(resp)}
	}

	var st spotifyTrack
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: track decode error: %w", err)
	}
	return mapTrackToDomain(st), nil
}
