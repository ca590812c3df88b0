package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// featuresBatchSize is the number of ids sent per audio-features request.
const featuresBatchSize = 50

// AudioFeatures returns the analysis for each known id. Ids without analysis are absent
// from the map. Applications without access to the endpoint get an empty map. A failed
// batch is logged and skipped; only a done context stops the loop, and its error is
// returned alongside whatever was collected.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) (map[string]domain.AudioFeatures, error) {
	out := make(map[string]domain.AudioFeatures, len(ids))
	unique := dedupeIDs(ids)

	for start := 0; start < len(unique); start += featuresBatchSize {
		if err := ctx.Err(); err != nil {
			return out, &domain.TransportError{Op: "spotify audio features", Err: err}
		}
		end := min(start+featuresBatchSize, len(unique))
		batch, err := c.audioFeaturesBatch(ctx, unique[start:end])
		if err != nil {
			c.log.Warn().Err(err).Int("offset", start).Int("ids", end-start).
				Msg("spotify adapter: audio features batch failed, skipping")
			continue
		}
		for id, f := range batch {
			out[id] = f
		}
	}
	return out, nil
}

func (c *Client) audioFeaturesBatch(ctx context.Context, ids []string) (map[string]domain.AudioFeatures, error) {
	req, err := c.newRequest(ctx, "/audio-features", url.Values{"ids": []string{strings.Join(ids, ",")}})
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: audio features: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "spotify audio features", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusNotFound:
		c.log.Warn().Int("status", resp.StatusCode).Int("ids", len(ids)).
			Msg("spotify adapter: audio features unavailable, continuing without them")
		return map[string]domain.AudioFeatures{}, nil
	default:
		return nil, &domain.TransportError{Op: "spotify audio features", Err: statusError(resp)}
	}

	var body audioFeaturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("spotify adapter: audio features decode error: %w", err)
	}

	out := make(map[string]domain.AudioFeatures, len(body.AudioFeatures))
	for _, f := range body.AudioFeatures {
		if f == nil || f.ID == "" || allFeaturesZero(*f) {
			continue
		}
		out[f.ID] = mapFeaturesToDomain(*f)
	}
	return out, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
