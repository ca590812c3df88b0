package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// ErrNoConfidentMatch indicates search results did not meet the confidence threshold.
var ErrNoConfidentMatch = errors.New("no confident match")

// NoConfidentMatchError provides context for a failed track match.
type NoConfidentMatchError struct {
	Title  string
	Artist string
}

func (e NoConfidentMatchError) Error() string {
	if e.Title == "" && e.Artist == "" {
		return ErrNoConfidentMatch.Error()
	}
	return fmt.Sprintf("no confident match found for title %q artist %q", e.Title, e.Artist)
}

func (e NoConfidentMatchError) Is(target error) bool {
	return target == ErrNoConfidentMatch
}

// TrackSearcher is the single call the candidate aggregator needs from a catalog.
type TrackSearcher interface {
	Search(ctx context.Context, query string, limit, offset int) ([]domain.Track, error)
}

// Catalog is the full music catalog collaborator.
type Catalog interface {
	TrackSearcher

	// Authenticate obtains (or refreshes) credentials. Failure is fatal to the flow.
	Authenticate(ctx context.Context) error
	// LookupTrack fetches one track by catalog id.
	LookupTrack(ctx context.Context, id string) (domain.Track, error)
	// AudioFeatures returns the analysis for each id the catalog knows; unknown ids are absent.
	AudioFeatures(ctx context.Context, ids []string) (map[string]domain.AudioFeatures, error)
	// FindTrack returns the best scored match for a title and artist, or a NoConfidentMatchError.
	FindTrack(ctx context.Context, title, artist string) (domain.Track, error)
}
