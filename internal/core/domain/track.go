package domain

import "strings"

// Artist is a credited performer on a track.
type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Image is a piece of album artwork.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Album holds the album metadata attached to a track.
type Album struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date,omitempty"`
	Images      []Image `json:"images,omitempty"`
}

// Track represents a catalog track in the domain layer.
// Tracks are treated as immutable once retrieved from the catalog.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists"`
	Album       Album    `json:"album"`
	DurationMs  int      `json:"duration_ms"`
	Popularity  int      `json:"popularity"`
	ExternalURL string   `json:"external_url,omitempty"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	ISRC        string   `json:"isrc,omitempty"` // International Standard Recording Code
}

// ArtistNames returns the credited artist names in catalog order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// ArtistLine joins the artist names for display, e.g. "Daft Punk, Pharrell Williams".
func (t Track) ArtistLine() string {
	return strings.Join(t.ArtistNames(), ", ")
}

// CoverURL returns the first (largest) album image, if any.
func (t Track) CoverURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// AudioFeatures is the catalog's audio analysis for a single track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Speechiness      float64 `json:"speechiness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Tempo            float64 `json:"tempo"`
}

// EstimatedAudioFeatures are used for a seed track the catalog has no analysis for.
func EstimatedAudioFeatures(trackID string) AudioFeatures {
	return AudioFeatures{
		ID:               trackID,
		Energy:           0.5,
		Valence:          0.5,
		Danceability:     0.5,
		Acousticness:     0.3,
		Instrumentalness: 0,
		Speechiness:      0.05,
		Loudness:         -10,
		Mode:             1,
		Tempo:            120,
	}
}
