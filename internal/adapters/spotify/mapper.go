package spotify

import "github.com/ewilliams-labs/moodmix/internal/core/domain"

// mapTrackToDomain converts a raw Spotify track to a domain track.
func mapTrackToDomain(st spotifyTrack) domain.Track {
	artists := make([]domain.Artist, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, domain.Artist{ID: a.ID, Name: a.Name})
	}

	images := make([]domain.Image, 0, len(st.Album.Images))
	for _, img := range st.Album.Images {
		images = append(images, domain.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}

	preview := ""
	if st.PreviewURL != nil {
		preview = *st.PreviewURL
	}

	return domain.Track{
		ID:      st.ID,
		Name:    st.Name,
		Artists: artists,
		Album: domain.Album{
			ID:          st.Album.ID,
			Name:        st.Album.Name,
			ReleaseDate: st.Album.ReleaseDate,
			Images:      images,
		},
		DurationMs:  st.DurationMs,
		Popularity:  st.Popularity,
		ExternalURL: st.ExternalURLs.Spotify,
		PreviewURL:  preview,
		ISRC:        st.ExternalIDs.ISRC,
	}
}

func mapTracksToDomain(items []spotifyTrack) []domain.Track {
	tracks := make([]domain.Track, 0, len(items))
	for _, st := range items {
		if st.ID == "" {
			continue
		}
		tracks = append(tracks, mapTrackToDomain(st))
	}
	return tracks
}

func mapFeaturesToDomain(f spotifyAudioFeatures) domain.AudioFeatures {
	return domain.AudioFeatures{
		ID:               f.ID,
		Energy:           f.Energy,
		Valence:          f.Valence,
		Danceability:     f.Danceability,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
		Speechiness:      f.Speechiness,
		Loudness:         f.Loudness,
		Mode:             f.Mode,
		Tempo:            f.Tempo,
	}
}

// allFeaturesZero detects the placeholder records some catalog regions return.
func allFeaturesZero(f spotifyAudioFeatures) bool {
	return f.Danceability == 0 &&
		f.Energy == 0 &&
		f.Valence == 0 &&
		f.Tempo == 0 &&
		f.Instrumentalness == 0 &&
		f.Acousticness == 0
}
