package domain

import "time"

// HistoryKind selects one of the two history record kinds.
type HistoryKind string

const (
	KindMood HistoryKind = "mood"
	KindSong HistoryKind = "song"
	// KindAll is accepted by listing operations only.
	KindAll HistoryKind = "all"
)

// Valid reports whether k names a concrete record kind.
func (k HistoryKind) Valid() bool {
	return k == KindMood || k == KindSong
}

// Evaluation is the language model's verdict on a recommendation list.
type Evaluation struct {
	Score       float64  `json:"score"`
	Explanation string   `json:"explanation"`
	BestMatches []string `json:"best_matches"`
}

// MoodSearch is the payload of a mood recommendation history record.
type MoodSearch struct {
	Mood          string                   `json:"mood"`
	Features      FeatureVector            `json:"features"`
	Tracks        []Track                  `json:"tracks"`
	AudioFeatures map[string]AudioFeatures `json:"audio_features"`
	Evaluation    *Evaluation              `json:"evaluation,omitempty"`
}

// SongDiscovery is the payload of a seed-song discovery history record.
type SongDiscovery struct {
	SourceTrackID       string         `json:"source_track_id"`
	SourceTrack         string         `json:"source_track"`
	SourceArtist        string         `json:"source_artist"`
	SourceFeatures      *FeatureVector `json:"source_features,omitempty"`
	SourceAudioFeatures *AudioFeatures `json:"source_audio_features,omitempty"`
	SimilarTracks       []Track        `json:"similar_tracks"`
	MoodDescription     string         `json:"mood_description"`
}

// HistoryEntry is a stored record. Exactly one of Mood or Discovery is set, matching Kind.
type HistoryEntry struct {
	ID        int64          `json:"id"`
	Kind      HistoryKind    `json:"kind"`
	CreatedAt time.Time      `json:"created_at"`
	Mood      *MoodSearch    `json:"mood,omitempty"`
	Discovery *SongDiscovery `json:"discovery,omitempty"`
}
