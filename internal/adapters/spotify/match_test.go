package spotify

import (
	"math"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "kitten sitting", a: "kitten", b: "sitting", want: 3},
		{name: "empty to word", a: "", b: "sound", want: 5},
		{name: "runes count once", a: "şarkı", b: "sarki", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
				t.Fatalf("distance: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPairScore(t *testing.T) {
	tests := []struct {
		name            string
		title, artist   string
		gotTitle, gotBy string
		atLeast, atMost float64
	}{
		{name: "identical", title: "Creep", artist: "Radiohead", gotTitle: "Creep", gotBy: "Radiohead", atLeast: 1, atMost: 1},
		{name: "case and accents", title: "HALO", artist: "Beyonce", gotTitle: "Halo - Live", gotBy: "Beyoncé", atLeast: 1, atMost: 1},
		{name: "edition tail with year", title: "Creep", artist: "Radiohead", gotTitle: "Creep - Remastered 2009", gotBy: "Radiohead", atLeast: 1, atMost: 1},
		{name: "different song", title: "Creep", artist: "Radiohead", gotTitle: "Love Story", gotBy: "Taylor Swift", atMost: 0.4},
		{name: "blank request", title: " ", artist: "", gotTitle: "Creep", gotBy: "Radiohead", atMost: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pairScore(tt.title, tt.artist, tt.gotTitle, tt.gotBy)
			if got < tt.atLeast-1e-9 || got > tt.atMost+1e-9 {
				t.Fatalf("pairScore: got %0.4f, want within [%0.2f, %0.2f]", got, tt.atLeast, tt.atMost)
			}
		})
	}
}

func TestFieldScore(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		artist string
		track  spotifyTrack
		wantOK bool
	}{
		{
			name:   "bracketed edition",
			title:  "Happy",
			artist: "Pharrell Williams",
			track:  spotifyTrack{Name: "Happy (Remastered 2014)", Artists: []spotifyArtist{{Name: "Pharrell Williams"}}},
			wantOK: true,
		},
		{
			name:   "second credited artist",
			title:  "Get Lucky",
			artist: "Pharrell Williams",
			track:  spotifyTrack{Name: "Get Lucky (feat. Pharrell Williams)", Artists: []spotifyArtist{{Name: "Daft Punk"}, {Name: "Pharrell Williams"}}},
			wantOK: true,
		},
		{
			name:   "unrelated track",
			title:  "Happy",
			artist: "Pharrell Williams",
			track:  spotifyTrack{Name: "Sad Song", Artists: []spotifyArtist{{Name: "Other Artist"}}},
		},
		{
			name:   "no credits",
			title:  "Happy",
			artist: "Pharrell Williams",
			track:  spotifyTrack{Name: "Happy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := fieldScore(tt.title, tt.artist, tt.track)
			if ok != tt.wantOK {
				t.Fatalf("fieldScore: got ok=%v (score %0.3f), want %v", ok, score, tt.wantOK)
			}
			if ok && (math.IsNaN(score) || score > 1) {
				t.Fatalf("fieldScore: score out of range: %v", score)
			}
		})
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []spotifyTrack{
		{Name: "Creep (Acoustic)", Artists: []spotifyArtist{{Name: "Someone Else"}}},
		{Name: "Creep - Remastered 2009", Artists: []spotifyArtist{{Name: "Radiohead"}}},
		{Name: "Creep", Artists: []spotifyArtist{{Name: "Radiohead"}}},
	}

	idx, score := bestMatch("Creep", "Radiohead", candidates)
	if idx != 1 {
		t.Fatalf("bestMatch: got index %d, want the first of the equal scores", idx)
	}
	if score < searchMatchThreshold {
		t.Fatalf("bestMatch score: got %v", score)
	}

	if idx, _ := bestMatch("Unknown Song", "Nobody", candidates); idx != -1 {
		t.Fatalf("expected no match, got %d", idx)
	}
}
