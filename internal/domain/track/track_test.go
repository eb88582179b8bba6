package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeReleaseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "year only",
			input:    "1999",
			expected: "1999-01-01",
		},
		{
			name:     "year and month",
			input:    "1999-07",
			expected: "1999-07-01",
		},
		{
			name:     "full date unchanged",
			input:    "1999-07-04",
			expected: "1999-07-04",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeReleaseDate(tt.input))
		})
	}
}

func TestIsLocalURI(t *testing.T) {
	assert.True(t, IsLocalURI("spotify:local:Artist:Album:Title:194"))
	assert.False(t, IsLocalURI("spotify:track:4uLU6hMCjMI75M1A2tKUQC"))
	assert.False(t, IsLocalURI(""))
}

func TestParseLocalURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantArtist string
		wantAlbum  string
		wantTitle  string
		wantOK     bool
	}{
		{
			name:       "plus-encoded segments",
			uri:        "spotify:local:The+Band:Greatest+Hits:Opening+Song:213",
			wantArtist: "The Band",
			wantAlbum:  "Greatest Hits",
			wantTitle:  "Opening Song",
			wantOK:     true,
		},
		{
			name:       "percent-encoded segments",
			uri:        "spotify:local:Caf%C3%A9+Trio:Live:Encore:99",
			wantArtist: "Café Trio",
			wantAlbum:  "Live",
			wantTitle:  "Encore",
			wantOK:     true,
		},
		{
			name:   "too few segments",
			uri:    "spotify:local:OnlyArtist",
			wantOK: false,
		},
		{
			name:   "not a local URI",
			uri:    "spotify:track:abc",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artist, album, title, ok := ParseLocalURI(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantArtist, artist)
				assert.Equal(t, tt.wantAlbum, album)
				assert.Equal(t, tt.wantTitle, title)
			}
		})
	}
}

func TestTrack_FirstArtist(t *testing.T) {
	tr := Track{Artist: "Artist A, Artist B"}
	assert.Equal(t, "Artist A", tr.FirstArtist())

	solo := Track{Artist: "Solo"}
	assert.Equal(t, "Solo", solo.FirstArtist())
}
