package showrss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		locale  string
		want    ShowIdentity
		wantErr bool
	}{
		{
			name:   "upper case locale",
			uri:    "4rOoJ6Egrf8K2IrywzwOMk",
			locale: "US",
			want:   ShowIdentity{ShowURI: "4rOoJ6Egrf8K2IrywzwOMk", Locale: "US"},
		},
		{
			name:   "lower case locale is normalized",
			uri:    "4rOoJ6Egrf8K2IrywzwOMk",
			locale: "us",
			want:   ShowIdentity{ShowURI: "4rOoJ6Egrf8K2IrywzwOMk", Locale: "US"},
		},
		{
			name:    "short uri",
			uri:     "not-22-chars",
			locale:  "US",
			wantErr: true,
		},
		{
			name:    "punctuation in uri",
			uri:     "4rOoJ6Egrf8K2Iry-zwOMk",
			locale:  "US",
			wantErr: true,
		},
		{
			name:    "three letter locale",
			uri:     "4rOoJ6Egrf8K2IrywzwOMk",
			locale:  "USA",
			wantErr: true,
		},
		{
			name:    "empty locale",
			uri:     "4rOoJ6Egrf8K2IrywzwOMk",
			locale:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewIdentity(tt.uri, tt.locale)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidIdentity)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntryClone(t *testing.T) {
	orig := Entry{
		Show: Show{Name: "show", Images: []Image{{URL: "https://img"}}},
		Document: Document{
			Items: []Item{{GUID: "a", Enclosure: &Enclosure{URL: "https://audio/a"}}},
		},
	}

	c := orig.Clone()
	c.Show.Images[0].URL = "changed"
	c.Document.Items[0].Title = "changed"
	c.Document.Items[0].Enclosure.URL = "changed"

	assert.Equal(t, "https://img", orig.Show.Images[0].URL)
	assert.Equal(t, "", orig.Document.Items[0].Title)
	assert.Equal(t, "https://audio/a", orig.Document.Items[0].Enclosure.URL)
}

func TestEntryStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Entry{ExpiresAt: now}

	assert.True(t, e.Stale(now))
	assert.True(t, e.Stale(now.Add(time.Second)))
	assert.False(t, e.Stale(now.Add(-time.Second)))
}
