package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slinet/gallerysync/internal/fetch"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5, 0, 100))
	assert.Equal(t, 100.0, clamp(150, 0, 100))
	assert.Equal(t, 42.0, clamp(42, 0, 100))
}

func TestDetailToUpsert(t *testing.T) {
	postedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rating := 4.5
	d := &fetch.DetailRecord{
		Gid: 123, Token: "abc", Title: "t", TitleJpn: "tj", Uploader: "u",
		PostedAt: postedAt, Language: "en", Pages: 20, Rating: &rating,
		FavCount: 3, CommentCount: 7, Thumb: "thumb.jpg",
		Tags: map[string][]string{"artist": {"foo"}},
	}

	got := detailToUpsert("Manga", d)

	assert.Equal(t, int64(123), got.Gid)
	assert.Equal(t, "abc", got.Token)
	assert.Equal(t, "Manga", got.Category)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, "tj", got.TitleJpn)
	assert.Equal(t, "u", got.Uploader)
	assert.True(t, postedAt.Equal(got.PostedAt))
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, 20, got.Pages)
	assert.Equal(t, &rating, got.Rating)
	assert.Equal(t, 3, got.FavCount)
	assert.Equal(t, 7, got.CommentCount)
	assert.Equal(t, "thumb.jpg", got.Thumb)
	assert.Equal(t, map[string][]string{"artist": {"foo"}}, got.Tags)
}

func TestDetailCategory(t *testing.T) {
	tests := []struct {
		name       string
		detail     *fetch.DetailRecord
		configured []string
		want       string
	}{
		{
			name:       "detail page category wins",
			detail:     &fetch.DetailRecord{Category: "Doujinshi"},
			configured: []string{"Manga", "Doujinshi"},
			want:       "Doujinshi",
		},
		{
			name:       "empty detail category falls back to first configured",
			detail:     &fetch.DetailRecord{Category: ""},
			configured: []string{"Manga", "Doujinshi"},
			want:       "Manga",
		},
		{
			name:       "empty detail category with no configured categories is empty",
			detail:     &fetch.DetailRecord{Category: ""},
			configured: nil,
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detailCategory(tt.detail, tt.configured))
		})
	}
}
