package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryMask(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		want    int
	}{
		{
			name:    "empty include excludes nothing",
			include: nil,
			want:    allCatsMask,
		},
		{
			name:    "single category removes its bit",
			include: []string{"Doujinshi"},
			want:    allCatsMask - CategoryBits["Doujinshi"],
		},
		{
			name:    "multiple categories remove all their bits",
			include: []string{"Doujinshi", "Manga"},
			want:    allCatsMask - CategoryBits["Doujinshi"] - CategoryBits["Manga"],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryMask(tt.include))
		})
	}
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("Manga"))
	assert.False(t, ValidCategory("NotACategory"))
}
