package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func float64p(v float64) *float64 { return &v }

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		existing     *Existing
		item         ListItem
		threshold    float64
		wantRefresh  bool
	}{
		{
			name:        "no existing record is unconditional refresh",
			existing:    nil,
			item:        ListItem{RatingEst: float64p(4.0), VisibleTags: map[string]struct{}{"artist:foo": {}}},
			threshold:   0.5,
			wantRefresh: true,
		},
		{
			name: "matching rating and tag subset needs no refresh",
			existing: &Existing{
				Rating:     float64p(4.0),
				DetailTags: map[string][]string{"artist": {"foo", "bar"}},
			},
			item:        ListItem{RatingEst: float64p(4.1), VisibleTags: map[string]struct{}{"artist:foo": {}}},
			threshold:   0.5,
			wantRefresh: false,
		},
		{
			name: "visible tag missing from stored detail tags triggers refresh",
			existing: &Existing{
				Rating:     float64p(4.0),
				DetailTags: map[string][]string{"artist": {"bar"}},
			},
			item:        ListItem{RatingEst: float64p(4.0), VisibleTags: map[string]struct{}{"artist:foo": {}}},
			threshold:   0.5,
			wantRefresh: true,
		},
		{
			name: "bucketed rating delta below threshold is not a refresh",
			existing: &Existing{
				Rating:     float64p(3.8),
				DetailTags: map[string][]string{"artist": {"foo"}},
			},
			item:        ListItem{RatingEst: float64p(4.0), VisibleTags: map[string]struct{}{"artist:foo": {}}},
			threshold:   0.5,
			wantRefresh: false,
		},
		{
			name: "bucketed rating delta at or above threshold is a refresh",
			existing: &Existing{
				Rating:     float64p(3.0),
				DetailTags: map[string][]string{"artist": {"foo"}},
			},
			item:        ListItem{RatingEst: float64p(4.0), VisibleTags: map[string]struct{}{"artist:foo": {}}},
			threshold:   0.5,
			wantRefresh: true,
		},
		{
			name: "list rating present but existing rating null triggers refresh",
			existing: &Existing{
				Rating:     nil,
				DetailTags: map[string][]string{"artist": {"foo"}},
			},
			item:        ListItem{RatingEst: float64p(4.0), VisibleTags: map[string]struct{}{"artist:foo": {}}},
			threshold:   0.5,
			wantRefresh: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresh, reason := Decide(tt.existing, tt.item, tt.threshold)
			assert.Equal(t, tt.wantRefresh, refresh, "reason: %s", reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestBucketRating(t *testing.T) {
	assert.Equal(t, 4.0, bucketRating(3.8))
	assert.Equal(t, 3.5, bucketRating(3.6))
	assert.Equal(t, 4.5, bucketRating(4.3))
}
