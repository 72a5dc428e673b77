package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBanDuration(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{
			name: "hours and minutes",
			body: "You are temporarily banned (ban expires in 1 hour, 30 minutes)",
			want: time.Hour + 30*time.Minute,
		},
		{
			name: "minutes and seconds",
			body: "banned (ban expires in 5 minutes, 10 seconds) please wait",
			want: 5*time.Minute + 10*time.Second,
		},
		{
			name: "seconds only",
			body: "(ban expires in 45 seconds)",
			want: 45 * time.Second,
		},
		{
			name: "no recognizable unit falls back to default",
			body: "(ban expires in a little while)",
			want: defaultBanDuration,
		},
		{
			name: "no ban phrase at all falls back to default",
			body: "this response has nothing to do with bans",
			want: defaultBanDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBanDuration(tt.body)
			assert.Equal(t, tt.want, got)
		})
	}
}
