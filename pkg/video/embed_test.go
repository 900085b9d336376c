package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEmbedURL(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		want     string
		resolved bool
	}{
		{
			name:     "youtube watch link",
			raw:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want:     "https://www.youtube.com/embed/dQw4w9WgXcQ",
			resolved: true,
		},
		{
			name:     "youtube watch link with extra params",
			raw:      "https://youtube.com/watch?v=abc123&t=42s",
			want:     "https://www.youtube.com/embed/abc123",
			resolved: true,
		},
		{
			name:     "youtube short link",
			raw:      "https://youtu.be/dQw4w9WgXcQ",
			want:     "https://www.youtube.com/embed/dQw4w9WgXcQ",
			resolved: true,
		},
		{
			name:     "youtube without video id passes through",
			raw:      "https://www.youtube.com/playlist?list=PL123",
			want:     "https://www.youtube.com/playlist?list=PL123",
			resolved: true,
		},
		{
			name:     "vimeo passes through",
			raw:      "https://vimeo.com/123456789",
			want:     "https://vimeo.com/123456789",
			resolved: true,
		},
		{
			name:     "unknown host passes through",
			raw:      "https://videos.example.com/lesson-1.mp4",
			want:     "https://videos.example.com/lesson-1.mp4",
			resolved: true,
		},
		{
			name:     "empty input",
			raw:      "",
			want:     "",
			resolved: false,
		},
		{
			name:     "not a url",
			raw:      "not a url at all",
			want:     "",
			resolved: false,
		},
		{
			name:     "relative path",
			raw:      "/local/video.mp4",
			want:     "",
			resolved: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveEmbedURL(tc.raw)
			assert.Equal(t, tc.resolved, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
