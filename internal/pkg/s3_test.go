package pkg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIconKey(t *testing.T) {
	key := IconKey(7, "Logo.PNG")
	assert.True(t, strings.HasPrefix(key, "subreddit_icons/7/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
}

func TestS3Store_URLRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		store *S3Store
		want  string
	}{
		{
			name:  "public url",
			store: &S3Store{bucket: "b", region: "r", publicURL: "https://cdn.example.com"},
			want:  "https://cdn.example.com/k/1.png",
		},
		{
			name:  "minio endpoint",
			store: &S3Store{bucket: "b", region: "r", endpoint: "http://localhost:9000"},
			want:  "http://localhost:9000/b/k/1.png",
		},
		{
			name:  "aws default",
			store: &S3Store{bucket: "b", region: "us-east-1"},
			want:  "https://b.s3.us-east-1.amazonaws.com/k/1.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := tt.store.URL("k/1.png")
			assert.Equal(t, tt.want, url)
			assert.Equal(t, "k/1.png", tt.store.KeyFromURL(url))
		})
	}
}
