package simplemirror_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		filename    string
		folder      string
		contentType string
	}{
		{"photo.png", "image", "image/png"},
		{"photo.JPG", "image", "image/jpeg"},
		{"banner.webp", "image", "image/webp"},
		{"clip.mp4", "video", "video/mp4"},
		{"doc.pdf", "application", "application/pdf"},
		{"notes.txt", "text", "text/plain"},
		{"data.unknownext", "any", "application/octet-stream"},
		{"no-extension", "any", "application/octet-stream"},
		{"", "any", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			c := simplemirror.Classify(tt.filename)
			assert.Equal(t, tt.folder, c.Folder)
			assert.Equal(t, tt.contentType, c.ContentType)
		})
	}
}

func TestSubFolder(t *testing.T) {
	t.Run("Stable", func(t *testing.T) {
		assert.Equal(t, "stable", simplemirror.SubFolder(true, fixedClock()))
	})

	t.Run("DateBucketInUTCPlus7", func(t *testing.T) {
		assert.Equal(t, "20240201", simplemirror.SubFolder(false, fixedClock()))
	})

	t.Run("SameDayBeforeCutover", func(t *testing.T) {
		ts := time.Date(2024, 1, 31, 16, 59, 59, 0, time.UTC)
		assert.Equal(t, "20240131", simplemirror.SubFolder(false, ts))
	})
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"simple", "https://example.com/a/b/photo.png", "photo.png", false},
		{"query ignored", "https://example.com/photo.png?w=100", "photo.png", false},
		{"escaped kept", "https://example.com/my%20photo.png", "my%20photo.png", false},
		{"trailing slash", "https://example.com/images/", "", true},
		{"no path", "https://example.com", "", true},
		{"malformed", "://bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := simplemirror.FilenameFromURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, simplemirror.ErrNoFilename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectKey(t *testing.T) {
	stable := simplemirror.ClassifyForRequest("Report Q1.pdf", true, time.Now())
	assert.Equal(t, "new/application/stable/Report Q1.pdf", simplemirror.ObjectKey(stable, "Report Q1.pdf"))

	dated := simplemirror.ClassifyForRequest("photo.png", false, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "new/image/20240201/photo.png", simplemirror.ObjectKey(dated, "photo.png"))

	unknown := simplemirror.Classify("blob.unknownext")
	unknown.SubFolder = simplemirror.StableSubFolder
	assert.Equal(t, "new/any/stable/a_b", simplemirror.ObjectKey(unknown, "a/b"))
}
