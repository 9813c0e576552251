package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	return path
}

func TestLocal_UploadWithDestinationName(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocal(base, nil)
	require.NoError(t, err)

	source := writeSource(t, "clip.mp4", "video-bytes")

	res, err := store.Upload(context.Background(), source, "trend/clip.mp4", "video/mp4")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("trend", "clip.mp4"), res.Key)
	assert.True(t, strings.HasPrefix(res.URL, "file://"))

	content, err := os.ReadFile(filepath.Join(base, "trend", "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(content))
}

func TestLocal_UploadGeneratesName(t *testing.T) {
	store, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	source := writeSource(t, "clip.mp4", "x")

	res, err := store.Upload(context.Background(), source, "", "")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.Key, ".mp4"))
	assert.NotEqual(t, "clip.mp4", res.Key)
}

func TestLocal_UploadMissingSource(t *testing.T) {
	store, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "", "")
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "does not exist")
}

func TestLocal_UploadRejectsEscapes(t *testing.T) {
	store, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	source := writeSource(t, "clip.mp4", "x")

	tests := []struct {
		name string
		dest string
	}{
		{"parent traversal", "../escape.mp4"},
		{"nested traversal", "a/../../escape.mp4"},
		{"absolute path", "/etc/escape.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Upload(context.Background(), source, tt.dest, "")
			require.Error(t, err)

			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, err.Error(), "storage:")
		})
	}
}

func TestLocal_DeleteExistingAndMissing(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocal(base, nil)
	require.NoError(t, err)

	source := writeSource(t, "clip.mp4", "x")
	res, err := store.Upload(context.Background(), source, "clip.mp4", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), res.Key))
	_, err = os.Stat(filepath.Join(base, "clip.mp4"))
	assert.True(t, os.IsNotExist(err))

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(context.Background(), res.Key))
}

func TestLocal_DeleteRejectsEscape(t *testing.T) {
	store, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	err = store.Delete(context.Background(), "../outside")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes storage root")
}
