package trending

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caption.ttf")
	require.NoError(t, os.WriteFile(path, []byte("font"), 0600))
	return path
}

func TestNewFFmpegRenderer_RequiresFont(t *testing.T) {
	_, err := NewFFmpegRenderer("")
	assert.ErrorIs(t, err, ErrFontRequired)

	_, err = NewFFmpegRenderer(filepath.Join(t.TempDir(), "missing.ttf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "font not found")
}

func TestFFmpegRenderer_BuildArgs(t *testing.T) {
	fontPath := writeTestFont(t)
	renderer, err := NewFFmpegRenderer(fontPath)
	require.NoError(t, err)

	args := renderer.buildArgs("/tmp/preview.m4a", "hello", "/tmp/out.mp4")

	assert.Contains(t, args, "color=c=black:s=1080x1920:r=30")
	assert.Contains(t, args, "/tmp/preview.m4a")
	assert.Contains(t, args, "-shortest")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "aac")
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])

	var filter string
	for i, arg := range args {
		if arg == "-vf" {
			filter = args[i+1]
		}
	}
	assert.Contains(t, filter, "drawtext=fontfile=")
	assert.Contains(t, filter, "text=hello")
	assert.Contains(t, filter, "fontsize=80")
}

func TestFFmpegRenderer_BuildArgsWithOptions(t *testing.T) {
	fontPath := writeTestFont(t)
	renderer, err := NewFFmpegRenderer(fontPath,
		WithDimensions(720, 1280),
		WithBackgroundColor("navy"),
	)
	require.NoError(t, err)

	args := renderer.buildArgs("a.m4a", "caption", "out.mp4")
	assert.Contains(t, args, "color=c=navy:s=720x1280:r=30")
}

func TestEscapeDrawtext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with:colon", `with\:colon`},
		{"it's", `it\'s`},
		{`back\slash`, `back\\slash`},
		{"100%", `100\%`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeDrawtext(tt.in))
	}
}

func TestFFmpegRenderer_MissingBinary(t *testing.T) {
	fontPath := writeTestFont(t)
	renderer, err := NewFFmpegRenderer(fontPath,
		WithFFmpegPath(filepath.Join(t.TempDir(), "no-such-ffmpeg")),
	)
	require.NoError(t, err)

	err = renderer.Render(context.Background(), "a.m4a", "caption", filepath.Join(t.TempDir(), "out.mp4"))
	require.Error(t, err)

	var ffmpegErr *FFmpegError
	assert.ErrorAs(t, err, &ffmpegErr)
}
