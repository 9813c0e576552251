package trending

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrFontRequired is returned when a renderer is created without a caption font.
var ErrFontRequired = errors.New("trending: font path is required")

// Renderer produces a captioned video from an audio track.
type Renderer interface {
	// Render writes a vertical video to destination using the audio at
	// audioPath with caption drawn over the background.
	Render(ctx context.Context, audioPath, caption, destination string) error
}

// Compile-time check that FFmpegRenderer implements Renderer.
var _ Renderer = (*FFmpegRenderer)(nil)

// FFmpegRenderer implements Renderer using the ffmpeg CLI: a solid color
// background sized for vertical playback, the caption drawn centered, and the
// preview audio muxed in.
type FFmpegRenderer struct {
	ffmpegPath      string
	fontPath        string
	width           int
	height          int
	frameRate       int
	fontSize        int
	backgroundColor string
}

// RendererOption configures an FFmpegRenderer.
type RendererOption func(*FFmpegRenderer)

// WithFFmpegPath sets the ffmpeg binary path. Defaults to "ffmpeg" on PATH.
func WithFFmpegPath(path string) RendererOption {
	return func(r *FFmpegRenderer) {
		r.ffmpegPath = path
	}
}

// WithDimensions sets the output video dimensions.
func WithDimensions(width, height int) RendererOption {
	return func(r *FFmpegRenderer) {
		r.width = width
		r.height = height
	}
}

// WithBackgroundColor sets the background color name or hex value.
func WithBackgroundColor(color string) RendererOption {
	return func(r *FFmpegRenderer) {
		r.backgroundColor = color
	}
}

// NewFFmpegRenderer creates a renderer that draws captions with the font at
// fontPath. The font file must exist.
func NewFFmpegRenderer(fontPath string, opts ...RendererOption) (*FFmpegRenderer, error) {
	if fontPath == "" {
		return nil, ErrFontRequired
	}
	if _, err := os.Stat(fontPath); err != nil {
		return nil, fmt.Errorf("trending: font not found at %s: %w", fontPath, err)
	}

	r := &FFmpegRenderer{
		ffmpegPath:      "ffmpeg",
		fontPath:        fontPath,
		width:           1080,
		height:          1920,
		frameRate:       30,
		fontSize:        80,
		backgroundColor: "black",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render implements Renderer.
func (r *FFmpegRenderer) Render(ctx context.Context, audioPath, caption, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0750); err != nil {
		return fmt.Errorf("trending: create render directory: %w", err)
	}
	return r.runFFmpeg(ctx, r.buildArgs(audioPath, caption, destination))
}

// buildArgs assembles the ffmpeg invocation: a lavfi color source sized WxH
// at the configured frame rate, the audio input, and a drawtext filter for
// the caption. -shortest trims the video to the audio duration.
func (r *FFmpegRenderer) buildArgs(audioPath, caption, destination string) []string {
	background := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", r.backgroundColor, r.width, r.height, r.frameRate)
	drawtext := fmt.Sprintf(
		"drawtext=fontfile=%s:text=%s:fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2",
		escapeDrawtext(r.fontPath),
		escapeDrawtext(caption),
		r.fontSize,
	)

	return []string{
		"-y",
		"-f", "lavfi",
		"-i", background,
		"-i", audioPath,
		"-vf", drawtext,
		"-shortest",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		destination,
	}
}

// runFFmpeg executes ffmpeg and returns an error carrying stderr output when
// the command fails.
func (r *FFmpegRenderer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("trending: ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// escapeDrawtext escapes the characters the drawtext filter treats specially.
func escapeDrawtext(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(s)
}

// FFmpegError represents a failed ffmpeg run, including its stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("trending: ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
