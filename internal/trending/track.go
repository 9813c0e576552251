// Package trending assembles short captioned videos from trending music
// previews: it fetches the chart feed, downloads audio previews under a
// concurrency bound, renders a vertical video, and uploads the result.
package trending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Track is one entry from the trending songs feed.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	PreviewURL string `json:"preview_url"`
}

// DisplayName returns a human-friendly name for the track, falling back
// through title+artist, title, artist, and preview URL.
func (t Track) DisplayName() string {
	title := strings.TrimSpace(t.Title)
	artist := strings.TrimSpace(t.Artist)

	switch {
	case title != "" && artist != "":
		return title + " — " + artist
	case title != "":
		return title
	case artist != "":
		return artist
	}

	if preview := strings.TrimSpace(t.PreviewURL); preview != "" {
		return preview
	}
	return "Unknown Track"
}

// SerializeTracks writes the track list as indented JSON to destination,
// creating parent directories as needed. Useful for inspecting or caching a
// fetched chart.
func SerializeTracks(tracks []Track, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0750); err != nil {
		return fmt.Errorf("trending: create serialization directory: %w", err)
	}

	data, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return fmt.Errorf("trending: marshal tracks: %w", err)
	}
	if err := os.WriteFile(destination, data, 0640); err != nil {
		return fmt.Errorf("trending: write track list: %w", err)
	}
	return nil
}
