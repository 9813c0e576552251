package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ehking/social-admin/internal/httpx"
)

// DefaultFeedBaseURL is the Apple Music RSS endpoint serving the top songs
// chart.
const DefaultFeedBaseURL = "https://itunes.apple.com"

// previewLinkType marks feed links that point at a playable audio preview.
const previewLinkType = "audio/x-m4a"

// FeedClient fetches trending tracks from the top songs RSS feed.
type FeedClient struct {
	client  *httpx.Client
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// FeedOption configures a FeedClient.
type FeedOption func(*FeedClient)

// WithFeedBaseURL overrides the feed endpoint base URL.
func WithFeedBaseURL(baseURL string) FeedOption {
	return func(f *FeedClient) {
		f.baseURL = baseURL
	}
}

// WithFeedTimeout sets the per-request timeout for feed fetches.
func WithFeedTimeout(d time.Duration) FeedOption {
	return func(f *FeedClient) {
		f.timeout = d
	}
}

// WithFeedLogger sets the structured logger.
func WithFeedLogger(logger *slog.Logger) FeedOption {
	return func(f *FeedClient) {
		f.logger = logger
	}
}

// NewFeedClient creates a feed client backed by the retrying HTTP client.
func NewFeedClient(client *httpx.Client, opts ...FeedOption) *FeedClient {
	f := &FeedClient{
		client:  client,
		baseURL: DefaultFeedBaseURL,
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// feedPayload mirrors the subset of the RSS JSON document the pipeline reads.
type feedPayload struct {
	Feed struct {
		Entry []feedEntry `json:"entry"`
	} `json:"feed"`
}

type feedEntry struct {
	Name   feedLabel  `json:"im:name"`
	Artist feedLabel  `json:"im:artist"`
	Link   []feedLink `json:"link"`
}

type feedLabel struct {
	Label string `json:"label"`
}

type feedLink struct {
	Attributes struct {
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"attributes"`
}

// FetchTrendingTracks fetches the top songs chart for a country and returns
// the entries that carry both a title and an audio preview link. Entries
// without a preview are silently dropped.
func (f *FeedClient) FetchTrendingTracks(ctx context.Context, country string, limit int) ([]Track, error) {
	url := fmt.Sprintf("%s/%s/rss/topsongs/limit=%d/json", f.baseURL, country, limit)
	f.logger.Debug("fetching top songs feed", slog.String("url", url))

	resp, err := f.client.Do(ctx, "GET", url, httpx.RequestOptions{Timeout: f.timeout})
	if err != nil {
		return nil, fmt.Errorf("trending: fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload feedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("trending: decode feed: %w", err)
	}

	tracks := make([]Track, 0, len(payload.Feed.Entry))
	for _, entry := range payload.Feed.Entry {
		previewURL := ""
		for _, link := range entry.Link {
			if link.Attributes.Type == previewLinkType && link.Attributes.Href != "" {
				previewURL = link.Attributes.Href
				break
			}
		}
		if entry.Name.Label == "" || previewURL == "" {
			continue
		}
		tracks = append(tracks, Track{
			Title:      entry.Name.Label,
			Artist:     entry.Artist.Label,
			PreviewURL: previewURL,
		})
	}

	f.logger.Info("fetched trending tracks",
		slog.String("country", country),
		slog.Int("limit", limit),
		slog.Int("count", len(tracks)),
	)
	return tracks, nil
}
