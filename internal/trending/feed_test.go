package trending

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehking/social-admin/internal/httpx"
)

const sampleFeed = `{
  "feed": {
    "entry": [
      {
        "im:name": {"label": "First Song"},
        "im:artist": {"label": "First Artist"},
        "link": [
          {"attributes": {"type": "text/html", "href": "https://example.com/page"}},
          {"attributes": {"type": "audio/x-m4a", "href": "https://example.com/first.m4a"}}
        ]
      },
      {
        "im:name": {"label": "No Preview"},
        "im:artist": {"label": "Second Artist"},
        "link": [
          {"attributes": {"type": "text/html", "href": "https://example.com/page"}}
        ]
      },
      {
        "im:name": {"label": ""},
        "im:artist": {"label": "Nameless"},
        "link": [
          {"attributes": {"type": "audio/x-m4a", "href": "https://example.com/nameless.m4a"}}
        ]
      },
      {
        "im:name": {"label": "Second Song"},
        "im:artist": {"label": ""},
        "link": [
          {"attributes": {"type": "audio/x-m4a", "href": "https://example.com/second.m4a"}}
        ]
      }
    ]
  }
}`

func TestFetchTrendingTracks(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client := httpx.NewClient(httpx.WithBackoff(0, 0))
	feed := NewFeedClient(client, WithFeedBaseURL(server.URL))

	tracks, err := feed.FetchTrendingTracks(context.Background(), "us", 4)
	require.NoError(t, err)

	assert.Equal(t, "/us/rss/topsongs/limit=4/json", requestedPath)

	// Entries without a preview link or a title are dropped.
	require.Len(t, tracks, 2)
	assert.Equal(t, Track{
		Title:      "First Song",
		Artist:     "First Artist",
		PreviewURL: "https://example.com/first.m4a",
	}, tracks[0])
	assert.Equal(t, Track{
		Title:      "Second Song",
		PreviewURL: "https://example.com/second.m4a",
	}, tracks[1])
}

func TestFetchTrendingTracks_EmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"feed": {}}`))
	}))
	defer server.Close()

	client := httpx.NewClient(httpx.WithBackoff(0, 0))
	feed := NewFeedClient(client, WithFeedBaseURL(server.URL))

	tracks, err := feed.FetchTrendingTracks(context.Background(), "us", 10)
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestFetchTrendingTracks_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := httpx.NewClient(httpx.WithMaxAttempts(2), httpx.WithBackoff(0, 0))
	feed := NewFeedClient(client, WithFeedBaseURL(server.URL))

	_, err := feed.FetchTrendingTracks(context.Background(), "us", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrAttemptsExhausted)
}

func TestFetchTrendingTracks_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := httpx.NewClient(httpx.WithBackoff(0, 0))
	feed := NewFeedClient(client, WithFeedBaseURL(server.URL))

	_, err := feed.FetchTrendingTracks(context.Background(), "us", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}
