package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedSleeper captures backoff delays instead of sleeping.
func recordedSleeper(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestErrorKind_Retryable(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindNetwork, true},
		{KindRateLimited, true},
		{KindServer, true},
		{KindClient, false},
		{KindSchema, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
		})
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(WithMaxAttempts(3), WithBackoff(0, 0))
	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, RequestOptions{})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_FlakyEndpointSucceedsOnFinalAttempt(t *testing.T) {
	const failures = 2

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	client := NewClient(
		WithMaxAttempts(failures+1),
		WithBackoff(100*time.Millisecond, 150*time.Millisecond),
		withSleep(recordedSleeper(&delays)),
	)

	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, RequestOptions{})
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, int32(failures+1), calls.Load())
	require.Len(t, delays, failures)
	// Delays are non-decreasing and capped at the max backoff.
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 150*time.Millisecond, delays[1])
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var delays []time.Duration
	client := NewClient(WithMaxAttempts(3), WithBackoff(time.Millisecond, time.Second), withSleep(recordedSleeper(&delays)))

	_, err := client.Do(context.Background(), http.MethodGet, srv.URL, RequestOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, delays, 2)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindServer, kind)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithMaxAttempts(5), WithBackoff(0, 0))
	_, err := client.Do(context.Background(), http.MethodGet, srv.URL, RequestOptions{})
	require.Error(t, err)

	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindClient, re.Kind)
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_RateLimitedRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(WithMaxAttempts(2), WithBackoff(0, 0))
	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, RequestOptions{})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_MalformedURLFailsImmediately(t *testing.T) {
	client := NewClient(WithMaxAttempts(3), WithBackoff(0, 0))

	_, err := client.Do(context.Background(), http.MethodGet, "://not-a-url", RequestOptions{})
	require.Error(t, err)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindSchema, kind)
}

func TestDo_NetworkErrorRetried(t *testing.T) {
	// Server is closed immediately so every attempt fails at the transport.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	var delays []time.Duration
	client := NewClient(WithMaxAttempts(2), WithBackoff(time.Millisecond, time.Millisecond), withSleep(recordedSleeper(&delays)))

	_, err := client.Do(context.Background(), http.MethodGet, url, RequestOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, kind)
	assert.Len(t, delays, 1)
}

func TestDo_ZeroMinBackoffSkipsSleep(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	slept := false
	client := NewClient(WithMaxAttempts(3), WithBackoff(0, time.Minute), withSleep(func(context.Context, time.Duration) error {
		slept = true
		return nil
	}))

	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, RequestOptions{})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.False(t, slept)
}

func TestBackoffFor_CapsAtMax(t *testing.T) {
	client := NewClient(WithBackoff(time.Second, 4*time.Second))

	assert.Equal(t, time.Second, client.backoffFor(1))
	assert.Equal(t, 2*time.Second, client.backoffFor(2))
	assert.Equal(t, 4*time.Second, client.backoffFor(3))
	assert.Equal(t, 4*time.Second, client.backoffFor(10))
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(WithMaxAttempts(3), WithBackoff(time.Millisecond, time.Millisecond), withSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := client.Do(ctx, http.MethodGet, srv.URL, RequestOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
