package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ehking/social-admin/internal/config"
	"github.com/ehking/social-admin/internal/httpx"
)

// Translator converts caption text into the target language. Implementations
// must be safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// IdentityTranslator returns captions unchanged. Used when no external
// translation service is configured.
type IdentityTranslator struct{}

// Translate implements Translator.
func (IdentityTranslator) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// DefaultTranslateEndpoint is the unauthenticated Google Translate endpoint.
const DefaultTranslateEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator translates captions through the public Google Translate
// endpoint using the retrying HTTP client.
type GoogleTranslator struct {
	client   *httpx.Client
	endpoint string
	source   string
	target   string
	timeout  time.Duration
	logger   *slog.Logger
}

// TranslateOption configures a GoogleTranslator.
type TranslateOption func(*GoogleTranslator)

// WithTranslateEndpoint overrides the translation endpoint URL.
func WithTranslateEndpoint(endpoint string) TranslateOption {
	return func(t *GoogleTranslator) {
		t.endpoint = endpoint
	}
}

// WithTranslateLanguages sets the source and target language codes.
func WithTranslateLanguages(source, target string) TranslateOption {
	return func(t *GoogleTranslator) {
		t.source = source
		t.target = target
	}
}

// WithTranslateTimeout sets the per-request timeout.
func WithTranslateTimeout(d time.Duration) TranslateOption {
	return func(t *GoogleTranslator) {
		t.timeout = d
	}
}

// WithTranslateLogger sets the structured logger.
func WithTranslateLogger(logger *slog.Logger) TranslateOption {
	return func(t *GoogleTranslator) {
		t.logger = logger
	}
}

// NewGoogleTranslator creates a translator that targets Persian by default.
func NewGoogleTranslator(client *httpx.Client, opts ...TranslateOption) *GoogleTranslator {
	t := &GoogleTranslator{
		client:   client,
		endpoint: DefaultTranslateEndpoint,
		source:   "auto",
		target:   "fa",
		timeout:  10 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate implements Translator. The endpoint answers with nested JSON
// arrays; the translation is the concatenation of the first element of each
// segment in the first array.
func (t *GoogleTranslator) Translate(ctx context.Context, text string) (string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", t.source)
	query.Set("tl", t.target)
	query.Set("dt", "t")
	query.Set("q", text)

	resp, err := t.client.Do(ctx, "GET", t.endpoint+"?"+query.Encode(), httpx.RequestOptions{Timeout: t.timeout})
	if err != nil {
		return "", fmt.Errorf("trending: translate request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("trending: decode translation: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("trending: empty translation response")
	}

	var segments []json.RawMessage
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", fmt.Errorf("trending: decode translation segments: %w", err)
	}

	var sb strings.Builder
	for _, segment := range segments {
		var parts []json.RawMessage
		if err := json.Unmarshal(segment, &parts); err != nil {
			return "", fmt.Errorf("trending: decode translation segment: %w", err)
		}
		if len(parts) == 0 {
			continue
		}
		var translated string
		if err := json.Unmarshal(parts[0], &translated); err != nil {
			return "", fmt.Errorf("trending: decode translated text: %w", err)
		}
		sb.WriteString(translated)
	}

	result := sb.String()
	t.logger.Debug("translated caption",
		slog.String("source", t.source),
		slog.String("target", t.target),
		slog.Int("length", len(result)),
	)
	return result, nil
}

// NewTranslatorFromConfig selects the configured caption translator.
func NewTranslatorFromConfig(cfg *config.Config, client *httpx.Client) (Translator, error) {
	switch cfg.CaptionTranslator {
	case "identity":
		return IdentityTranslator{}, nil
	case "google":
		return NewGoogleTranslator(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTranslator, cfg.CaptionTranslator)
	}
}
