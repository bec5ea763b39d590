package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/go-units"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"legalease/internal/logging"
)

const DefaultMediaTimeout = 30 * time.Second

var (
	ErrMediaHost     = errors.New("media host not allowed")
	ErrMediaStatus   = errors.New("media download failed")
	ErrMediaTooLarge = errors.New("media too large")
)

// DefaultMediaHosts are the suffixes Twilio serves message media from.
var DefaultMediaHosts = []string{"twilio.com", "twiliocdn.com"}

// MediaFetcher downloads a file attached to an incoming message.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaURL string) ([]byte, error)
}

type MediaConfig struct {
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
	// MaxSize caps the downloaded body in bytes.
	MaxSize int64
	// AllowedHosts are host suffixes the fetcher may contact. Empty means DefaultMediaHosts.
	AllowedHosts []string
}

// HTTPMediaFetcher downloads media with Twilio basic auth.
type HTTPMediaFetcher struct {
	cfg  MediaConfig
	http *http.Client
	log  *slog.Logger
}

var _ MediaFetcher = (*HTTPMediaFetcher)(nil)

type MediaOption func(*HTTPMediaFetcher)

func WithMediaHTTPClient(hc *http.Client) MediaOption {
	return func(f *HTTPMediaFetcher) { f.http = hc }
}

func WithMediaLogger(l *slog.Logger) MediaOption {
	return func(f *HTTPMediaFetcher) { f.log = l }
}

func NewHTTPMediaFetcher(cfg MediaConfig, opts ...MediaOption) *HTTPMediaFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMediaTimeout
	}
	if len(cfg.AllowedHosts) == 0 {
		cfg.AllowedHosts = DefaultMediaHosts
	}
	f := &HTTPMediaFetcher{cfg: cfg}
	for _, opt := range opts {
		opt(f)
	}
	f.log = logging.OrDiscard(f.log).With("component", "whatsapp.media")
	if f.http == nil {
		f.http = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return f
}

func (f *HTTPMediaFetcher) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	u, err := url.Parse(mediaURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMediaHost, mediaURL)
	}
	if !f.hostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrMediaHost, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	if f.cfg.AccountSID != "" {
		req.SetBasicAuth(f.cfg.AccountSID, f.cfg.AuthToken)
	}

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaStatus, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMediaStatus, resp.StatusCode)
	}
	if f.cfg.MaxSize > 0 && resp.ContentLength > f.cfg.MaxSize {
		return nil, fmt.Errorf("%w: %s", ErrMediaTooLarge, units.BytesSize(float64(resp.ContentLength)))
	}

	body := io.Reader(resp.Body)
	if f.cfg.MaxSize > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaStatus, err)
	}
	if f.cfg.MaxSize > 0 && int64(len(data)) > f.cfg.MaxSize {
		return nil, fmt.Errorf("%w: over %s", ErrMediaTooLarge, units.BytesSize(float64(f.cfg.MaxSize)))
	}

	f.log.Debug("media downloaded",
		"host", u.Hostname(),
		"bytes", len(data),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (f *HTTPMediaFetcher) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range f.cfg.AllowedHosts {
		allowed = strings.ToLower(strings.TrimPrefix(allowed, "."))
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
