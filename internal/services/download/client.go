package download

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"imgsync/internal/config"
	"imgsync/internal/logging"
	"imgsync/internal/services"
)

const (
	partSuffix     = ".part"
	defaultTimeout = 300 * time.Second
)

// Progress describes a transfer in flight. Percent is only reported when the
// server announced a Content-Length.
type Progress struct {
	URL        string
	Percent    float64
	Downloaded int64
	Total      int64
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	VerifyTLS         bool
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// Client downloads remote assets.
type Client struct {
	http      *http.Client
	userAgent string
	limits    *hostLimiters
	logger    *slog.Logger
}

// New constructs a Client. TLS certificate verification is skipped unless
// VerifyTLS is set.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // download.verify_tls opts back in
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout, Transport: transport},
		userAgent: opts.UserAgent,
		limits:    newHostLimiters(opts.RequestsPerSecond, opts.Burst),
		logger:    logging.NewComponentLogger(opts.Logger, "download"),
	}
}

// NewFromConfig constructs a Client from the [download] config section.
func NewFromConfig(cfg config.Download, logger *slog.Logger) *Client {
	return New(Options{
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		VerifyTLS:         cfg.VerifyTLS,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Logger:            logger,
	})
}

// Fetch downloads rawURL to dest and returns the number of bytes written.
// Failures return a *services.DownloadError and leave neither dest nor the
// partial file behind.
func (c *Client) Fetch(ctx context.Context, rawURL, dest string, progress func(Progress)) (int64, error) {
	written, err := c.fetch(ctx, rawURL, dest, progress)
	if err != nil {
		return 0, &services.DownloadError{URL: rawURL, Err: err}
	}
	return written, nil
}

func (c *Client) fetch(ctx context.Context, rawURL, dest string, progress func(Progress)) (int64, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse url: %w", err)
	}
	if err := c.limits.wait(ctx, parsed.Host); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	partPath := dest + partSuffix
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open partial file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = file.Close()
			_ = os.Remove(partPath)
		}
	}()

	var body io.Reader = resp.Body
	if progress != nil && resp.ContentLength > 0 {
		body = &progressReader{
			reader: resp.Body,
			total:  resp.ContentLength,
			url:    rawURL,
			report: progress,
			last:   -1,
		}
	}

	written, err := io.Copy(file, body)
	if err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return 0, fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(partPath, dest); err != nil {
		return 0, fmt.Errorf("finalize download: %w", err)
	}
	committed = true

	logging.WithContext(ctx, c.logger).Debug("asset downloaded",
		logging.URL(rawURL),
		logging.String("path", dest),
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(started)),
	)
	return written, nil
}

type progressReader struct {
	reader io.Reader
	total  int64
	read   int64
	url    string
	report func(Progress)
	last   int
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		percent := min(float64(r.read)*100/float64(r.total), 100)
		// Whole-percent steps keep the callback rate bounded on large files.
		if whole := int(percent); whole > r.last {
			r.last = whole
			r.report(Progress{URL: r.url, Percent: percent, Downloaded: r.read, Total: r.total})
		}
	}
	return n, err
}

type hostLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	hosts map[string]*rate.Limiter
}

func newHostLimiters(rps float64, burst int) *hostLimiters {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &hostLimiters{limit: rate.Limit(rps), burst: burst, hosts: make(map[string]*rate.Limiter)}
}

func (h *hostLimiters) wait(ctx context.Context, host string) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	limiter, ok := h.hosts[host]
	if !ok {
		limiter = rate.NewLimiter(h.limit, h.burst)
		h.hosts[host] = limiter
	}
	h.mu.Unlock()
	if err := limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
