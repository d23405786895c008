package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"AlphaRadar/internal/domain/models"
	drepo "AlphaRadar/internal/domain/repository"
	apphttp "AlphaRadar/pkg/http"
	applogger "AlphaRadar/pkg/logger"
)

const (
	DefaultSourceTitle = "report"
	DefaultSourceURI   = "#"
)

// SourceError wraps every failure returned by Fetch.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return "signal source: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

// Option configures Client.
type Option func(*Client)

// WithAPIKey sends key in header on every request. Empty values disable it.
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		c.apiKeyHeader = header
		c.apiKey = key
	}
}

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the number of attempts and the base delay between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client fetches the alpha list over HTTP. The endpoint returns either
// {"data": [...], "sources": [...]} or a bare array of assets.
type Client struct {
	url          string
	apiKeyHeader string
	apiKey       string
	timeout      time.Duration
	attempts     int
	backoff      time.Duration
	log          *applogger.Logger
	http         *apphttp.Client
}

// New creates a signal source client for url.
func New(url string, opts ...Option) drepo.SignalSource {
	c := &Client{
		url:      url,
		timeout:  60 * time.Second,
		attempts: 2,
		backoff:  time.Second,
		log:      applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = apphttp.NewClient(
		apphttp.WithTimeout(c.timeout),
		apphttp.WithHeader(c.apiKeyHeader, c.apiKey),
		apphttp.WithHeader("Accept", "application/json"),
	)
	return c
}

// Fetch retrieves the current list, retrying transient failures.
func (c *Client) Fetch(ctx context.Context) (models.FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		res, err := c.fetchOnce(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if attempt == c.attempts || !retryable(ctx, err) {
			break
		}

		delay := c.backoff * time.Duration(attempt)
		c.log.Warn("signal source attempt failed, retrying",
			applogger.Int("attempt", attempt),
			applogger.Duration("delay_ms", delay),
			applogger.Error(err),
		)
		select {
		case <-ctx.Done():
			return models.FetchResult{}, &SourceError{Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
	return models.FetchResult{}, &SourceError{Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context) (models.FetchResult, error) {
	var body []byte
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.url,
	}, &body)
	if err != nil {
		return models.FetchResult{}, err
	}
	return Decode(body)
}

type envelope struct {
	Data    []models.Asset  `json:"data"`
	Sources []models.Source `json:"sources"`
}

// Decode parses a source payload, drops assets without a symbol and fills
// missing source titles and links.
func Decode(body []byte) (models.FetchResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return models.FetchResult{}, errors.New("empty response body")
	}

	var env envelope
	if body[0] == '[' {
		if err := json.Unmarshal(body, &env.Data); err != nil {
			return models.FetchResult{}, fmt.Errorf("decode assets: %w", err)
		}
	} else if err := json.Unmarshal(body, &env); err != nil {
		return models.FetchResult{}, fmt.Errorf("decode response: %w", err)
	}

	res := models.FetchResult{
		Data:    make([]models.Asset, 0, len(env.Data)),
		Sources: make([]models.Source, 0, len(env.Sources)),
	}
	for _, a := range env.Data {
		a.Symbol = strings.TrimSpace(a.Symbol)
		if a.Symbol == "" {
			continue
		}
		res.Data = append(res.Data, a)
	}
	for _, s := range env.Sources {
		if s.Title == "" {
			s.Title = DefaultSourceTitle
		}
		if s.URI == "" {
			s.URI = DefaultSourceURI
		}
		res.Sources = append(res.Sources, s)
	}
	return res, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *apphttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// decode errors will not change on retry
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return !errors.As(err, &syn) && !errors.As(err, &typ)
}
