package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/customHttpClient"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const sourceName = "zendesk"

// Client is a paginated, rate limited reader of the help center API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	backoff    time.Duration
	logger     *logger_i.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// New builds a client for {base_url}/{locale}.
func New(cfg config.SourceConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ragErrors.InvalidArgument("help center base url is empty")
	}
	if cfg.RateLimit <= 0 {
		return nil, ragErrors.InvalidArgument("help center rate limit must be positive, got %v", cfg.RateLimit)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Locale != "" {
		base += "/" + cfg.Locale
	}
	c := &Client{
		baseURL:    base,
		httpClient: customHttpClient.NewClient(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		retries:    max(cfg.Retries, 0),
		backoff:    cfg.Backoff,
		logger:     logger_i.NewLogger("Help Center Client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// getJSON fetches an endpoint relative to the base url, or an absolute next_page url,
// retrying transport errors, 429 and 5xx with exponential backoff.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (json.RawMessage, error) {
	url := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	log := c.logger.WithTrace(ctx)

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		log.Debug("Making request", "url", url, "attempt", attempt)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body = data
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("Request failed, retrying", "url", url, "attempt", attempt, "retries", c.retries, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries)), ctx), notify); err != nil {
		log.Error("Failed to fetch", "url", url, "attempts", attempt, "error", err)
		return nil, &ragErrors.SourceFetchError{Source: sourceName, URL: url, Err: err}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, &ragErrors.SourceFetchError{Source: sourceName, URL: url, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return body, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}
