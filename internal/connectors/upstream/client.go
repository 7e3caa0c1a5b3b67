package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// Ensure Client implements the interfaces.
var _ driven.Upstream = (*Client)(nil)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client talks to the property data provider over HTTP.
type Client struct {
	cfg         Config
	http        *http.Client
	rateLimiter *RateLimiter

	randMu sync.Mutex
	rand   *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSleep overrides the backoff sleep. Useful for testing.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithRateLimiter overrides the rate limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) {
		if rl != nil {
			c.rateLimiter = rl
		}
	}
}

// NewClient creates a provider client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.RequestTimeout},
		rateLimiter: NewRateLimiter(cfg.RatePerSecond),
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RateLimiter returns the client's rate limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// AcquireCredential requests a fresh bearer token via OAuth2 client credentials.
func (c *Client) AcquireCredential(ctx context.Context) (domain.Credential, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return domain.Credential{}, domain.ErrAuthRequired
	}

	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.BaseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return domain.Credential{}, fmt.Errorf("rate limit wait: %w", err)
	}

	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		return domain.Credential{}, c.wrapTokenError(err)
	}
	if tok.AccessToken == "" {
		return domain.Credential{}, fmt.Errorf("token response: empty access token: %w", domain.ErrAuthInvalid)
	}

	logger.Debug("upstream: acquired credential (expires %s)", tok.Expiry.Format(time.RFC3339))
	return domain.Credential{Token: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// FetchListing performs the paged listing query, retrying transient failures.
func (c *Client) FetchListing(
	ctx context.Context, cred domain.Credential, q domain.ListingQuery,
) (*domain.ListingPage, error) {
	if q.Feed == "" {
		return nil, fmt.Errorf("feed key: %w", domain.ErrInvalidInput)
	}

	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	path := fmt.Sprintf(listingPath, url.PathEscape(q.Feed))

	var resp listingResponse
	err := c.retry(ctx, "fetch listing", func() error {
		resp = listingResponse{}
		return c.getJSON(ctx, cred, path, params, &resp)
	})
	if err != nil {
		return nil, err
	}

	page := resp.toPage()
	if page.Page == 0 {
		page.Page = q.Page
	}
	if page.PageSize == 0 {
		page.PageSize = q.PageSize
	}
	logger.Debug("upstream: listing page %d returned %d items (%d included assets)",
		page.Page, len(page.Items), page.Includes.Len())
	return page, nil
}

// ItemImages returns the image references of a single item.
func (c *Client) ItemImages(ctx context.Context, cred domain.Credential, itemID string) ([]domain.ImageRef, error) {
	if itemID == "" {
		return nil, fmt.Errorf("item id: %w", domain.ErrInvalidInput)
	}

	var resp itemImagesResponse
	path := fmt.Sprintf(itemImagesPath, url.PathEscape(itemID))
	if err := c.getJSON(ctx, cred, path, nil, &resp); err != nil {
		return nil, err
	}
	return decodeImageRefs(resp.Images), nil
}

// LookupAsset resolves a single asset by ID.
func (c *Client) LookupAsset(ctx context.Context, cred domain.Credential, assetID string) (*domain.Asset, error) {
	if assetID == "" {
		return nil, fmt.Errorf("asset id: %w", domain.ErrInvalidInput)
	}

	var resp wireAsset
	path := fmt.Sprintf(assetPath, url.PathEscape(assetID))
	if err := c.getJSON(ctx, cred, path, nil, &resp); err != nil {
		return nil, err
	}

	asset := resp.toAsset()
	if asset.ID == "" {
		asset.ID = assetID
	}
	return &asset, nil
}

// getJSON issues an authenticated GET and decodes a 2xx JSON body into out.
func (c *Client) getJSON(
	ctx context.Context, cred domain.Credential, path string, params url.Values, out any,
) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	target := c.cfg.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &networkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if err := c.rateLimiter.CheckRateLimit(resp); err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, URL: target}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// retry runs op, retrying transient failures with exponential backoff
// and jitter. Rate limit errors wait until the advertised reset instead.
func (c *Client) retry(ctx context.Context, what string, op func() error) error {
	delay := RetryDelay
	var err error

	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt >= c.cfg.MaxRetries || !isRetryable(err) {
			return err
		}

		wait := delay + c.jitter(delay)
		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			if until := time.Until(rlErr.ResetAt); until > 0 {
				wait = until
			}
		}
		if wait > MaxRetryDelay {
			wait = MaxRetryDelay
		}

		logger.Warn("upstream: %s failed (attempt %d/%d), retrying in %s: %v",
			what, attempt+1, c.cfg.MaxRetries+1, wait, err)
		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}

		delay *= 2
		if delay > MaxRetryDelay {
			delay = MaxRetryDelay
		}
	}
}

func (c *Client) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return time.Duration(c.rand.Int63n(int64(d)))
}

// wrapTokenError maps an oauth2 token failure to connector errors.
func (c *Client) wrapTokenError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		status := rErr.Response.StatusCode
		msg := rErr.ErrorCode
		if msg == "" {
			msg = strings.TrimSpace(string(rErr.Body))
		}
		if status == http.StatusBadRequest {
			// invalid_client and invalid_grant come back as 400.
			status = http.StatusUnauthorized
		}
		return fmt.Errorf("acquire token: %w", &APIError{
			StatusCode: status,
			Message:    msg,
			URL:        c.cfg.BaseURL + tokenPath,
		})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquire token: %w", err)
	}
	return fmt.Errorf("acquire token: %w", &networkError{URL: c.cfg.BaseURL + tokenPath, Err: err})
}
