// Package jsearch implements scanner.Provider against the JSearch job-search
// API on RapidAPI, using a colly collector per request.
package jsearch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Defaults for the public JSearch endpoint.
const (
	DefaultBaseURL = "https://jsearch.p.rapidapi.com"
	DefaultHost    = "jsearch.p.rapidapi.com"
	defaultTimeout = 30 * time.Second
)

// Key values shipped in sample env files. They are treated as unset.
var placeholderKeys = map[string]struct{}{
	"your_rapidapi_key_here":        {},
	"your_actual_rapidapi_key_here": {},
}

// Config controls the client.
type Config struct {
	APIKey    string
	BaseURL   string
	Host      string
	NumPages  int
	Timeout   time.Duration
	UserAgent string
}

// Waiter throttles outbound calls per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Client calls the JSearch search endpoint.
type Client struct {
	cfg           Config
	limiter       Waiter
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Client. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.NumPages <= 0 {
		cfg.NumPages = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	// Clones share the HTTP backend, so transport and timeout are set once here.
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	return &Client{
		cfg:           cfg,
		limiter:       limiter,
		logger:        logger,
		baseCollector: c,
	}
}

// Configured reports whether a usable API key is present.
func (c *Client) Configured() bool {
	return KeyConfigured(c.cfg.APIKey)
}

// KeyConfigured reports whether key is non-empty and not a sample placeholder.
func KeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	_, placeholder := placeholderKeys[strings.ToLower(key)]
	return !placeholder
}

// Search runs one query and returns the normalized postings. Postings have no
// identity key yet; the fetcher assigns it.
func (c *Client) Search(ctx context.Context, q scanner.Query) ([]scanner.JobPosting, error) {
	if !c.Configured() {
		return nil, scanner.ErrProviderNotConfigured
	}
	target := c.searchURL(q)
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return nil, err
		}
	}

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector := c.buildCollector()
	colly.StdlibContext(ctx)(collector)
	c.configureCollectorHooks(collector, &body, &statusCode, &fetchErr)

	start := time.Now()
	err := c.runCollector(ctx, collector, target)
	if errors.Is(err, errVisitAbandoned) {
		// The visit goroutine may still be writing the hook state.
		c.logger.Debug("provider request abandoned",
			zap.String("query", q.SearchText()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", scanner.ErrUpstreamTimeout, err)
		}
		return nil, err
	}
	c.logger.Debug("provider request finished",
		zap.String("query", q.SearchText()),
		zap.Int("status", statusCode),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return nil, classify(err, statusCode, fetchErr)
	}

	postings, err := Decode(body)
	if err != nil {
		return nil, err
	}
	return postings, nil
}

func (c *Client) searchURL(q scanner.Query) string {
	params := url.Values{}
	params.Set("query", q.SearchText())
	params.Set("page", "1")
	params.Set("num_pages", strconv.Itoa(c.cfg.NumPages))
	if q.DatePosted != "" {
		params.Set("date_posted", q.DatePosted)
	}
	return c.cfg.BaseURL + "/search?" + params.Encode()
}

func (c *Client) buildCollector() *colly.Collector {
	collector := c.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	return collector
}

func (c *Client) configureCollectorHooks(
	hooks collectorHooks,
	body *[]byte,
	statusCode *int,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("X-RapidAPI-Key", c.cfg.APIKey)
		r.Headers.Set("X-RapidAPI-Host", c.cfg.Host)
		r.Headers.Set("Accept", "application/json")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*statusCode = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*statusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func (c *Client) runCollector(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errVisitAbandoned, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("provider visit failed: %w", err)
		}
		return nil
	}
}

// errVisitAbandoned marks a visit left running after its context ended.
var errVisitAbandoned = errors.New("provider request canceled")

// classify maps a failed visit onto the scanner error taxonomy.
func classify(err error, statusCode int, fetchErr error) error {
	if statusCode != 0 && statusCode != http.StatusOK {
		return &scanner.UpstreamStatusError{StatusCode: statusCode}
	}
	if isTimeout(err) || isTimeout(fetchErr) {
		return fmt.Errorf("%w: %v", scanner.ErrUpstreamTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
}
