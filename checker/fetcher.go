package checker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/peterlang-checker/config"
	"github.com/gocolly/colly/v2"
)

// Page is a fetched response after any redirects were followed.
type Page struct {
	RequestURL string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Fetcher issues a GET for target, following redirects.
// On failure the returned page, when non-nil, still carries the URL reached.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*Page, error)
}

// CollyFetcher is a Fetcher backed by a synchronous colly collector.
type CollyFetcher struct {
	kind      string
	collector *colly.Collector
	metrics   *Metrics
}

// NewCollyFetcher builds a fetcher whose requests time out after timeout.
// kind labels the fetcher's requests in metrics ("search" or "document").
func NewCollyFetcher(kind string, cfg *config.Config, timeout time.Duration, metrics *Metrics) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	// Redirects may leave the base host (apex to www, canonical hosts).
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &CollyFetcher{
		kind:      kind,
		collector: collector,
		metrics:   metrics,
	}, nil
}

// WithTransport replaces the HTTP transport used by the fetcher.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch visits target and returns the final page. Non-2xx responses are
// reported as ErrTransport carrying the status code.
func (f *CollyFetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTransport{URL: target, Err: err}
	}

	page := &Page{RequestURL: target, FinalURL: target}
	statusCode := 0

	// Clones share the transport and timeout but get their own callbacks.
	c := f.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.Body = r.Body
		if r.Request != nil && r.Request.URL != nil {
			page.FinalURL = r.Request.URL.String()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		statusCode = r.StatusCode
		if r.Request != nil && r.Request.URL != nil {
			page.FinalURL = r.Request.URL.String()
		}
	})

	f.metrics.IncRequest(f.kind)
	start := time.Now()
	err := c.Visit(target)
	f.metrics.ObserveDuration(f.kind, time.Since(start))

	if err != nil {
		page.StatusCode = statusCode
		return page, ErrTransport{
			URL:        target,
			StatusCode: statusCode,
			Err:        classifyError(err, statusCode),
		}
	}
	return page, nil
}
