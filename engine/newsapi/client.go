// Package newsapi is the GNews v4 client. Every call returns normalized
// articles; upstream failures are logged and answered with the embedded
// offline dataset, so callers only see an error when their own context ends
// or the offline dataset itself is unusable.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/normalize"
	"github.com/WessleyAI/technews/pkg/fn"
	"github.com/WessleyAI/technews/pkg/metrics"
	"github.com/WessleyAI/technews/pkg/resilience"
)

const (
	DefaultBaseURL = "https://gnews.io/api/v4"
	DefaultTimeout = 15 * time.Second

	// PlaceholderKey is the value shipped in example env files.
	PlaceholderKey = "your_gnews_api_key_here"

	EndpointTopHeadlines = "top-headlines"
	EndpointSearch       = "search"

	maxBodyBytes = 8 << 20
)

// Options configures a Client. Zero values take the defaults below.
type Options struct {
	APIKey  string
	BaseURL string        // DefaultBaseURL
	Timeout time.Duration // DefaultTimeout, per request
	Lang    string        // "en"
	Country string        // "us"
	Max     int           // 50

	// RateEvery and Burst bound outbound requests (200ms, 5).
	RateEvery time.Duration
	Burst     int

	Breaker   resilience.BreakerOpts
	Transport http.RoundTripper // base transport, wrapped with otelhttp
	Logger    *slog.Logger
	Metrics   *metrics.Registry
}

// Client talks to the news provider. It is safe for concurrent use.
type Client struct {
	opts       Options
	log        *slog.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	metrics    *metrics.Registry
	normalize  fn.Stage[[]domain.RawArticle, []domain.Article]
	now        func() time.Time
}

// New builds a Client from opts.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Lang == "" {
		opts.Lang = "en"
	}
	if opts.Country == "" {
		opts.Country = "us"
	}
	if opts.Max <= 0 {
		opts.Max = 50
	}
	if opts.RateEvery <= 0 {
		opts.RateEvery = 200 * time.Millisecond
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		opts:       opts,
		log:        opts.Logger,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(base)},
		limiter:    rate.NewLimiter(rate.Every(opts.RateEvery), opts.Burst),
		breaker:    resilience.NewBreaker(opts.Breaker),
		metrics:    opts.Metrics,
		now:        time.Now,
	}
	c.normalize = normalize.Stage(c.log, func() time.Time { return c.now() })
	return c
}

// Configured reports whether a usable API key is set.
func (c *Client) Configured() bool {
	k := strings.TrimSpace(c.opts.APIKey)
	return k != "" && k != PlaceholderKey
}

// TopHeadlines returns the technology top headlines.
func (c *Client) TopHeadlines(ctx context.Context) fn.Result[domain.NewsResponse] {
	return c.fetch(ctx, EndpointTopHeadlines, url.Values{
		"category": {"technology"},
		"lang":     {c.opts.Lang},
		"country":  {c.opts.Country},
		"max":      {strconv.Itoa(c.opts.Max)},
	})
}

// ByCategory searches with the expanded keyword list for categoryID, newest
// first.
func (c *Client) ByCategory(ctx context.Context, categoryID string) fn.Result[domain.NewsResponse] {
	return c.Search(ctx, domain.FilterSet{
		Query:    domain.CategorySearchQuery(categoryID),
		Category: categoryID,
		SortBy:   domain.SortPublishedAt,
	})
}

// Search runs a keyword search. A blank query searches for technology.
func (c *Client) Search(ctx context.Context, f domain.FilterSet) fn.Result[domain.NewsResponse] {
	q := strings.TrimSpace(f.Query)
	if q == "" {
		q = domain.DefaultQuery
	}
	params := url.Values{
		"q":       {q},
		"sortby":  {string(domain.ParseSortBy(string(f.SortBy)))},
		"lang":    {c.opts.Lang},
		"country": {c.opts.Country},
		"max":     {strconv.Itoa(c.opts.Max)},
	}
	if f.From != "" {
		params.Set("from", f.From)
	}
	if f.To != "" {
		params.Set("to", f.To)
	}
	return c.fetch(ctx, EndpointSearch, params)
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) fn.Result[domain.NewsResponse] {
	if err := ctx.Err(); err != nil {
		return fn.Err[domain.NewsResponse](err)
	}
	c.metrics.Counter("technews_upstream_requests_total", "Fetch client calls by endpoint.", "endpoint", endpoint).Inc()

	if !c.Configured() {
		c.log.Warn("newsapi: api key not configured, serving offline dataset", "endpoint", endpoint)
		return c.fallback(ctx, "no_api_key")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fn.Err[domain.NewsResponse](ctxErr)
		}
		c.log.Warn("newsapi: rate limiter rejected request, serving offline dataset", "endpoint", endpoint, "err", err)
		return c.fallback(ctx, "throttled")
	}

	var raw domain.RawResponse
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = c.get(ctx, endpoint, params)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fn.Err[domain.NewsResponse](ctxErr)
		}
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			c.log.Warn("newsapi: circuit open, serving offline dataset", "endpoint", endpoint, "err", err)
			return c.fallback(ctx, "circuit_open")
		}
		c.log.Warn("newsapi: upstream failed, serving offline dataset",
			"endpoint", endpoint, "kind", ue.Kind, "status", ue.StatusCode, "msg", ue.Message(), "err", ue.Err)
		return c.fallback(ctx, string(ue.Kind))
	}

	c.log.Debug("newsapi: response received", "endpoint", endpoint, "total", raw.TotalArticles, "articles", len(raw.Articles))
	return c.process(ctx, raw)
}

// get performs one request and decodes the payload.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (domain.RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	q := make(url.Values, len(params)+2)
	for k, v := range params {
		q[k] = v
	}
	q.Set("token", c.opts.APIKey)
	q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return domain.RawResponse{}, &UpstreamError{Kind: KindClient, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", "technews/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.Histogram("technews_upstream_duration_seconds", "Upstream request latency.", nil, "endpoint", endpoint).Since(start)
	if err != nil {
		return domain.RawResponse{}, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.RawResponse{}, statusError(resp.StatusCode)
	}

	var raw domain.RawResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&raw); err != nil {
		if ctx.Err() != nil {
			return domain.RawResponse{}, transportError(err)
		}
		return domain.RawResponse{}, &UpstreamError{
			Kind: KindMalformed, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err),
		}
	}
	if raw.Articles == nil {
		return domain.RawResponse{}, &UpstreamError{
			Kind: KindMalformed, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: articles list missing", domain.ErrMalformedResponse),
		}
	}
	return raw, nil
}

func (c *Client) fallback(ctx context.Context, reason string) fn.Result[domain.NewsResponse] {
	c.metrics.Counter("technews_offline_fallbacks_total", "Responses served from the offline dataset.", "reason", reason).Inc()
	raw, err := offlineRaw(c.now())
	if err != nil {
		c.log.Error("newsapi: offline dataset unavailable", "err", err)
		return fn.Err[domain.NewsResponse](err)
	}
	return c.process(ctx, raw)
}

func (c *Client) process(ctx context.Context, raw domain.RawResponse) fn.Result[domain.NewsResponse] {
	wrap := fn.MapStage(func(articles []domain.Article) domain.NewsResponse {
		total := raw.TotalArticles
		if total == 0 {
			total = len(articles)
		}
		return domain.NewsResponse{TotalArticles: total, Articles: articles}
	})
	return fn.Then(c.normalize, wrap)(ctx, raw.Articles)
}
