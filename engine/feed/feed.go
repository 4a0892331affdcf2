// Package feed runs one filter subscription: it picks the request for the
// current filters, supersedes in-flight fetches, retries failures with
// exponential backoff and refreshes on a schedule while visible.
//
// A single loop goroutine owns all subscription state. Commands and fetch
// completions reach it as events on one channel, so the state needs no lock.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/normalize"
	"github.com/WessleyAI/technews/pkg/fn"
	"github.com/WessleyAI/technews/pkg/metrics"
)

// ErrClosed is returned by commands sent after the subscription ended.
var ErrClosed = errors.New("feed: subscription closed")

// Fetcher is the news source. *newsapi.Client implements it.
type Fetcher interface {
	TopHeadlines(ctx context.Context) fn.Result[domain.NewsResponse]
	ByCategory(ctx context.Context, categoryID string) fn.Result[domain.NewsResponse]
	Search(ctx context.Context, f domain.FilterSet) fn.Result[domain.NewsResponse]
}

// State is what a subscriber renders. Articles must be treated as read-only.
type State struct {
	Filters       domain.FilterSet `json:"filters"`
	Articles      []domain.Article `json:"articles"`
	TotalArticles int              `json:"totalArticles"`
	Loading       bool             `json:"loading"`
	IsRefreshing  bool             `json:"isRefreshing"`
	Error         string           `json:"error,omitempty"`
	LastFetch     time.Time        `json:"lastFetch"`
	Visible       bool             `json:"visible"`
}

func (s State) clone() State {
	s.Articles = slices.Clone(s.Articles)
	return s
}

// Options tunes a Subscription. Zero values take the defaults.
type Options struct {
	RetryBase       time.Duration // 1s; the nth retry waits RetryBase * 2^n
	MaxRetries      int           // 3
	RefreshInterval time.Duration // 10m
	StaleAfter      time.Duration // 5m

	// OnUpdate is called from the loop goroutine after every state change.
	// It must not call back into the Subscription.
	OnUpdate func(State)

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

func (o Options) withDefaults() Options {
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 10 * time.Minute
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	return o
}

// Fetch runs the request the filters select and returns valid, unique
// articles, newest first. SortBy only shapes the upstream query.
func Fetch(ctx context.Context, f Fetcher, fs domain.FilterSet) fn.Result[domain.NewsResponse] {
	var r fn.Result[domain.NewsResponse]
	switch {
	case fs.Category == "" || fs.Category == domain.CategoryAll:
		r = f.TopHeadlines(ctx)
	case strings.TrimSpace(fs.Query) != "":
		r = f.Search(ctx, fs)
	default:
		r = f.ByCategory(ctx, fs.Category)
	}
	return fn.MapResult(r, func(resp domain.NewsResponse) domain.NewsResponse {
		return Clean(resp)
	})
}

// Clean drops invalid and duplicate articles and orders the rest newest
// first. TotalArticles becomes the kept count.
func Clean(resp domain.NewsResponse) domain.NewsResponse {
	articles := normalize.Dedupe(normalize.FilterValid(resp.Articles))
	normalize.SortByPublished(articles)
	return domain.NewsResponse{TotalArticles: len(articles), Articles: articles}
}

type timer interface{ Stop() bool }

type clock struct {
	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
	ticker    func(time.Duration) (<-chan time.Time, func())
}

var realClock = clock{
	now: time.Now,
	afterFunc: func(d time.Duration, f func()) timer {
		return time.AfterFunc(d, f)
	},
	ticker: func(d time.Duration) (<-chan time.Time, func()) {
		t := time.NewTicker(d)
		return t.C, t.Stop
	},
}

type (
	setFiltersCmd struct{ filters domain.FilterSet }
	refreshCmd    struct{}
	visibilityCmd struct{ visible bool }
	snapshotReq   struct{ reply chan State }
	fetchDone     struct {
		token  uint64
		result fn.Result[domain.NewsResponse]
	}
	retryDue struct{ token uint64 }
)

type attemptKind int

const (
	attemptFilters attemptKind = iota // clears articles, shows Loading
	attemptRefresh                    // keeps articles, shows IsRefreshing
	attemptRetry                      // same parameters and flags as the failed attempt
)

type subMetrics struct {
	attempts, retries, stale *metrics.Counter
	active                   *metrics.Gauge
}

// Subscription is one live filter subscription.
type Subscription struct {
	fetcher Fetcher
	opts    Options
	clock   clock
	log     *slog.Logger
	m       subMetrics

	events chan any
	done   chan struct{}
	stop   context.CancelFunc
	wg     sync.WaitGroup
	final  State // set by the loop before done is closed

	// owned by the loop goroutine
	state       State
	token       uint64
	cancelFetch context.CancelFunc
	retry       timer
	retries     int
}

// Start begins fetching filters immediately. The subscription ends when ctx
// is cancelled or Close is called.
func Start(ctx context.Context, f Fetcher, filters domain.FilterSet, opts Options) *Subscription {
	return start(ctx, f, filters, opts, realClock)
}

func start(ctx context.Context, f Fetcher, filters domain.FilterSet, opts Options, clk clock) *Subscription {
	opts = opts.withDefaults()
	ctx, stop := context.WithCancel(ctx)
	s := &Subscription{
		fetcher: f,
		opts:    opts,
		clock:   clk,
		log:     opts.Logger,
		m: subMetrics{
			attempts: opts.Metrics.Counter("technews_feed_attempts_total", "Fetch attempts started by subscriptions."),
			retries:  opts.Metrics.Counter("technews_feed_retries_total", "Backoff retries issued."),
			stale:    opts.Metrics.Counter("technews_feed_discarded_total", "Superseded or cancelled completions discarded."),
			active:   opts.Metrics.Gauge("technews_feed_subscriptions", "Live subscriptions."),
		},
		events: make(chan any, 16),
		done:   make(chan struct{}),
		stop:   stop,
		state:  State{Filters: filters, Visible: true},
	}
	tick, stopTicker := clk.ticker(opts.RefreshInterval)
	s.m.active.Inc()
	go s.run(ctx, tick, stopTicker)
	return s
}

// SetFilters restarts the subscription on new filters, clearing articles.
func (s *Subscription) SetFilters(f domain.FilterSet) error { return s.send(setFiltersCmd{f}) }

// Refresh refetches the current filters, keeping displayed articles.
func (s *Subscription) Refresh() error { return s.send(refreshCmd{}) }

// SetVisible records whether the subscriber is being looked at. Becoming
// visible after StaleAfter since the last success triggers a refresh.
func (s *Subscription) SetVisible(v bool) error { return s.send(visibilityCmd{v}) }

// Snapshot returns a copy of the current state. After Close it returns the
// final state.
func (s *Subscription) Snapshot() State {
	reply := make(chan State, 1)
	if err := s.send(snapshotReq{reply}); err != nil {
		return s.final
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return s.final
	}
}

// Close ends the subscription and waits for the loop and any in-flight fetch
// to return. Safe to call more than once.
func (s *Subscription) Close() {
	s.stop()
	<-s.done
	s.wg.Wait()
}

// Done is closed once the loop has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) send(ev any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Subscription) run(ctx context.Context, tick <-chan time.Time, stopTicker func()) {
	defer func() {
		stopTicker()
		s.stopRetry()
		if s.cancelFetch != nil {
			s.cancelFetch()
			s.cancelFetch = nil
		}
		s.final = s.state.clone()
		s.m.active.Dec()
		close(s.done)
	}()

	s.begin(ctx, attemptFilters)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.onTick(ctx)
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Subscription) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case setFiltersCmd:
		s.state.Filters = ev.filters
		s.begin(ctx, attemptFilters)
	case refreshCmd:
		s.begin(ctx, attemptRefresh)
	case visibilityCmd:
		s.onVisibility(ctx, ev.visible)
	case snapshotReq:
		ev.reply <- s.state.clone()
	case fetchDone:
		s.onFetchDone(ev)
	case retryDue:
		if ev.token != s.token || s.retry == nil {
			return
		}
		s.retry = nil
		s.m.retries.Inc()
		s.begin(ctx, attemptRetry)
	}
}

// begin supersedes whatever is pending and starts a new attempt.
func (s *Subscription) begin(ctx context.Context, kind attemptKind) {
	s.stopRetry()
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}

	switch kind {
	case attemptFilters:
		s.retries = 0
		s.state.Articles = nil
		s.state.TotalArticles = 0
		s.state.Loading, s.state.IsRefreshing = true, false
		s.state.Error = ""
	case attemptRefresh:
		s.retries = 0
		s.state.Loading, s.state.IsRefreshing = false, true
		s.state.Error = ""
	}

	s.token++
	token, filters := s.token, s.state.Filters
	fctx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.m.attempts.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r := Fetch(fctx, s.fetcher, filters)
		_ = s.send(fetchDone{token: token, result: r})
	}()

	if kind != attemptRetry {
		s.emit()
	}
}

func (s *Subscription) inFlight() bool { return s.cancelFetch != nil }

func (s *Subscription) onFetchDone(ev fetchDone) {
	if ev.token != s.token {
		s.m.stale.Inc()
		s.log.Debug("feed: discarded superseded completion", "token", ev.token, "current", s.token)
		return
	}
	s.cancelFetch()
	s.cancelFetch = nil

	resp, err := ev.result.Unwrap()
	if errors.Is(err, context.Canceled) {
		s.m.stale.Inc()
		s.log.Debug("feed: discarded cancelled completion", "token", ev.token)
		return
	}
	if err != nil {
		s.onFailure(ev.token, err)
		return
	}

	s.retries = 0
	s.state.Articles = resp.Articles
	s.state.TotalArticles = len(resp.Articles)
	s.state.LastFetch = s.clock.now()
	s.state.Error = ""
	s.state.Loading, s.state.IsRefreshing = false, false
	s.emit()
}

func (s *Subscription) onFailure(token uint64, err error) {
	if s.retries < s.opts.MaxRetries {
		s.retries++
		delay := s.opts.RetryBase << s.retries
		s.log.Warn("feed: fetch failed, retrying", "attempt", s.retries, "of", s.opts.MaxRetries, "delay", delay, "err", err)
		s.retry = s.clock.afterFunc(delay, func() { _ = s.send(retryDue{token}) })
		return
	}

	s.log.Error("feed: retries exhausted", "filters", s.state.Filters, "err", err)
	msg := err.Error()
	if msg == "" {
		msg = "Failed to fetch news. Please try again later."
	}
	s.state.Error = msg
	s.state.Loading, s.state.IsRefreshing = false, false
	s.emit()
}

// onTick refreshes in the background while visible and otherwise idle.
func (s *Subscription) onTick(ctx context.Context) {
	if !s.state.Visible || s.inFlight() || s.retry != nil {
		return
	}
	s.log.Debug("feed: scheduled refresh")
	s.begin(ctx, attemptRefresh)
}

func (s *Subscription) onVisibility(ctx context.Context, visible bool) {
	was := s.state.Visible
	s.state.Visible = visible
	s.emit()

	if !visible || was || s.inFlight() || s.retry != nil || s.state.LastFetch.IsZero() {
		return
	}
	if s.clock.now().Sub(s.state.LastFetch) > s.opts.StaleAfter {
		s.log.Debug("feed: stale on visibility regained", "lastFetch", s.state.LastFetch)
		s.begin(ctx, attemptRefresh)
	}
}

func (s *Subscription) stopRetry() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

func (s *Subscription) emit() {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(s.state.clone())
	}
}
