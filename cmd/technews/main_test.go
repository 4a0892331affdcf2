package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/technews/engine/auth"
	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/feed"
	"github.com/WessleyAI/technews/pkg/fn"
	"github.com/WessleyAI/technews/pkg/natsutil"
)

func art(url, published string) domain.Article {
	return domain.Article{Title: "Title " + url, Description: "d", URL: url, PublishedAt: published, Source: domain.Source{Name: "Src"}}
}

type stubNews struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (s *stubNews) answer(call string) fn.Result[domain.NewsResponse] {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	failing := s.fail[call]
	s.mu.Unlock()
	if failing {
		return fn.Err[domain.NewsResponse](errors.New("upstream down"))
	}
	return fn.Ok(domain.NewsResponse{TotalArticles: 3, Articles: []domain.Article{
		art("https://x/a", "2025-03-01T09:00:00Z"),
		art("https://x/b", "2025-03-01T11:00:00Z"),
		art("https://x/a", "2025-03-01T09:00:00Z"),
	}})
}

func (s *stubNews) TopHeadlines(context.Context) fn.Result[domain.NewsResponse] { return s.answer("top") }
func (s *stubNews) ByCategory(_ context.Context, id string) fn.Result[domain.NewsResponse] {
	return s.answer("category:" + id)
}
func (s *stubNews) Search(_ context.Context, f domain.FilterSet) fn.Result[domain.NewsResponse] {
	return s.answer("search:" + f.Query)
}

func (s *stubNews) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func run(t *testing.T, news *stubNews, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	if news != nil {
		a.newFetcher = func() feed.Fetcher { return news }
	}
	root := a.root()
	root.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestHeadlines(t *testing.T) {
	news := &stubNews{}
	out, err := run(t, news, "headlines")
	if err != nil {
		t.Fatal(err)
	}
	if got := news.called(); len(got) != 1 || got[0] != "top" {
		t.Fatalf("calls = %v", got)
	}
	b, a := strings.Index(out, "https://x/b"), strings.Index(out, "https://x/a")
	if b < 0 || a < 0 || b > a {
		t.Fatalf("expected newest first:\n%s", out)
	}
	if !strings.Contains(out, "2 of 2 articles") {
		t.Fatalf("expected deduped count:\n%s", out)
	}
}

func TestHeadlinesJSONLimit(t *testing.T) {
	out, err := run(t, &stubNews{}, "headlines", "--json", "-n", "1")
	if err != nil {
		t.Fatal(err)
	}
	var resp domain.NewsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(resp.Articles) != 1 || resp.TotalArticles != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCategory(t *testing.T) {
	news := &stubNews{}
	if _, err := run(t, news, "category", "AI"); err != nil {
		t.Fatal(err)
	}
	if got := news.called(); got[0] != "category:ai" {
		t.Fatalf("calls = %v", got)
	}
	if _, err := run(t, &stubNews{}, "category", "sports"); !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	news := &stubNews{}
	if _, err := run(t, news, "search", "rust", "programming", "--sort", "relevance"); err != nil {
		t.Fatal(err)
	}
	if got := news.called(); len(got) != 1 || got[0] != "search:rust programming" {
		t.Fatalf("calls = %v", got)
	}
	if _, err := run(t, &stubNews{}, "search", "  "); err == nil {
		t.Fatal("blank query should fail")
	}
}

func TestCategories(t *testing.T) {
	out, err := run(t, nil, "categories")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cybersecurity") || !strings.Contains(out, "AI & Machine Learning") {
		t.Fatalf("out = %s", out)
	}
}

func TestDigest(t *testing.T) {
	news := &stubNews{fail: map[string]bool{}}
	cloud, _ := domain.LookupCategory("cloud")
	news.fail["search:"+cloud.Query] = true

	out, err := run(t, news, "digest", "--json", "--per", "1")
	if err != nil {
		t.Fatal(err)
	}
	var sections []digestSection
	if err := json.Unmarshal([]byte(out), &sections); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sections) != 8 {
		t.Fatalf("expected 8 sections, got %d", len(sections))
	}
	for _, s := range sections {
		if s.Category.ID == "cloud" {
			if s.Error == "" || len(s.Articles) != 0 {
				t.Fatalf("cloud section = %+v", s)
			}
			continue
		}
		if len(s.Articles) != 1 {
			t.Fatalf("%s: %d articles", s.Category.ID, len(s.Articles))
		}
	}
	if sections[0].Category.ID != "ai" {
		t.Fatalf("sections out of order: %s", sections[0].Category.ID)
	}
	if len(news.called()) != 8 {
		t.Fatalf("calls = %v", news.called())
	}
}

func TestDigestText(t *testing.T) {
	news := &stubNews{fail: map[string]bool{}}
	cloud, _ := domain.LookupCategory("cloud")
	news.fail["search:"+cloud.Query] = true

	out, err := run(t, news, "digest", "--per", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "== Cloud Computing ==\n  error: upstream down\n") {
		t.Fatalf("missing cloud error block:\n%s", out)
	}
	if got := strings.Count(out, "  - Title https://x/b (Src)\n"); got != 7 {
		t.Fatalf("expected 7 article lines, got %d:\n%s", got, out)
	}
}

func TestWatchLocal(t *testing.T) {
	out, err := run(t, &stubNews{}, "watch", "--count", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "loading") || !strings.Contains(out, "https://x/b") {
		t.Fatalf("out = %s", out)
	}
}

func TestWatchNATS(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Shutdown()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		st := feed.State{
			Filters:       domain.FilterSet{Category: "ai"},
			Articles:      []domain.Article{art("https://x/remote", "2025-03-01T09:00:00Z")},
			TotalArticles: 1,
		}
		for i := 0; i < 100; i++ {
			<-tick.C
			if err := natsutil.Publish(context.Background(), nc, "test.feed", st); err != nil {
				return
			}
		}
	}()

	out, err := run(t, nil, "watch", "--nats", srv.ClientURL(), "--subject", "test.feed", "--count", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "https://x/remote") {
		t.Fatalf("out = %s", out)
	}
	nc.Close()
	<-done
}

func TestToken(t *testing.T) {
	out, err := run(t, nil, "token", "--secret", "s3cret", "--user", "u1", "--email", "a@b.c")
	if err != nil {
		t.Fatal(err)
	}
	id, err := auth.NewJWTVerifier("s3cret").Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != "u1" || id.Email != "a@b.c" {
		t.Fatalf("identity = %+v", id)
	}
	if _, err := run(t, nil, "token", "--secret", "s3cret"); err == nil {
		t.Fatal("missing --user should fail")
	}
	t.Setenv("JWT_SECRET", "")
	if _, err := run(t, nil, "token", "--user", "u1"); err == nil {
		t.Fatal("missing secret should fail")
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	tests := map[time.Duration]string{
		10 * time.Second: "just now",
		5 * time.Minute:  "5m ago",
		3 * time.Hour:    "3h ago",
		72 * time.Hour:   "2025-02-26",
	}
	for d, want := range tests {
		if got := age(now.Add(-d)); got != want {
			t.Errorf("age(-%v) = %q, want %q", d, got, want)
		}
	}
	if age(time.Time{}) != "unknown date" {
		t.Error("zero time")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héll…" {
		t.Fatalf("got %q", got)
	}
	if got := truncate(" short ", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}
