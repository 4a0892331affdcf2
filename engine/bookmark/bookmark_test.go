package bookmark

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/WessleyAI/technews/engine/auth"
	"github.com/WessleyAI/technews/engine/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func article(url string) domain.Article {
	img := "https://example.com/i.png"
	return domain.Article{
		Title:       "Title " + url,
		Description: "desc",
		URL:         url,
		Image:       &img,
		PublishedAt: "2025-03-01T10:00:00Z",
		Source:      domain.Source{Name: "Example"},
	}
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "bookmarks.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T, store Store) *Service {
	t.Helper()
	s := NewService(store, auth.ContextProvider{}, nil)
	tick := fixedNow
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func signedIn(user string) context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{UserID: user})
}

func TestIDDeterministic(t *testing.T) {
	a, b := ID("u1", "https://x/1"), ID("u1", "https://x/1")
	if a != b {
		t.Fatalf("ids differ: %s %s", a, b)
	}
	if ID("u2", "https://x/1") == a || ID("u1", "https://x/2") == a {
		t.Fatal("ids must depend on user and url")
	}
	if ID("u1x", "") == ID("u1", "x") {
		t.Fatal("user and url must not run together")
	}
}

func TestFromArticle(t *testing.T) {
	b := FromArticle("u1", article("https://x/1"), "ai", fixedNow)
	if b.ArticleID != "https://x/1" || b.ImageURL != "https://example.com/i.png" || b.Source != "Example" || b.Category != "ai" {
		t.Fatalf("bookmark = %+v", b)
	}
	a := article("https://x/2")
	a.Image = nil
	if FromArticle("u1", a, "", fixedNow).ImageURL != "" {
		t.Fatal("nil image should give empty ImageURL")
	}
}

func TestServiceRequiresIdentity(t *testing.T) {
	s := newService(t, openStore(t))
	if _, err := s.Add(context.Background(), article("https://x/1"), ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.List(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("list: %v", err)
	}
	empty := auth.WithIdentity(context.Background(), &auth.Identity{})
	if err := s.Remove(empty, "https://x/1"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("remove: %v", err)
	}
}

func TestServiceDisabled(t *testing.T) {
	s := NewService(nil, nil, nil)
	if s.Enabled() {
		t.Fatal("nil store should disable bookmarks")
	}
	if _, err := s.List(signedIn("u1")); !errors.Is(err, domain.ErrBookmarksDisabled) {
		t.Fatalf("list: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestServiceRejectsBlankURL(t *testing.T) {
	s := newService(t, openStore(t))
	_, err := s.Add(signedIn("u1"), article("  "), "")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, domain.ErrInvalidBookmarkURL) {
		t.Fatalf("got %v", err)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newService(t, openStore(t))
	ctx := signedIn("u1")
	for _, u := range []string{"https://x/1", "https://x/2", "https://x/3"} {
		if _, err := s.Add(ctx, article(u), "ai"); err != nil {
			t.Fatalf("add %s: %v", u, err)
		}
	}
	if _, err := s.Add(signedIn("u2"), article("https://x/1"), ""); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 bookmarks, got %d", len(list))
	}
	if list[0].URL != "https://x/3" || list[2].URL != "https://x/1" {
		t.Fatalf("expected newest first, got %s .. %s", list[0].URL, list[2].URL)
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Fatalf("created_at not descending: %v %v", list[0].CreatedAt, list[1].CreatedAt)
	}

	ok, err := s.IsBookmarked(ctx, "https://x/2")
	if err != nil || !ok {
		t.Fatalf("IsBookmarked = %v, %v", ok, err)
	}
	if err := s.Remove(ctx, "https://x/2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "https://x/2"); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if ok, _ := s.IsBookmarked(ctx, "https://x/2"); ok {
		t.Fatal("removed bookmark still present")
	}
	if ok, _ := s.IsBookmarked(signedIn("u2"), "https://x/1"); !ok {
		t.Fatal("other user's bookmark should be untouched")
	}
}

func TestSQLiteAddReplaces(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	b := FromArticle("u1", article("https://x/1"), "ai", fixedNow)
	if err := store.Add(ctx, b); err != nil {
		t.Fatal(err)
	}
	b.Title = "Updated"
	b.CreatedAt = fixedNow.Add(time.Hour)
	if err := store.Add(ctx, b); err != nil {
		t.Fatal(err)
	}
	list, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "Updated" || !list[0].CreatedAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("list = %+v", list)
	}
}

func TestListEmptyIsNonNil(t *testing.T) {
	s := newService(t, openStore(t))
	list, err := s.List(signedIn("nobody"))
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("list = %#v", list)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.db")
	s1, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Add(context.Background(), FromArticle("u1", article("https://x/1"), "", fixedNow)); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}
	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if ok, err := s2.Has(context.Background(), "u1", "https://x/1"); err != nil || !ok {
		t.Fatalf("Has = %v, %v", ok, err)
	}
}
