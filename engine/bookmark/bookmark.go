// Package bookmark stores per-user saved articles keyed by (user, url).
package bookmark

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/technews/engine/auth"
	"github.com/WessleyAI/technews/engine/domain"
)

// namespace seeds the deterministic bookmark ids.
var namespace = uuid.MustParse("6f1c2b7e-4a1d-5c3e-9b8f-2d7a0e4c1b95")

// Bookmark is a saved article. ArticleID is the article URL.
type Bookmark struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ArticleID   string    `json:"articleId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Source      string    `json:"source"`
	Category    string    `json:"category,omitempty"`
	PublishedAt string    `json:"publishedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ID derives the bookmark id for a user and article URL.
func ID(userID, url string) string {
	return uuid.NewSHA1(namespace, []byte(userID+"\x00"+url)).String()
}

// FromArticle builds a bookmark for userID.
func FromArticle(userID string, a domain.Article, category string, now time.Time) Bookmark {
	b := Bookmark{
		ID:          ID(userID, a.URL),
		UserID:      userID,
		ArticleID:   a.URL,
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		Source:      a.Source.Name,
		Category:    category,
		PublishedAt: a.PublishedAt,
		CreatedAt:   now.UTC(),
	}
	if a.Image != nil {
		b.ImageURL = *a.Image
	}
	return b
}

// Store persists bookmarks. Add replaces an existing (user, url) bookmark;
// Remove of a missing bookmark is not an error. List is newest first.
type Store interface {
	Add(ctx context.Context, b Bookmark) error
	Remove(ctx context.Context, userID, url string) error
	List(ctx context.Context, userID string) ([]Bookmark, error)
	Has(ctx context.Context, userID, url string) (bool, error)
	Close() error
}

// Service gates the store behind the current identity. A nil store
// disables bookmarks.
type Service struct {
	store Store
	auth  auth.Provider
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a Service. store may be nil.
func NewService(store Store, provider auth.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = auth.ContextProvider{}
	}
	return &Service{store: store, auth: provider, log: logger, now: time.Now}
}

// Enabled reports whether a store is configured.
func (s *Service) Enabled() bool { return s != nil && s.store != nil }

func (s *Service) user(ctx context.Context) (string, error) {
	if !s.Enabled() {
		return "", domain.ErrBookmarksDisabled
	}
	id, err := s.auth.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if id == nil || id.UserID == "" {
		return "", domain.ErrUnauthenticated
	}
	return id.UserID, nil
}

func checkURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", domain.NewValidationError("url", "", domain.ErrInvalidBookmarkURL)
	}
	return url, nil
}

// Add bookmarks a for the current user.
func (s *Service) Add(ctx context.Context, a domain.Article, category string) (Bookmark, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return Bookmark{}, err
	}
	url, err := checkURL(a.URL)
	if err != nil {
		return Bookmark{}, err
	}
	a.URL = url
	b := FromArticle(userID, a, category, s.now())
	if err := s.store.Add(ctx, b); err != nil {
		return Bookmark{}, fmt.Errorf("adding bookmark: %w", err)
	}
	s.log.Debug("bookmark added", "user", userID, "url", url)
	return b, nil
}

// Remove deletes the current user's bookmark for url.
func (s *Service) Remove(ctx context.Context, url string) error {
	userID, err := s.user(ctx)
	if err != nil {
		return err
	}
	if url, err = checkURL(url); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, userID, url); err != nil {
		return fmt.Errorf("removing bookmark: %w", err)
	}
	s.log.Debug("bookmark removed", "user", userID, "url", url)
	return nil
}

// List returns the current user's bookmarks, newest first.
func (s *Service) List(ctx context.Context) ([]Bookmark, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	if out == nil {
		out = []Bookmark{}
	}
	return out, nil
}

// IsBookmarked reports whether the current user saved url.
func (s *Service) IsBookmarked(ctx context.Context, url string) (bool, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return false, err
	}
	if url, err = checkURL(url); err != nil {
		return false, err
	}
	return s.store.Has(ctx, userID, url)
}

// Close releases the store.
func (s *Service) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.store.Close()
}
