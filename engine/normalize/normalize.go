// Package normalize turns untrusted provider records into canonical articles
// and holds the stateless list transforms (dedup, sort) applied before
// publication.
package normalize

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/pkg/fn"
)

// MaxDescriptionLen is the hard cutoff for cleaned descriptions, in runes.
const MaxDescriptionLen = 300

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	entityPattern = regexp.MustCompile(`&[^;]+;`)
)

// Normalize validates raw and returns the cleaned article. A missing required
// field yields a *domain.ValidationError wrapping domain.ErrMissingField.
func Normalize(raw domain.RawArticle, now time.Time) (domain.Article, error) {
	var sourceName, sourceURL string
	if raw.Source != nil {
		sourceName, sourceURL = raw.Source.Name.String(), raw.Source.URL.String()
	}
	required := []struct{ field, value string }{
		{"title", raw.Title.String()},
		{"description", raw.Description.String()},
		{"url", raw.URL.String()},
		{"source.name", sourceName},
		{"publishedAt", raw.PublishedAt.String()},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.Article{}, domain.NewValidationError(r.field, "", domain.ErrMissingField)
		}
	}

	desc := CleanDescription(raw.Description.String())
	if desc == "" {
		return domain.Article{}, domain.NewValidationError("description", raw.Description.String(), domain.ErrMissingField)
	}

	return domain.Article{
		Title:       raw.Title.String(),
		Description: desc,
		Content:     raw.Content.String(),
		URL:         raw.URL.String(),
		Image:       ValidImageURL(raw.Image.String()),
		PublishedAt: ValidateDate(raw.PublishedAt.String(), now),
		Source:      domain.Source{Name: sourceName, URL: sourceURL},
	}, nil
}

// ValidImageURL returns s when it parses as an absolute URL (any scheme,
// host optional), nil otherwise.
func ValidImageURL(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return nil
	}
	return &s
}

// CleanDescription strips tags, turns entities into spaces, trims and
// truncates to MaxDescriptionLen runes.
func CleanDescription(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, "")
	s = entityPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxDescriptionLen {
		s = string(r[:MaxDescriptionLen])
	}
	return s
}

// ValidateDate keeps s when it parses and substitutes now otherwise.
func ValidateDate(s string, now time.Time) string {
	if _, err := domain.ParseTimestamp(s); err != nil {
		return now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return s
}

// Batch normalizes raws, logging and dropping rejected records, and returns
// the survivors newest first.
func Batch(raws []domain.RawArticle, now time.Time, log *slog.Logger) []domain.Article {
	if log == nil {
		log = slog.Default()
	}
	out := fn.FilterMap(raws, func(raw domain.RawArticle) (domain.Article, bool) {
		a, err := Normalize(raw, now)
		if err != nil {
			log.Debug("normalize: article dropped", "title", raw.Title.String(), "err", err)
			return domain.Article{}, false
		}
		return a, true
	})
	if dropped := len(raws) - len(out); dropped > 0 {
		log.Info("normalize: filtered invalid articles", "input", len(raws), "dropped", dropped)
	}
	SortByPublished(out)
	return out
}

// Stage exposes Batch as a pipeline stage.
func Stage(log *slog.Logger, now func() time.Time) fn.Stage[[]domain.RawArticle, []domain.Article] {
	if now == nil {
		now = time.Now
	}
	return fn.TracedStage("normalize.batch", func(_ context.Context, raws []domain.RawArticle) fn.Result[[]domain.Article] {
		return fn.Ok(Batch(raws, now(), log))
	})
}

// FilterValid drops articles missing a field the UI needs.
func FilterValid(articles []domain.Article) []domain.Article {
	return fn.Filter(articles, domain.Article.Valid)
}

// Dedupe keeps the first article for each URL, preserving order.
func Dedupe(articles []domain.Article) []domain.Article {
	return fn.UniqueBy(articles, func(a domain.Article) string { return a.URL })
}

// SortByPublished orders articles newest first in place. Ties keep their
// relative order.
func SortByPublished(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Published().After(articles[j].Published())
	})
}
