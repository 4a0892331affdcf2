// Package domain defines the article, filter and category types shared by the
// news pipeline, plus the sentinel errors the engine packages return.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Source is the publisher of an article.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Article is a normalized news item. URL is its identity for dedup and
// bookmarking. Image is nil unless it held a valid absolute URL.
type Article struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	URL         string  `json:"url"`
	Image       *string `json:"image"`
	PublishedAt string  `json:"publishedAt"`
	Source      Source  `json:"source"`
}

// Valid reports whether the fields the UI depends on are present.
func (a Article) Valid() bool {
	return a.Title != "" && a.Description != "" && a.URL != "" && a.Source.Name != ""
}

// Published parses PublishedAt. It returns the zero time when unparsable.
func (a Article) Published() time.Time {
	t, err := ParseTimestamp(a.PublishedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseTimestamp accepts the ISO-8601 shapes seen from the provider.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NewsResponse is what the fetch client hands to its callers.
type NewsResponse struct {
	TotalArticles int       `json:"totalArticles"`
	Articles      []Article `json:"articles"`
}

// RawResponse is the provider payload before normalization. A nil Articles
// after decoding means the list was missing.
type RawResponse struct {
	TotalArticles int          `json:"totalArticles"`
	Articles      []RawArticle `json:"articles"`
}

// RawArticle is an untrusted upstream record. Every field is optional.
type RawArticle struct {
	Title       Text       `json:"title"`
	Description Text       `json:"description"`
	Content     Text       `json:"content"`
	URL         Text       `json:"url"`
	Image       Text       `json:"image"`
	PublishedAt Text       `json:"publishedAt"`
	Source      *RawSource `json:"source"`
}

// UnmarshalJSON decodes a non-object element as an empty record so a single
// bad entry cannot reject the whole list.
func (a *RawArticle) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		*a = RawArticle{}
		return nil
	}
	type plain RawArticle
	return json.Unmarshal(b, (*plain)(a))
}

// RawSource is the upstream publisher record.
type RawSource struct {
	Name Text `json:"name"`
	URL  Text `json:"url"`
}

// UnmarshalJSON treats anything but an object as an absent source.
func (s *RawSource) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		*s = RawSource{}
		return nil
	}
	type plain RawSource
	return json.Unmarshal(b, (*plain)(s))
}

// Text is a string decoded leniently: true and non-zero numbers keep their
// literal form. false, numeric zero, null, objects and arrays become empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		*t = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case 't':
		*t = "true"
	case 'f', 'n', '{', '[':
		*t = ""
	default:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil && f == 0 {
			*t = ""
			return nil
		}
		*t = Text(b)
	}
	return nil
}

func (t Text) String() string { return string(t) }

// SortBy is the ordering requested from the provider.
type SortBy string

const (
	SortPublishedAt SortBy = "publishedAt"
	SortRelevance   SortBy = "relevance"
)

// ParseSortBy maps unknown input to SortPublishedAt.
func ParseSortBy(s string) SortBy {
	if SortBy(strings.TrimSpace(s)) == SortRelevance {
		return SortRelevance
	}
	return SortPublishedAt
}

// FilterSet is the concrete query derived from the user's selections.
type FilterSet struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	SortBy   SortBy `json:"sortBy"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}
