// Package filter derives the concrete FilterSet from what the user typed and
// picked. Everything here is pure.
package filter

import (
	"net/url"
	"strings"

	"github.com/WessleyAI/technews/engine/domain"
)

// Derive returns the FilterSet for the given inputs. Non-blank search text
// wins over the category's default query.
func Derive(search, categoryID string, sort domain.SortBy) domain.FilterSet {
	if categoryID == "" {
		categoryID = domain.CategoryAll
	}
	query := strings.TrimSpace(search)
	if query == "" {
		query = domain.DefaultQuery
		if c, ok := domain.LookupCategory(categoryID); ok {
			query = c.Query
		}
	}
	return domain.FilterSet{
		Query:    query,
		Category: categoryID,
		SortBy:   domain.ParseSortBy(string(sort)),
	}
}

// Model is the user's current selection. Setters return a new Model.
type Model struct {
	Search   string        `json:"search"`
	Category string        `json:"category"`
	Sort     domain.SortBy `json:"sort"`
	From     string        `json:"from,omitempty"`
	To       string        `json:"to,omitempty"`
}

// NewModel starts on all categories, newest first.
func NewModel() Model {
	return Model{Category: domain.CategoryAll, Sort: domain.SortPublishedAt}
}

func (m Model) SetSearch(s string) Model {
	m.Search = s
	return m
}

// SetCategory switches category and clears the search text.
func (m Model) SetCategory(id string) Model {
	m.Category = id
	m.Search = ""
	return m
}

func (m Model) SetSort(s domain.SortBy) Model {
	m.Sort = domain.ParseSortBy(string(s))
	return m
}

// SetRange sets the optional publication window. Empty strings clear it.
func (m Model) SetRange(from, to string) Model {
	m.From, m.To = strings.TrimSpace(from), strings.TrimSpace(to)
	return m
}

// Filters derives the FilterSet for the current selection.
func (m Model) Filters() domain.FilterSet {
	f := Derive(m.Search, m.Category, m.Sort)
	f.From, f.To = m.From, m.To
	return f
}

// FromQuery reads q, category, sort, from and to.
func FromQuery(v url.Values) Model {
	m := NewModel()
	if c := strings.TrimSpace(v.Get("category")); c != "" {
		m = m.SetCategory(c)
	}
	return m.SetSearch(v.Get("q")).
		SetSort(domain.SortBy(v.Get("sort"))).
		SetRange(v.Get("from"), v.Get("to"))
}
