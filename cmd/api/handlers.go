package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/WessleyAI/technews/engine/bookmark"
	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/feed"
	"github.com/WessleyAI/technews/engine/filter"
	"github.com/WessleyAI/technews/pkg/mid"
)

const maxBody = 1 << 20

type server struct {
	log        *slog.Logger
	news       feed.Fetcher
	configured bool
	sub        *feed.Subscription
	bookmarks  *bookmark.Service
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/categories", handleCategories)
	mux.HandleFunc("GET /api/news", s.handleNews)

	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("PUT /api/feed/filters", s.handleFeedFilters)
	mux.HandleFunc("POST /api/feed/refresh", s.handleFeedRefresh)
	mux.HandleFunc("PUT /api/feed/visibility", s.handleFeedVisibility)

	mux.HandleFunc("GET /api/bookmarks", s.handleListBookmarks)
	mux.HandleFunc("POST /api/bookmarks", s.handleAddBookmark)
	mux.HandleFunc("DELETE /api/bookmarks", s.handleRemoveBookmark)
	mux.HandleFunc("GET /api/bookmarks/check", s.handleCheckBookmark)
	return mux
}

func (s *server) handler(corsOrigin string, v mid.Verifier) http.Handler {
	return mid.Chain(s.routes(),
		mid.Recover(s.log),
		mid.Logger(s.log),
		mid.OTel("technews-api"),
		mid.CORS(corsOrigin),
		mid.Auth(v, s.log),
	)
}

// --- Handlers ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"online":    s.configured,
		"bookmarks": s.bookmarks.Enabled(),
	})
}

func handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.Categories())
}

// NewsResponse is the JSON response for GET /api/news.
type NewsResponse struct {
	Filters       domain.FilterSet `json:"filters"`
	TotalArticles int              `json:"totalArticles"`
	Articles      []domain.Article `json:"articles"`
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	fs := filter.FromQuery(r.URL.Query()).Filters()
	resp, err := feed.Fetch(r.Context(), s.news, fs).Unwrap()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("news fetch failed", "err", err)
		writeError(w, http.StatusBadGateway, "could not load news")
		return
	}
	if resp.Articles == nil {
		resp.Articles = []domain.Article{}
	}
	writeJSON(w, http.StatusOK, NewsResponse{Filters: fs, TotalArticles: resp.TotalArticles, Articles: resp.Articles})
}

func (s *server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	st := s.sub.Snapshot()
	if st.Articles == nil {
		st.Articles = []domain.Article{}
	}
	writeJSON(w, http.StatusOK, st)
}

// FiltersRequest is the JSON body for PUT /api/feed/filters.
type FiltersRequest struct {
	Search   string `json:"search"`
	Category string `json:"category"`
	Sort     string `json:"sort"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

func (r FiltersRequest) filters() domain.FilterSet {
	return filter.NewModel().
		SetCategory(r.Category).
		SetSearch(r.Search).
		SetSort(domain.ParseSortBy(r.Sort)).
		SetRange(r.From, r.To).
		Filters()
}

func (s *server) handleFeedFilters(w http.ResponseWriter, r *http.Request) {
	var req FiltersRequest
	if !decode(w, r, &req) {
		return
	}
	fs := req.filters()
	if !s.command(w, s.sub.SetFilters(fs)) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"filters": fs})
}

func (s *server) handleFeedRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.command(w, s.sub.Refresh()) {
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleFeedVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible *bool `json:"visible"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Visible == nil {
		writeError(w, http.StatusBadRequest, "visible is required")
		return
	}
	if !s.command(w, s.sub.SetVisible(*req.Visible)) {
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) command(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, feed.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "feed is shutting down")
		return false
	}
	s.log.Error("feed command failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
	return false
}

// BookmarkRequest is the JSON body for POST /api/bookmarks.
type BookmarkRequest struct {
	Article  domain.Article `json:"article"`
	Category string         `json:"category,omitempty"`
}

func (s *server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookmarks.List(r.Context())
	if err != nil {
		s.bookmarkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req BookmarkRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := s.bookmarks.Add(r.Context(), req.Article, req.Category)
	if err != nil {
		s.bookmarkError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.bookmarks.Remove(r.Context(), r.URL.Query().Get("url")); err != nil {
		s.bookmarkError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCheckBookmark(w http.ResponseWriter, r *http.Request) {
	ok, err := s.bookmarks.IsBookmarked(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		s.bookmarkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": ok})
}

func (s *server) bookmarkError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrBookmarksDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	default:
		s.log.Error("bookmark operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
