package bookmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/technews/pkg/repo"
)

// Label is the node label used by GraphStore.
const Label = "Bookmark"

// maxList caps how many bookmarks List returns per user.
const maxList = 1000

// GraphStore keeps bookmarks as Neo4j nodes.
type GraphStore struct {
	repo   *repo.Neo4jRepo[Bookmark, string]
	driver neo4j.DriverWithContext
}

var _ Store = (*GraphStore)(nil)

// NewGraphStore wraps driver. The store owns the driver and closes it.
func NewGraphStore(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[Bookmark, string]) *GraphStore {
	return &GraphStore{
		repo:   repo.NewNeo4jRepo[Bookmark, string](driver, Label, toMap, fromRecord, opts...),
		driver: driver,
	}
}

// EnsureIndex creates the id index.
func (g *GraphStore) EnsureIndex(ctx context.Context) error { return g.repo.EnsureIndex(ctx) }

func (g *GraphStore) Add(ctx context.Context, b Bookmark) error {
	_, err := g.repo.Upsert(ctx, b)
	return err
}

func (g *GraphStore) Remove(ctx context.Context, userID, url string) error {
	return g.repo.Delete(ctx, ID(userID, url))
}

func (g *GraphStore) List(ctx context.Context, userID string) ([]Bookmark, error) {
	return g.repo.List(ctx, repo.ListOpts{
		Filter:  map[string]any{"user_id": userID},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   maxList,
	})
}

func (g *GraphStore) Has(ctx context.Context, userID, url string) (bool, error) {
	_, err := g.repo.Get(ctx, ID(userID, url))
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (g *GraphStore) Close() error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(context.Background())
}

func toMap(b Bookmark) map[string]any {
	return map[string]any{
		"id":           b.ID,
		"user_id":      b.UserID,
		"article_id":   b.ArticleID,
		"title":        b.Title,
		"description":  b.Description,
		"url":          b.URL,
		"image_url":    b.ImageURL,
		"source":       b.Source,
		"category":     b.Category,
		"published_at": b.PublishedAt,
		"created_at":   b.CreatedAt.UnixMilli(),
	}
}

func fromRecord(rec *neo4j.Record) (Bookmark, error) {
	v, ok := rec.Get("n")
	if !ok {
		return Bookmark{}, fmt.Errorf("bookmark record has no node")
	}
	n, ok := v.(neo4j.Node)
	if !ok {
		return Bookmark{}, fmt.Errorf("bookmark record: unexpected %T", v)
	}
	str := func(k string) string {
		s, _ := n.Props[k].(string)
		return s
	}
	created, _ := n.Props["created_at"].(int64)
	return Bookmark{
		ID:          str("id"),
		UserID:      str("user_id"),
		ArticleID:   str("article_id"),
		Title:       str("title"),
		Description: str("description"),
		URL:         str("url"),
		ImageURL:    str("image_url"),
		Source:      str("source"),
		Category:    str("category"),
		PublishedAt: str("published_at"),
		CreatedAt:   time.UnixMilli(created).UTC(),
	}, nil
}
