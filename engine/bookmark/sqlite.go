package bookmark

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// SQLiteStore keeps bookmarks in a local SQLite file.
type SQLiteStore struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating bookmark dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+sqlitePragmas)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &SQLiteStore{readDB: readDB, writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS bookmarks (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			article_id   TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			url          TEXT NOT NULL,
			image_url    TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			published_at TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			UNIQUE(user_id, url)
		);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_user_created ON bookmarks(user_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, b Bookmark) error {
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, article_id, title, description, url, image_url, source, category, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			image_url = excluded.image_url,
			source = excluded.source,
			category = excluded.category,
			published_at = excluded.published_at,
			created_at = excluded.created_at
	`, b.ID, b.UserID, b.ArticleID, b.Title, b.Description, b.URL, b.ImageURL, b.Source, b.Category, b.PublishedAt, b.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upserting bookmark %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, userID, url string) error {
	_, err := s.writeDB.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = ? AND url = ?`, userID, url)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Bookmark, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, user_id, article_id, title, description, url, image_url, source, category, published_at, created_at
		FROM bookmarks WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var (
			b       Bookmark
			created int64
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.ArticleID, &b.Title, &b.Description, &b.URL,
			&b.ImageURL, &b.Source, &b.Category, &b.PublishedAt, &created); err != nil {
			return nil, err
		}
		b.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Has(ctx context.Context, userID, url string) (bool, error) {
	var n int
	err := s.readDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE user_id = ? AND url = ?`, userID, url).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
