// Package main implements the technews API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/technews/engine/auth"
	"github.com/WessleyAI/technews/engine/bookmark"
	"github.com/WessleyAI/technews/engine/feed"
	"github.com/WessleyAI/technews/engine/filter"
	"github.com/WessleyAI/technews/engine/newsapi"
	"github.com/WessleyAI/technews/pkg/fn"
	"github.com/WessleyAI/technews/pkg/metrics"
	"github.com/WessleyAI/technews/pkg/natsutil"
	"github.com/WessleyAI/technews/pkg/repo"
	"github.com/WessleyAI/technews/pkg/resilience"
)

func main() {
	boot := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	loadDotEnv(boot)
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.level()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	client := newsapi.New(newsapi.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Breaker: resilience.DefaultBreakerOpts,
		Logger:  logger,
		Metrics: reg,
	})
	if !client.Configured() {
		logger.Warn("GNEWS_API_KEY not set, serving offline content")
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	bookmarks := bookmark.NewService(openBookmarks(ctx, cfg, verifier, logger), auth.ContextProvider{}, logger)
	defer bookmarks.Close()

	// --- Feed fan-out (optional) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = natsutil.Connect(cfg.NATSURL, "technews-api", logger)
		if err != nil {
			logger.Warn("nats unavailable, feed updates will not be published", "err", err)
		} else {
			defer nc.Drain()
		}
	}
	pub := natsutil.NewPublisher[feed.State](nc, cfg.NATSSubject, logger)

	sub := feed.Start(ctx, client, filter.NewModel().Filters(), feed.Options{
		Logger:   logger,
		Metrics:  reg,
		OnUpdate: func(st feed.State) { pub.Publish(context.Background(), st) },
	})
	defer sub.Close()

	s := &server{
		log:        logger,
		news:       client,
		configured: client.Configured(),
		sub:        sub,
		bookmarks:  bookmarks,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.handler(cfg.CORSOrigin, verifier),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.MetricsPort != "" {
		go func() {
			if err := reg.Serve(ctx, ":"+cfg.MetricsPort, logger); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// openBookmarks returns the configured bookmark store, or nil when bookmarks
// are disabled. Misconfiguration or an unusable store disables bookmarks
// instead of failing.
func openBookmarks(ctx context.Context, cfg Config, verifier *auth.JWTVerifier, log *slog.Logger) bookmark.Store {
	if cfg.BookmarkStore == "none" || cfg.BookmarkStore == "" {
		log.Info("bookmarks disabled")
		return nil
	}
	if !verifier.Enabled() {
		log.Warn("JWT_SECRET not set, bookmarks disabled")
		return nil
	}

	switch cfg.BookmarkStore {
	case "sqlite":
		store, err := bookmark.OpenSQLite(cfg.BookmarkDSN)
		if err != nil {
			log.Warn("bookmark store unavailable, bookmarks disabled", "store", "sqlite", "path", cfg.BookmarkDSN, "err", err)
			return nil
		}
		log.Info("bookmarks enabled", "store", "sqlite", "path", cfg.BookmarkDSN)
		return store
	case "neo4j":
		if cfg.Neo4jURL == "" {
			log.Warn("NEO4J_URL not set, bookmarks disabled")
			return nil
		}
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			log.Warn("bookmark store unavailable, bookmarks disabled", "store", "neo4j", "err", err)
			return nil
		}
		ping := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
			return fn.FromPair(struct{}{}, driver.VerifyConnectivity(ctx))
		})
		if ping.IsErr() {
			driver.Close(ctx)
			log.Warn("neo4j unreachable, bookmarks disabled", "err", ping.Error())
			return nil
		}
		store := bookmark.NewGraphStore(driver, repo.WithDatabase[bookmark.Bookmark, string](cfg.Neo4jDatabase))
		if err := store.EnsureIndex(ctx); err != nil {
			log.Warn("could not create bookmark index", "err", err)
		}
		log.Info("bookmarks enabled", "store", "neo4j", "database", cfg.Neo4jDatabase)
		return store
	default:
		log.Warn("unknown BOOKMARK_STORE, bookmarks disabled", "store", cfg.BookmarkStore)
		return nil
	}
}
