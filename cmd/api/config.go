package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	MetricsPort string
	CORSOrigin  string
	LogLevel    string

	APIKey  string
	BaseURL string

	NATSURL     string
	NATSSubject string

	BookmarkStore string // sqlite, neo4j or none
	BookmarkDSN   string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	Neo4jDatabase string // empty selects the server default

	JWTSecret string
}

// loadDotEnv reads .env when present. A missing file is not an error.
func loadDotEnv(log *slog.Logger) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env", "err", err)
	}
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		MetricsPort:   envOr("METRICS_PORT", "9090"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		APIKey:        os.Getenv("GNEWS_API_KEY"),
		BaseURL:       envOr("GNEWS_BASE_URL", "https://gnews.io/api/v4"),
		NATSURL:       os.Getenv("NATS_URL"),
		NATSSubject:   envOr("NATS_SUBJECT", "technews.feed"),
		BookmarkStore: strings.ToLower(envOr("BOOKMARK_STORE", "none")),
		BookmarkDSN:   envOr("BOOKMARK_DSN", "data/bookmarks.db"),
		Neo4jURL:      os.Getenv("NEO4J_URL"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     os.Getenv("NEO4J_PASS"),
		Neo4jDatabase: os.Getenv("NEO4J_DATABASE"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
