package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/feed"
	"github.com/WessleyAI/technews/engine/newsapi"
)

type app struct {
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger

	flagAPIKey  string
	flagBaseURL string
	flagJSON    bool
	flagLimit   int
	flagVerbose bool

	// newFetcher builds the news source after flags are parsed.
	newFetcher func() feed.Fetcher
}

func newApp(out, errOut io.Writer) *app {
	a := &app{out: out, errOut: errOut}
	a.newFetcher = a.defaultFetcher
	return a
}

func (a *app) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "technews",
		Short:         "Tech news headlines, categories and search",
		Long:          "technews fetches technology news from GNews, falling back to a built-in offline set when no API key is configured.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.flagVerbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				a.log.Warn("could not load .env", "err", err)
			}
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagAPIKey, "api-key", "", "GNews API key (default $GNEWS_API_KEY)")
	pf.StringVar(&a.flagBaseURL, "base-url", "", "GNews API base URL (default $GNEWS_BASE_URL)")
	pf.BoolVar(&a.flagJSON, "json", false, "print JSON instead of text")
	pf.IntVarP(&a.flagLimit, "limit", "n", 10, "maximum articles to print (0 for all)")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		a.headlinesCmd(),
		a.categoryCmd(),
		a.searchCmd(),
		a.categoriesCmd(),
		a.digestCmd(),
		a.watchCmd(),
		a.tokenCmd(),
	)
	return root
}

func (a *app) defaultFetcher() feed.Fetcher {
	key := a.flagAPIKey
	if key == "" {
		key = os.Getenv("GNEWS_API_KEY")
	}
	base := a.flagBaseURL
	if base == "" {
		base = os.Getenv("GNEWS_BASE_URL")
	}
	c := newsapi.New(newsapi.Options{APIKey: key, BaseURL: base, Logger: a.log})
	if !c.Configured() {
		a.log.Warn("no API key configured, showing offline content")
	}
	return c
}

// --- Output ---

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printArticles(resp domain.NewsResponse) error {
	articles := resp.Articles
	if a.flagLimit > 0 && len(articles) > a.flagLimit {
		articles = articles[:a.flagLimit]
	}
	if a.flagJSON {
		return a.printJSON(domain.NewsResponse{TotalArticles: resp.TotalArticles, Articles: articles})
	}
	if len(articles) == 0 {
		fmt.Fprintln(a.out, "No articles found.")
		return nil
	}
	for i, art := range articles {
		fmt.Fprintf(a.out, "%2d. %s\n", i+1, art.Title)
		fmt.Fprintf(a.out, "    %s | %s\n", art.Source.Name, age(art.Published()))
		fmt.Fprintf(a.out, "    %s\n", art.URL)
	}
	fmt.Fprintf(a.out, "\n%d of %d articles\n", len(articles), resp.TotalArticles)
	return nil
}

// age renders how long ago t was, coarsely.
func age(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	d := nowFunc().Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}

var nowFunc = time.Now

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
