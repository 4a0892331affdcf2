package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/feed"
	"github.com/WessleyAI/technews/engine/filter"
	"github.com/WessleyAI/technews/pkg/fn"
)

func (a *app) headlinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "headlines",
		Short: "Show top technology headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := feed.Fetch(cmd.Context(), a.newFetcher(), filter.NewModel().Filters()).Unwrap()
			if err != nil {
				return err
			}
			return a.printArticles(resp)
		},
	}
}

func (a *app) categoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "category <id>",
		Short: "Show news for one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToLower(strings.TrimSpace(args[0]))
			if _, ok := domain.LookupCategory(id); !ok {
				return fmt.Errorf("%w: %q (see 'technews categories')", domain.ErrUnknownCategory, id)
			}
			resp, err := feed.Fetch(cmd.Context(), a.newFetcher(), domain.FilterSet{Category: id, SortBy: domain.SortPublishedAt}).Unwrap()
			if err != nil {
				return err
			}
			return a.printArticles(resp)
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var sort, from, to, category string
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search news by keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := filter.NewModel().
				SetCategory(category).
				SetSearch(strings.Join(args, " ")).
				SetSort(domain.ParseSortBy(sort)).
				SetRange(from, to).
				Filters()
			if strings.TrimSpace(fs.Query) == "" {
				return fmt.Errorf("search query is empty")
			}
			// Bypass the feed selection so category all still searches.
			resp, err := a.newFetcher().Search(cmd.Context(), fs).Unwrap()
			if err != nil {
				return err
			}
			return a.printArticles(feed.Clean(resp))
		},
	}
	cmd.Flags().StringVar(&sort, "sort", string(domain.SortPublishedAt), "publishedAt or relevance")
	cmd.Flags().StringVar(&from, "from", "", "earliest publication date (ISO-8601)")
	cmd.Flags().StringVar(&to, "to", "", "latest publication date (ISO-8601)")
	cmd.Flags().StringVar(&category, "category", domain.CategoryAll, "category recorded with the search")
	return cmd
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List category ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := domain.Categories()
			if a.flagJSON {
				return a.printJSON(cats)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, c := range cats {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Label)
			}
			return tw.Flush()
		},
	}
}

// digestSection is one category's slice of the digest.
type digestSection struct {
	Category domain.Category  `json:"category"`
	Articles []domain.Article `json:"articles"`
	Error    string           `json:"error,omitempty"`
}

func digestLine(art domain.Article) string {
	return fmt.Sprintf("%s (%s)", truncate(art.Title, 90), art.Source.Name)
}

func (a *app) digestCmd() *cobra.Command {
	var per, workers int
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Top stories from every category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := a.newFetcher()
			cats := fn.Filter(domain.Categories(), func(c domain.Category) bool { return c.ID != domain.CategoryAll })
			sections := fn.ParMap(cats, workers, func(c domain.Category) digestSection {
				fs := filter.NewModel().SetCategory(c.ID).Filters()
				r := feed.Fetch(cmd.Context(), f, fs)
				sec := digestSection{Category: c, Articles: r.UnwrapOr(domain.NewsResponse{}).Articles}
				if err := r.Error(); err != nil {
					sec.Error = err.Error()
				}
				if per > 0 && len(sec.Articles) > per {
					sec.Articles = sec.Articles[:per]
				}
				return sec
			})
			if a.flagJSON {
				return a.printJSON(sections)
			}
			for _, s := range sections {
				fmt.Fprintf(a.out, "== %s ==\n", s.Category.Label)
				if s.Error != "" {
					fmt.Fprintf(a.out, "  error: %s\n", s.Error)
				}
				for _, line := range fn.Map(s.Articles, digestLine) {
					fmt.Fprintf(a.out, "  - %s\n", line)
				}
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&per, "per", 3, "articles per category")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent category fetches")
	return cmd
}
