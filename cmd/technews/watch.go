package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/feed"
	"github.com/WessleyAI/technews/engine/filter"
	"github.com/WessleyAI/technews/pkg/natsutil"
)

func (a *app) watchCmd() *cobra.Command {
	var (
		category, search, sort string
		interval               time.Duration
		count                  int
		natsURL, subject       string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a feed and print every update",
		Long: "watch runs a live feed subscription, refreshing on an interval, and prints each state change until interrupted. " +
			"With --nats it follows the feed published by the API server instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			updates := make(chan feed.State, 16)
			push := func(st feed.State) {
				select {
				case updates <- st:
				default:
					a.log.Warn("dropping feed update, printer is behind")
				}
			}

			if natsURL != "" {
				nc, err := natsutil.Connect(natsURL, "technews-cli", a.log)
				if err != nil {
					return err
				}
				defer nc.Close()
				sub, err := natsutil.Subscribe(nc, subject, a.log, func(_ context.Context, st feed.State) { push(st) })
				if err != nil {
					return fmt.Errorf("subscribe %s: %w", subject, err)
				}
				defer sub.Unsubscribe()
			} else {
				fs := filter.NewModel().SetCategory(category).SetSearch(search).SetSort(domain.ParseSortBy(sort)).Filters()
				sub := feed.Start(ctx, a.newFetcher(), fs, feed.Options{
					RefreshInterval: interval,
					Logger:          a.log,
					OnUpdate:        push,
				})
				defer sub.Close()
			}

			for seen := 0; count <= 0 || seen < count; {
				select {
				case <-ctx.Done():
					return nil
				case st := <-updates:
					seen++
					if err := a.printState(st); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&category, "category", domain.CategoryAll, "category id")
	f.StringVar(&search, "search", "", "search text")
	f.StringVar(&sort, "sort", string(domain.SortPublishedAt), "publishedAt or relevance")
	f.DurationVar(&interval, "interval", 10*time.Minute, "refresh interval")
	f.IntVar(&count, "count", 0, "exit after this many updates (0 runs until interrupted)")
	f.StringVar(&natsURL, "nats", "", "follow the API server's feed over NATS at this URL")
	f.StringVar(&subject, "subject", "technews.feed", "NATS subject of the API server's feed")
	return cmd
}

func (a *app) printState(st feed.State) error {
	if a.flagJSON {
		return a.printJSON(st)
	}
	switch {
	case st.Loading:
		fmt.Fprintf(a.out, "[%s] loading %q...\n", st.Filters.Category, st.Filters.Query)
		return nil
	case st.IsRefreshing:
		fmt.Fprintf(a.out, "[%s] refreshing...\n", st.Filters.Category)
		return nil
	case st.Error != "":
		fmt.Fprintf(a.out, "[%s] error: %s\n", st.Filters.Category, st.Error)
		if len(st.Articles) == 0 {
			return nil
		}
	}
	fmt.Fprintf(a.out, "[%s] updated %s\n", st.Filters.Category, st.LastFetch.Local().Format(time.Kitchen))
	return a.printArticles(domain.NewsResponse{TotalArticles: st.TotalArticles, Articles: st.Articles})
}
