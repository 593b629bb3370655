package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/infblueocean/watchcrew/internal/news"
)

func newsCommand() *cli.Command {
	return &cli.Command{
		Name:  "news",
		Usage: "Inspect or refresh the per-team news summaries",
		Subcommands: []*cli.Command{
			{
				Name:  "refresh",
				Usage: "Fetch fresh summaries for the configured game",
				Action: func(c *cli.Context) error {
					e, err := setup(c)
					if err != nil {
						return err
					}
					defer e.Close()

					r := news.NewRefresher(e.newsProvider(), e.store, e.game, e.cfg.News.MinRefresh, nil, nil)
					summaries, err := r.Refresh(c.Context)
					if err != nil {
						return fmt.Errorf("refresh news: %w", err)
					}
					printSummaries(summaries, time.Now())
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print the cached summaries",
				Action: func(c *cli.Context) error {
					e, err := setup(c)
					if err != nil {
						return err
					}
					defer e.Close()

					summaries, updated, err := e.store.News(e.game.ID)
					if err != nil {
						return err
					}
					if updated.IsZero() {
						fmt.Printf("No news cached for %s. Run `watchcrew news refresh`.\n", e.game.ID)
						return nil
					}
					printSummaries(summaries, updated)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "Drop all cached summaries",
				Action: func(c *cli.Context) error {
					e, err := setup(c)
					if err != nil {
						return err
					}
					defer e.Close()
					return e.store.ClearNews()
				},
			},
		},
	}
}

func printSummaries(summaries map[string]string, updated time.Time) {
	teams := make([]string, 0, len(summaries))
	for t := range summaries {
		teams = append(teams, t)
	}
	sort.Strings(teams)

	fmt.Printf("Updated %s\n\n", updated.Local().Format("2006-01-02 15:04"))
	for _, t := range teams {
		fmt.Printf("%s\n  %s\n\n", t, summaries[t])
	}
}
