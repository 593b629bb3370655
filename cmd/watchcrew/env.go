package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/infblueocean/watchcrew/internal/config"
	"github.com/infblueocean/watchcrew/internal/logging"
	"github.com/infblueocean/watchcrew/internal/news"
	"github.com/infblueocean/watchcrew/internal/orchestrate"
	"github.com/infblueocean/watchcrew/internal/store"
	"github.com/infblueocean/watchcrew/internal/team"
)

// env holds what every command needs: configuration, store and backend.
type env struct {
	cfg    *config.Config
	game   team.Game
	store  *store.Store
	client *orchestrate.Client
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("backend"); v != "" {
		cfg.Backend.URL = v
	}
	if v := c.String("game"); v != "" {
		cfg.Game.ID = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := logging.Init(cfg.LogDir(), cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		logging.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &env{
		cfg:    cfg,
		game:   cfg.ParsedGame(),
		store:  st,
		client: orchestrate.NewClient(cfg.Backend.URL, cfg.Backend.CallTimeout),
	}, nil
}

func (e *env) Close() {
	e.store.Close()
	logging.Close()
}

// newsProvider picks feed digests when feeds are configured and the
// backend summary is disabled; otherwise the backend summarizes.
func (e *env) newsProvider() news.Provider {
	if !e.cfg.News.UseBackend && len(e.cfg.News.Feeds) > 0 {
		feeds := make([]news.Feed, len(e.cfg.News.Feeds))
		for i, f := range e.cfg.News.Feeds {
			feeds[i] = news.Feed{Team: f.Team, URL: f.URL}
		}
		return news.NewFeedDigest(feeds, e.cfg.News.Headlines, nil)
	}
	return news.NewBackendSummarizer(e.client)
}
