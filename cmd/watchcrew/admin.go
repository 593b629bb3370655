package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/infblueocean/watchcrew/internal/config"
)

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Rewind the backend's replay to the start of the game",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(c.Context, e.cfg.Backend.CallTimeout)
			defer cancel()
			if err := e.client.ResetRowIndex(ctx); err != nil {
				return fmt.Errorf("reset replay: %w", err)
			}
			fmt.Println("Replay rewound.")
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Work with the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if path == "" {
						path = config.DefaultPath()
					}
					if err := config.InitFile(path); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					game := cfg.ParsedGame()
					fmt.Printf("backend   %s (request %s, call %s)\n", cfg.Backend.URL, cfg.Backend.RequestTimeout, cfg.Backend.CallTimeout)
					fmt.Printf("game      %s  %s vs %s  %s\n", game.ID, game.Home, game.Away, cfg.Game.Status)
					fmt.Printf("viewer    %s (%s)\n", cfg.Viewer.Name, cfg.ViewerTeam())
					fmt.Printf("pacing    %s-%s per %d runes\n", cfg.Pacing.MinInterval, cfg.Pacing.MaxInterval, cfg.Pacing.ReferenceLength)
					fmt.Printf("loop      every %s\n", cfg.Loop.Period)
					fmt.Printf("data dir  %s\n", cfg.Storage.DataDir)
					return nil
				},
			},
		},
	}
}
