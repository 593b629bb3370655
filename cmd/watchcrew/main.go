// Command watchcrew watches a live baseball game with a crew of AI fans.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "watchcrew",
		Usage:   "live fan chat for KBO broadcasts, in your terminal",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default ~/.watchcrew/watchcrew.toml)",
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Backend base `URL`, overrides backend.url",
			},
			&cli.StringFlag{
				Name:    "game",
				Aliases: []string{"g"},
				Usage:   "Game `ID` such as 250523_HTSS, overrides game.id",
			},
		},
		Action: runWatch,
		Commands: []*cli.Command{
			watchCommand(),
			agentsCommand(),
			newsCommand(),
			resetCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
