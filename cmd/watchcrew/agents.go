package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/infblueocean/watchcrew/internal/logging"
	"github.com/infblueocean/watchcrew/internal/persona"
	"github.com/infblueocean/watchcrew/internal/team"
)

func agentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "agents",
		Usage: "Manage the fan agent roster",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show the stored roster",
				Action: listAgents,
			},
			{
				Name:      "import",
				Usage:     "Append agents from a JSON file",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return fmt.Errorf("agents import: FILE is required")
					}
					e, err := setup(c)
					if err != nil {
						return err
					}
					defer e.Close()

					added, total, err := importAgents(e, path)
					if err != nil {
						return err
					}
					fmt.Printf("Imported %d agents (%d total)\n", added, total)
					return nil
				},
			},
			{
				Name:  "generate",
				Usage: "Ask the backend to draft new agents from a prompt",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "prompt",
						Aliases:  []string{"p"},
						Usage:    "Description of the fans to create",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "team",
						Aliases: []string{"t"},
						Usage:   "Team the new fans support (default: viewer team)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the candidates without saving them",
					},
				},
				Action: generateAgents,
			},
		},
	}
}

func loadRoster(e *env) (persona.Roster, error) {
	raw, err := e.store.Agents()
	if err != nil {
		return persona.Roster{}, fmt.Errorf("load agents: %w", err)
	}
	return persona.Parse(raw)
}

func listAgents(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	roster, err := loadRoster(e)
	if err != nil {
		return err
	}
	if roster.Len() == 0 {
		fmt.Println("No agents stored. Use `watchcrew agents import FILE` or `agents generate`.")
		return nil
	}

	resolver := team.NewResolver(nil)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "TEAM", "AVATAR")
	for _, a := range roster.Agents() {
		label := roster.TeamOf(a.Name)
		if id, ok := resolver.Resolve(label); ok {
			if info, ok := team.Lookup(id); ok {
				label = info.DisplayName
			}
		}
		t.Row(a.Name, label, roster.Avatar(a.Name))
	}
	fmt.Println(t.Render())
	return nil
}

// importAgents appends the file's records to the stored roster, skipping
// names already present.
func importAgents(e *env, path string) (added, total int, err error) {
	raw, err := persona.LoadFile(path)
	if err != nil {
		return 0, 0, err
	}
	roster, err := loadRoster(e)
	if err != nil {
		return 0, 0, err
	}
	merged, added, err := roster.Append(raw)
	if err != nil {
		return 0, 0, err
	}
	if err := e.store.SaveAgents(merged.Raw()); err != nil {
		return 0, 0, fmt.Errorf("save agents: %w", err)
	}
	logging.Info("agents imported", "path", path, "added", added, "total", merged.Len())
	return added, merged.Len(), nil
}

// syncAgents makes the stored roster match the file exactly.
func syncAgents(e *env, path string) error {
	raw, err := persona.LoadFile(path)
	if err != nil {
		return err
	}
	if err := e.store.SaveAgents(raw); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	logging.Info("agents synced", "path", path, "count", len(raw))
	return nil
}

func generateAgents(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	teamName := c.String("team")
	if teamName == "" {
		if info, ok := team.Lookup(e.cfg.ViewerTeam()); ok {
			teamName = info.DisplayName
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, e.cfg.Backend.CallTimeout)
	defer cancel()

	candidates, err := e.client.GenerateCandidates(ctx, c.String("prompt"), teamName)
	if err != nil {
		return fmt.Errorf("generate agents: %w", err)
	}
	drafted, err := persona.Parse(candidates)
	if err != nil {
		return fmt.Errorf("backend returned unusable agents: %w", err)
	}
	fmt.Printf("Drafted %d agents: %s\n", drafted.Len(), strings.Join(drafted.Names(), ", "))
	if c.Bool("dry-run") {
		return nil
	}

	roster, err := loadRoster(e)
	if err != nil {
		return err
	}
	merged, added, err := roster.Append(candidates)
	if err != nil {
		return err
	}
	if err := e.store.SaveAgents(merged.Raw()); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	fmt.Printf("Saved %d new agents (%d total)\n", added, merged.Len())
	return nil
}
