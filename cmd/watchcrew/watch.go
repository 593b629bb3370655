package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/commentary"
	"github.com/infblueocean/watchcrew/internal/convo"
	"github.com/infblueocean/watchcrew/internal/coord"
	"github.com/infblueocean/watchcrew/internal/logging"
	"github.com/infblueocean/watchcrew/internal/news"
	"github.com/infblueocean/watchcrew/internal/otel"
	"github.com/infblueocean/watchcrew/internal/pacer"
	"github.com/infblueocean/watchcrew/internal/persona"
	"github.com/infblueocean/watchcrew/internal/ui"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Open the live chat for the configured game (default command)",
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	events, err := otel.OpenFile(e.cfg.LogDir())
	if err != nil {
		logging.Warn("event log unavailable", "error", err)
		events = otel.NewNullLogger()
	}
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)
	defer events.Close()

	// An agents file replaces the stored roster, then edits are followed.
	if path := e.cfg.Agents.File; path != "" {
		if err := syncAgents(e, path); err != nil {
			return err
		}
		if e.cfg.Agents.Watch {
			w, err := persona.NewWatcher(path, func(r persona.Roster) error {
				events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindAgentsReload, Comp: "persona", Count: r.Len()})
				return e.store.SaveAgents(r.Raw())
			})
			if err != nil {
				return fmt.Errorf("watch agents file: %w", err)
			}
			defer w.Close()
		}
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	var session *coord.Session
	submit := func(text string) tea.Cmd {
		return func() tea.Msg {
			_, err := session.Submit(text)
			return ui.SubmitDone{Err: err}
		}
	}

	app := ui.NewApp(e.game, submit, ring)
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	refresher := news.NewRefresher(e.newsProvider(), e.store, e.game, e.cfg.News.MinRefresh, nil, events)

	session = coord.New(coord.Deps{
		Client:   e.client,
		Aux:      coord.NewStoreAux(e.store, e.game.ID, e.cfg.Game.Status, e.cfg.Game.Flow),
		Sink:     chat.NewLog(ui.Notify(program)),
		Context:  convo.New(),
		Events:   events,
		Observer: ui.NewObserver(program),
		News:     refresher,
		Parser:   &commentary.Parser{DefaultTeam: e.cfg.Chat.DefaultTeamLabel, Repair: e.cfg.Chat.RepairJSON},
	}, coord.Options{
		Period:         e.cfg.Loop.Period,
		RequestTimeout: e.cfg.Backend.RequestTimeout,
		Game:           e.game,
		Pacing: pacer.Options{
			ReferenceLength: e.cfg.Pacing.ReferenceLength,
			MinInterval:     e.cfg.Pacing.MinInterval,
			MaxInterval:     e.cfg.Pacing.MaxInterval,
		},
		ViewerName:  e.cfg.Viewer.Name,
		ViewerTeam:  e.cfg.ViewerTeam(),
		ResetOnStop: true,
	})
	session.Start(ctx)

	// Run UI (blocks until quit)
	_, runErr := program.Run()

	// Graceful shutdown
	cancel()
	session.Wait()
	refresher.Wait()

	if runErr != nil && runErr != tea.ErrProgramKilled {
		return fmt.Errorf("run UI: %w", runErr)
	}
	return nil
}
