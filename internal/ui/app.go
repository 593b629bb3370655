package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/coord"
	"github.com/infblueocean/watchcrew/internal/otel"
	"github.com/infblueocean/watchcrew/internal/team"
)

// maxMessages caps the scrollback kept by the UI. The session log itself
// is not trimmed.
const maxMessages = 500

// chrome is the number of lines used by header, input and status bars.
const chrome = 3

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the session. It receives messages via
// program.Send and submits through the submit command function.
type App struct {
	submit func(text string) tea.Cmd
	game   team.Game
	ring   *otel.RingBuffer
	keys   keyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	messages []chat.Message
	state    coord.State
	last     coord.CycleStats
	spinning bool

	err    error
	width  int
	height int
	ready  bool
	debug  bool
}

// NewApp creates the chat screen. submit returns a Cmd that records the
// viewer's message; it runs off the UI goroutine. ring may be nil.
func NewApp(game team.Game, submit func(text string) tea.Cmd, ring *otel.RingBuffer) App {
	ti := textinput.New()
	ti.Placeholder = "Say something to the crew..."
	ti.Prompt = "> "
	ti.CharLimit = 280
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return App{
		submit:   submit,
		game:     game,
		ring:     ring,
		keys:     defaultKeyMap(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  s,
	}
}

// Init starts the cursor blink.
func (a App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-chrome, 1)
		a.input.Width = max(msg.Width-4, 1)
		a.refresh(true)
		return a, nil

	case MessageShown:
		follow := a.viewport.AtBottom()
		a.messages = append(a.messages, msg.Message)
		if len(a.messages) > maxMessages {
			a.messages = a.messages[len(a.messages)-maxMessages:]
		}
		a.refresh(follow)
		return a, nil

	case StateChanged:
		a.state = msg.State
		if busy(a.state) && !a.spinning {
			a.spinning = true
			return a, a.spinner.Tick
		}
		return a, nil

	case CycleComplete:
		a.last = msg.Stats
		return a, nil

	case SubmitDone:
		a.err = msg.Err
		return a, nil

	case spinner.TickMsg:
		if !busy(a.state) {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Debug):
		a.debug = !a.debug
		return a, nil

	case key.Matches(msg, a.keys.ScrollUp):
		a.viewport.HalfViewUp()
		return a, nil

	case key.Matches(msg, a.keys.ScrollDown):
		a.viewport.HalfViewDown()
		return a, nil

	case key.Matches(msg, a.keys.Bottom):
		a.viewport.GotoBottom()
		return a, nil

	case key.Matches(msg, a.keys.Send):
		text := strings.TrimSpace(a.input.Value())
		if text == "" {
			return a, nil
		}
		a.input.Reset()
		a.viewport.GotoBottom()
		if a.submit == nil {
			return a, nil
		}
		return a, a.submit(text)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// refresh re-renders the scrollback into the viewport.
func (a *App) refresh(follow bool) {
	a.viewport.SetContent(RenderMessages(a.messages, a.viewport.Width))
	if follow {
		a.viewport.GotoBottom()
	}
}

func busy(s coord.State) bool {
	return s == coord.StateRequesting || s == coord.StateStreaming
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debug {
		return debugOverlay(a.ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	header := RenderHeader(a.game, a.width)

	bottom := InputBar.Width(a.width).Render(a.input.View())
	if a.err != nil {
		bottom = ErrorStyle.Width(a.width).Render("Error: " + a.err.Error() + " (press any key to dismiss)")
	}

	spin := ""
	if busy(a.state) {
		spin = a.spinner.View()
	}
	status := RenderStatusBar(a.state, spin, a.last, a.width)

	return header + "\n" + a.viewport.View() + "\n" + bottom + "\n" + status
}

// Messages returns the scrollback (for testing).
func (a App) Messages() []chat.Message {
	return a.messages
}

// State returns the last known loop state (for testing).
func (a App) State() coord.State {
	return a.state
}
