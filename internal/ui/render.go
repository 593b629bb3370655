package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/coord"
	"github.com/infblueocean/watchcrew/internal/team"
)

// bodyIndent is the left margin of message bodies.
const bodyIndent = "  "

// RenderMessages renders the chat log for a viewport of the given width.
func RenderMessages(msgs []chat.Message, width int) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(m, width))
	}
	return b.String()
}

// renderMessage renders one message: a header line with team badge, name
// and time, then the wrapped text.
func renderMessage(m chat.Message, width int) string {
	bodyWidth := width - runewidth.StringWidth(bodyIndent)

	if m.Kind == chat.KindSystem {
		lines := wrapText("! "+m.Text, width)
		for i := range lines {
			lines[i] = SystemMessage.Render(lines[i])
		}
		return strings.Join(lines, "\n")
	}

	rec, ok := team.Lookup(m.TeamID)
	label := m.TeamID
	if ok {
		label = rec.ShortName
	}

	name := SpeakerName.Render(runewidth.Truncate(m.DisplayName, 24, "…"))
	if m.Kind == chat.KindViewer {
		name = ViewerName.Render(runewidth.Truncate(m.DisplayName, 24, "…"))
	}

	header := TeamBadge(rec.ColorToken).Render(label) + " " + name
	if m.AvatarKey != "" {
		header += Timestamp.Render(" #" + runewidth.Truncate(m.AvatarKey, 8, ""))
	}
	if !m.ShownAt.IsZero() {
		header += " " + Timestamp.Render(m.ShownAt.Format("15:04:05"))
	}

	lines := []string{header}
	for _, l := range wrapText(m.Text, bodyWidth) {
		lines = append(lines, bodyIndent+MessageText.Render(l))
	}
	return strings.Join(lines, "\n")
}

// wrapText breaks s into lines no wider than width terminal cells,
// preferring word boundaries. Wide runes (Hangul, CJK) count as two cells.
func wrapText(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		var line strings.Builder
		lineW := 0
		start := len(lines)

		for _, word := range strings.Fields(para) {
			ww := runewidth.StringWidth(word)
			if lineW > 0 && lineW+1+ww <= width {
				line.WriteByte(' ')
				line.WriteString(word)
				lineW += 1 + ww
				continue
			}
			if lineW > 0 {
				lines = append(lines, line.String())
				line.Reset()
				lineW = 0
			}
			for ww > width {
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					// A single rune wider than the line.
					head = string([]rune(word)[:1])
				}
				lines = append(lines, head)
				word = word[len(head):]
				ww = runewidth.StringWidth(word)
			}
			line.WriteString(word)
			lineW = ww
		}

		if lineW > 0 || len(lines) == start {
			lines = append(lines, line.String())
		}
	}
	return lines
}

// RenderHeader renders the matchup line.
func RenderHeader(game team.Game, width int) string {
	home, _ := team.Lookup(game.Home)
	away, _ := team.Lookup(game.Away)

	title := fmt.Sprintf("%s vs %s", home.DisplayName, away.DisplayName)
	if game.Date != "" {
		title += "  " + game.Date
	}
	title = runewidth.Truncate(title, max(width-2, 1), "…")
	return Header.Width(width).Render(title)
}

// stateLabel describes the loop state for the status bar.
func stateLabel(s coord.State) string {
	switch s {
	case coord.StateIdle:
		return "starting"
	case coord.StateRequesting:
		return "waiting for the crew"
	case coord.StateStreaming:
		return "live"
	case coord.StateCooling:
		return "between batches"
	case coord.StateStopped:
		return "stopped"
	default:
		return s.String()
	}
}

// RenderStatusBar renders the bottom bar: loop state and last cycle on the
// left, key hints on the right.
func RenderStatusBar(state coord.State, spin string, last coord.CycleStats, width int) string {
	left := " " + stateLabel(state) + " "
	if spin != "" {
		left = " " + spin + left
	}

	var info string
	if last.Cycle > 0 {
		info = fmt.Sprintf("cycle %d · %d shown", last.Cycle, last.Displayed)
		if last.ParseErrors > 0 {
			info += fmt.Sprintf(" · %d skipped", last.ParseErrors)
		}
		if last.RequestErr != nil {
			info += " · offline"
		} else if last.StreamErr != nil {
			info += " · cut short"
		}
	}

	keys := []string{
		StatusBarKey.Render("Enter") + StatusBarText.Render(":send"),
		StatusBarKey.Render("PgUp/PgDn") + StatusBarText.Render(":scroll"),
		StatusBarKey.Render("^D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("Esc") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")

	infoText := StatusBarText.Render(info)
	padding := width - lipgloss.Width(left) - lipgloss.Width(infoText) - lipgloss.Width(keyHints) - 2
	if padding < 1 {
		padding = 1
	}

	bar := left + infoText + strings.Repeat(" ", padding) + keyHints
	return StatusBar.Width(width).Render(bar)
}
