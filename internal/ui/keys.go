package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the chat screen bindings.
type keyMap struct {
	Send       key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Bottom     key.Binding
	Debug      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Quit:       key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+f"), key.WithHelp("pgdn", "scroll down")),
		Bottom:     key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("^g", "latest")),
		Debug:      key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("^d", "debug")),
	}
}
