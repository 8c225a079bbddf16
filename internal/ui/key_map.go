package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	louder   key.Binding
	quieter  key.Binding
	toggle   key.Binding
	stop     key.Binding
	download key.Binding
	next     key.Binding
	submit   key.Binding
	back     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev track")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next track")),
		louder:   key.NewBinding(key.WithKeys("right", "l", "+"), key.WithHelp("→/l", "volume up")),
		quieter:  key.NewBinding(key.WithKeys("left", "h", "-"), key.WithHelp("←/h", "volume down")),
		toggle:   key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		stop:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download zip")),
		next:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch field")),
		submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "separate")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "new upload")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.stop, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.stop, k.download},
		{k.up, k.down, k.louder, k.quieter},
		{k.back, k.quit},
	}
}
