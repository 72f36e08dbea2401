package ui

import "github.com/charmbracelet/bubbles/key"

// Key bindings. Plain letters go to the focused text input, so global
// actions use ctrl chords.
var keys = struct {
	Quit     key.Binding
	Reset    key.Binding
	Debug    key.Binding
	Settings key.Binding
	History  key.Binding
	Focus    key.Binding
	Enter    key.Binding
	Escape   key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
}{
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Reset:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
	Debug:    key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "debug")),
	Settings: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "settings")),
	History:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "previous query")),
	Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
	Enter:    key.NewBinding(key.WithKeys("enter")),
	Escape:   key.NewBinding(key.WithKeys("esc")),
	Up:       key.NewBinding(key.WithKeys("up", "k")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	Left:     key.NewBinding(key.WithKeys("left", "h")),
	Right:    key.NewBinding(key.WithKeys("right", "l")),
}
