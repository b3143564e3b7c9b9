package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Forward  key.Binding
	Back     key.Binding
	Confirm  key.Binding
	Next     key.Binding
	Previous key.Binding
	Shuffle  key.Binding
	Preset   key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc", "q"),
		key.WithHelp("esc", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Forward: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab", "continue"),
	),
	Back: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h", "backspace", "b"),
		key.WithHelp("shift+tab", "back"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "confirm"),
	),
	Next: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "next"),
	),
	Previous: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "previous"),
	),
	Shuffle: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "shuffle"),
	),
	Preset: key.NewBinding(
		key.WithKeys("1", "2", "3", "4"),
		key.WithHelp("1-4", "preset"),
	),
}

// hint renders a binding's help as an instruction.
func hint(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + h.Desc
}

func hints(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.Enabled() {
			parts = append(parts, hint(b))
		}
	}
	return renderInstructions(parts)
}
