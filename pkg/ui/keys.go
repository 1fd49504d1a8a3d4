package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the tree bindings. It implements help.KeyMap.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	HalfDown key.Binding
	HalfUp   key.Binding
	Toggle   key.Binding
	Expand   key.Binding
	Collapse key.Binding
	LoadMore key.Binding
	Retry    key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Bigger   key.Binding
	Smaller  key.Binding
	Reroot   key.Binding
	Back     key.Binding
	Favorite key.Binding
	Pin      key.Binding
	Copy     key.Binding
	Detail   key.Binding
	Claim    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		HalfDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("ctrl+d", "half page down")),
		HalfUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("ctrl+u", "half page up")),
		Toggle:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter/space", "expand/collapse")),
		Expand:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "expand or enter")),
		Collapse: key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "collapse or parent")),
		LoadMore: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		NextPage: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
		PrevPage: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
		Bigger:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "bigger pages")),
		Smaller:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "smaller pages")),
		Reroot:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "view subtree")),
		Back:     key.NewBinding(key.WithKeys("u", "backspace"), key.WithHelp("u", "previous root")),
		Favorite: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "jump to favorite")),
		Pin:      key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "pin root to next free slot")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy email")),
		Detail:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "details")),
		Claim:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "claim commissions")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp is shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.LoadMore, k.NextPage, k.Reroot, k.Detail, k.Help, k.Quit}
}

// FullHelp is shown when help is expanded.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.HalfDown, k.HalfUp},
		{k.Toggle, k.Expand, k.Collapse, k.LoadMore, k.Retry},
		{k.NextPage, k.PrevPage, k.Bigger, k.Smaller},
		{k.Reroot, k.Back, k.Favorite, k.Pin},
		{k.Copy, k.Detail, k.Claim, k.Help, k.Quit},
	}
}
