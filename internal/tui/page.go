package tui

import tea "github.com/charmbracelet/bubbletea"

// Page is one screen of the dashboard. Pages receive every non-key message
// even while hidden; key presses only reach the page being shown.
type Page interface {
	ID() string
	Title() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav asks the App to show another page.
type PageNav struct {
	PageID string
}

func navigate(id string) *PageNav { return &PageNav{PageID: id} }
