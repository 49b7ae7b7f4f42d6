package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// App is the top-level Bubble Tea model that routes between pages.
type App struct {
	pages      map[string]Page
	order      []string
	activePage string
	width      int
	height     int
}

// NewApp creates an App with the given pages. The first page is the default.
func NewApp(pages ...Page) *App {
	a := &App{pages: make(map[string]Page, len(pages))}
	for _, p := range pages {
		if _, dup := a.pages[p.ID()]; dup {
			continue
		}
		a.pages[p.ID()] = p
		a.order = append(a.order, p.ID())
	}
	if len(a.order) > 0 {
		a.activePage = a.order[0]
	}
	return a
}

// Init starts every page, so background feeds run regardless of which page is shown.
func (a *App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(a.pages))
	for _, p := range a.pages {
		cmds = append(cmds, p.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.route(msg)
	}

	// Everything but input reaches every page so background feeds keep
	// flowing while another page is shown.
	var cmds []tea.Cmd
	for id, p := range a.pages {
		if id == a.activePage {
			continue
		}
		cmd, _ := p.Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(append(cmds, a.route(msg))...)
}

func (a *App) route(msg tea.Msg) tea.Cmd {
	p, ok := a.pages[a.activePage]
	if !ok {
		return nil
	}

	cmd, nav := p.Update(msg)
	if nav != nil {
		if _, exists := a.pages[nav.PageID]; exists {
			a.activePage = nav.PageID
		}
	}
	return cmd
}

// ActivePage returns the ID of the page being shown.
func (a *App) ActivePage() string { return a.activePage }

func (a *App) View() string {
	p, ok := a.pages[a.activePage]
	if !ok {
		return "No active page"
	}
	return a.tabs() + "\n" + p.View(a.width, max(a.height-1, 0))
}

func (a *App) tabs() string {
	parts := make([]string, 0, len(a.order))
	for _, id := range a.order {
		style := tabStyle
		if id == a.activePage {
			style = activeTabStyle
		}
		parts = append(parts, style.Render(a.pages[id].Title()))
	}
	return strings.Join(parts, " ")
}
