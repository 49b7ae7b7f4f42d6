package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/expl-one/livestats/internal/projects"
)

const CatalogPageID = "catalog"

// CatalogPage lists the project table and its validation result.
type CatalogPage struct {
	projects []projects.Project
	result   projects.ValidationResult
	keys     KeyMap
}

// NewCatalogPage validates cat once and keeps the result for display.
func NewCatalogPage(cat *projects.Catalog) *CatalogPage {
	return &CatalogPage{
		projects: cat.Projects(),
		result:   projects.Validate(cat),
		keys:     DefaultKeyMap(),
	}
}

func (c *CatalogPage) ID() string { return CatalogPageID }

func (c *CatalogPage) Title() string { return "Catalog" }

func (c *CatalogPage) Init() tea.Cmd { return nil }

func (c *CatalogPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, c.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, c.keys.Back), key.Matches(msg, c.keys.Catalog):
			return nil, navigate(DashboardPageID)
		}
	}
	return nil, nil
}

func (c *CatalogPage) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Project catalog"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%-20s %-12s %-24s %s\n", "PROJECT", "STATUS", "KEY", "START")
	for _, p := range c.projects {
		fmt.Fprintf(&b, "%-20s %-12s %-24s %s\n", p.Name, p.Status, p.Repo, p.StartDate)
	}
	b.WriteString("\n")

	section := func(title string, color lipgloss.Color, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(color).Render(title))
		b.WriteString("\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
	}
	section("Errors", ColorRed, c.result.Errors)
	section("Warnings", ColorAmber, c.result.Warnings)
	section("Info", ColorGray, c.result.Info)
	if c.result.Clean() {
		b.WriteString(lipgloss.NewStyle().Foreground(ColorGreen).Render("Catalog is complete and valid"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpLine(c.keys.Back, c.keys.Quit))
	return b.String()
}
