package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/expl-one/livestats/internal/binding"
	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/projects"
)

const (
	DashboardPageID = "dashboard"

	cardWidth      = 30
	activityHeight = 3
	refreshTimeout = 10 * time.Second
)

// RefreshDoneMsg reports the result of a manual refresh.
type RefreshDoneMsg struct{ Err error }

// DashboardPage shows the aggregate strip and one card per project.
type DashboardPage struct {
	projects []projects.Project
	feed     *Feed
	refresh  func(context.Context) error
	keys     KeyMap
	spinner  spinner.Model

	aggregate    binding.AggregateView
	hasAggregate bool
	views        map[string]binding.ProjectView
	selected     int
	refreshing   bool
	lastErr      error
}

// NewDashboardPage creates the dashboard. refresh may be nil.
func NewDashboardPage(cat *projects.Catalog, feed *Feed, refresh func(context.Context) error) *DashboardPage {
	return &DashboardPage{
		projects: cat.Projects(),
		feed:     feed,
		refresh:  refresh,
		keys:     DefaultKeyMap(),
		spinner:  newSpinner(),
		views:    make(map[string]binding.ProjectView),
	}
}

func (d *DashboardPage) ID() string { return DashboardPageID }

func (d *DashboardPage) Title() string { return "Dashboard" }

func (d *DashboardPage) Init() tea.Cmd {
	return tea.Batch(d.spinner.Tick, func() tea.Msg { return d.feed.Snapshot() })
}

func (d *DashboardPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case FeedMsg:
		d.apply(msg)
		return d.feed.Wait(), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return cmd, nil

	case RefreshDoneMsg:
		d.refreshing = false
		d.lastErr = msg.Err
		return nil, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, d.keys.Left):
			d.move(-1)
		case key.Matches(msg, d.keys.Right):
			d.move(1)
		case key.Matches(msg, d.keys.Refresh):
			return d.startRefresh(), nil
		case key.Matches(msg, d.keys.Catalog):
			return nil, navigate(CatalogPageID)
		}
	}
	return nil, nil
}

func (d *DashboardPage) apply(msg FeedMsg) {
	if msg.HasAggregate {
		d.aggregate, d.hasAggregate = msg.Aggregate, true
	}
	for id, v := range msg.Projects {
		d.views[id] = v
	}
}

func (d *DashboardPage) move(delta int) {
	n := len(d.projects)
	if n == 0 {
		return
	}
	d.selected = (d.selected + delta + n) % n
}

func (d *DashboardPage) startRefresh() tea.Cmd {
	if d.refresh == nil || d.refreshing {
		return nil
	}
	d.refreshing = true
	refresh := d.refresh
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		return RefreshDoneMsg{Err: refresh(ctx)}
	}
}

func (d *DashboardPage) View(width, height int) string {
	if width <= 0 {
		width = 100
	}

	header := d.renderHeader(width)
	strip := d.renderAggregate(width)
	cards := d.renderCards(width)
	footer := helpLine(d.keys.Left, d.keys.Right, d.keys.Refresh, d.keys.Catalog, d.keys.Quit)
	if d.lastErr != nil {
		footer = lipgloss.JoinHorizontal(lipgloss.Top, footer, "  ",
			lipgloss.NewStyle().Foreground(ColorRed).Render("refresh failed"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, strip, cards, footer)
}

func (d *DashboardPage) connectionState() model.ConnectionState {
	if !d.hasAggregate {
		return model.StateConnecting
	}
	return d.aggregate.State
}

func (d *DashboardPage) renderHeader(width int) string {
	title := titleStyle.Render("EXPL.ONE · live stats")
	indicator := d.renderIndicator()
	gap := max(1, width-lipgloss.Width(title)-lipgloss.Width(indicator))
	return title + strings.Repeat(" ", gap) + indicator
}

func (d *DashboardPage) renderIndicator() string {
	switch d.connectionState() {
	case model.StateConnected:
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("● Live")
	case model.StateDisconnected:
		return lipgloss.NewStyle().Foreground(ColorRed).Render("● Offline")
	default:
		return lipgloss.NewStyle().Foreground(ColorAmber).Render(d.spinner.View() + " Connecting")
	}
}

func (d *DashboardPage) renderAggregate(width int) string {
	style := sectionStyle.Width(max(0, width-2))
	if !d.hasAggregate || d.aggregate.Loading {
		return style.Render(renderLoadingPlaceholder(d.spinner.View(), 0, 0))
	}

	cells := make([]string, 0, len(binding.Fields))
	for _, f := range binding.Fields {
		valueStyle := statValueStyle
		if d.aggregate.IsChanged(f) {
			valueStyle = statChangedStyle
		}
		cell := lipgloss.JoinVertical(lipgloss.Left,
			statLabelStyle.Render(f.Label()),
			valueStyle.Render(d.aggregate.Value(f)),
		)
		cells = append(cells, lipgloss.NewStyle().PaddingRight(3).Render(cell))
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

func (d *DashboardPage) renderCards(width int) string {
	perRow := max(1, width/(cardWidth+2))
	var rows []string
	var row []string
	for i, p := range d.projects {
		row = append(row, d.renderCard(p, i == d.selected))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (d *DashboardPage) renderCard(p projects.Project, active bool) string {
	style := sectionStyle.Width(cardWidth)
	if active {
		style = activeSectionStyle.Width(cardWidth)
	}

	name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Color)).Render(p.Name)
	status := helpStyle.Render(p.Status)
	gap := max(1, cardWidth-2-lipgloss.Width(name)-lipgloss.Width(status))
	head := name + strings.Repeat(" ", gap) + status

	v, ok := d.views[p.ID]
	var body string
	switch {
	case !ok || (!v.Known && v.Loading):
		body = renderLoadingPlaceholder(d.spinner.View(), 0, 0)
	case !v.Known:
		body = helpStyle.Render("no data yet")
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			fmt.Sprintf("%s commits", statValueStyle.Render(fmt.Sprint(v.CommitCount))),
			fmt.Sprintf("%d days since start", v.DaysSinceStart),
			lastCommitText(v),
			renderActivity(v, p.Color, cardWidth-2, activityHeight),
		)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, head, body))
}

func lastCommitText(v binding.ProjectView) string {
	switch {
	case v.DaysSinceLastCommit == nil:
		return helpStyle.Render("no commits yet")
	case *v.DaysSinceLastCommit <= 0:
		return "last commit today"
	case *v.DaysSinceLastCommit == 1:
		return "last commit yesterday"
	default:
		return fmt.Sprintf("last commit %dd ago", *v.DaysSinceLastCommit)
	}
}
