package tui

import (
	"hash/fnv"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/expl-one/livestats/internal/binding"
)

const activityBars = 7

// activityLevels derives seven bar heights in [0, 1] from a project's commit
// rate. The spread between bars is seeded by the entity key so a card looks
// the same on every render.
func activityLevels(v binding.ProjectView) []float64 {
	levels := make([]float64, activityBars)
	if !v.IsActive {
		return levels
	}

	days := max(v.DaysSinceCreation, 1)
	rate := float64(v.CommitCount) / float64(days)
	// one commit a day or more saturates the strip
	base := min(rate, 1)

	for i := range levels {
		h := fnv.New32a()
		_, _ = h.Write([]byte(v.Key))
		_, _ = h.Write([]byte{byte(i)})
		jitter := float64(h.Sum32()%1000) / 1000
		levels[i] = 0.2 + 0.8*base*(0.5+0.5*jitter)
	}
	return levels
}

// renderActivity draws the strip with ntcharts. Inactive projects get dim bars.
func renderActivity(v binding.ProjectView, color string, width, height int) string {
	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Background(lipgloss.Color(color))
	if !v.IsActive {
		barStyle = lipgloss.NewStyle().Foreground(ColorDim).Background(ColorDim)
	}

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(max(1, (width-activityBars+1)/activityBars)),
		barchart.WithNoAxis(),
		barchart.WithMaxValue(1),
	)
	for _, level := range activityLevels(v) {
		if !v.IsActive {
			level = 0.15
		}
		bc.Push(barchart.BarData{
			Values: []barchart.BarValue{{Name: "activity", Value: level, Style: barStyle}},
		})
	}
	bc.Draw()
	return bc.View()
}
