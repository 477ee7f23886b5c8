package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ProhibitedTV/StreamPulse/internal/rotation"
	"github.com/ProhibitedTV/StreamPulse/internal/sentiment"
	"github.com/ProhibitedTV/StreamPulse/internal/stats"
)

const paneColumns = 2

func (a *App) renderDashboard() string {
	header := a.renderHeader()
	panes := a.renderPanes()
	ticker := a.renderTicker()
	statsLine := a.renderStats()
	status := a.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, header, panes, ticker, statsLine, status)
}

func (a *App) renderHeader() string {
	left := headerStyle.Render("StreamPulse")

	parts := make([]string, 0, len(a.clocks))
	for _, c := range a.clocks {
		parts = append(parts, fmt.Sprintf("%s %s", c.label, a.now.In(c.loc).Format("15:04:05")))
	}
	right := clockStyle.Render(strings.Join(parts, "  "))

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

func (a *App) renderPanes() string {
	rows := (len(a.categories) + paneColumns - 1) / paneColumns
	if rows == 0 {
		return ""
	}

	// header + ticker + stats + status + borders
	available := a.height - 4 - rows*2
	paneHeight := available / rows
	if paneHeight < 4 {
		paneHeight = 4
	}
	paneWidth := a.width/paneColumns - 2

	var rendered []string
	for r := 0; r < rows; r++ {
		var cols []string
		for c := 0; c < paneColumns; c++ {
			i := r*paneColumns + c
			if i >= len(a.categories) {
				break
			}
			cols = append(cols, a.renderPane(a.categories[i], i == a.cursor, paneWidth, paneHeight))
		}
		rendered = append(rendered, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func (a *App) renderPane(category string, focused bool, width, height int) string {
	snap := a.panes[category]
	inner := width - 4

	title := paneTitleStyle.Render(truncateLine(category, inner))

	var body string
	switch snap.State {
	case rotation.StateRotating:
		position := storyMetaStyle.Render(fmt.Sprintf("%d/%d", snap.Index+1, snap.Total))
		storyTitle := storyTitleStyle.Render(wrap(snap.Story.Title, inner, 2))
		desc := storyBodyStyle.Render(wrap(snap.Story.Description, inner, height-6))
		body = lipgloss.JoinVertical(lipgloss.Left,
			title+" "+position+" "+renderSentiment(snap.Story.Sentiment),
			storyTitle,
			desc,
		)
	case rotation.StateLoaded:
		body = lipgloss.JoinVertical(lipgloss.Left, title, storyMetaStyle.Render("Waiting for first story..."))
	default:
		body = lipgloss.JoinVertical(lipgloss.Left, title, storyMetaStyle.Render("No stories available"))
	}

	style := paneStyle
	if focused {
		style = paneActiveStyle
	}
	return style.Width(width).Height(height).Render(body)
}

func renderSentiment(label string) string {
	switch sentiment.Label(label) {
	case sentiment.Positive:
		return sentimentPositiveStyle.Render("▲ positive")
	case sentiment.Negative:
		return sentimentNegativeStyle.Render("▼ negative")
	case sentiment.Neutral:
		return sentimentNeutralStyle.Render("• neutral")
	case sentiment.Unknown:
		return sentimentNeutralStyle.Render("• unknown")
	default:
		return ""
	}
}

func (a *App) renderTicker() string {
	if a.result == nil {
		return tickerStyle.Render("")
	}
	return tickerStyle.Render(truncateLine(a.result.TickerText(a.cfg.Market.Symbols), a.width-2))
}

func (a *App) renderStats() string {
	if a.result == nil {
		return statsStyle.Render("")
	}
	s := a.result.Stats
	debt, co2 := s.USDebt, s.GlobalCO2
	if debt == "" {
		debt = stats.Unavailable
	}
	if co2 == "" {
		co2 = stats.Unavailable
	}
	line := fmt.Sprintf("US National Debt: %s   Global CO2: %s", debt, co2)
	return statsStyle.Render(truncateLine(line, a.width-2))
}

func (a *App) renderStatusBar() string {
	hints := "←/→ focus  o open  q quit"
	if a.err != nil {
		return errStyle.Render(truncateLine(a.err.Error(), a.width-2))
	}
	bar := statusBarStyle.Width(a.width).Render(hints)
	return bar
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// wrap soft-wraps text to width, capped at maxLines.
func wrap(s string, width, maxLines int) string {
	if width <= 0 || maxLines <= 0 {
		return ""
	}
	words := strings.Fields(s)
	var lines []string
	var line strings.Builder
	for _, w := range words {
		if line.Len() > 0 && line.Len()+1+len(w) > width {
			lines = append(lines, line.String())
			line.Reset()
			if len(lines) == maxLines {
				break
			}
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 && len(lines) < maxLines {
		lines = append(lines, line.String())
	}
	if len(lines) == maxLines && len(words) > 0 {
		last := lines[len(lines)-1]
		lines[len(lines)-1] = truncateLine(last+"...", width)
	}
	return strings.Join(lines, "\n")
}
