package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (a *App) renderLoading() string {
	title := loadingTitleStyle.Render("StreamPulse")
	bar := a.bar.ViewAs(float64(a.percent) / 100)
	msg := loadingMsgStyle.Render(fmt.Sprintf("%s (%d%%)", a.message, a.percent))

	card := lipgloss.JoinVertical(lipgloss.Center, title, "", bar, "", msg)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}
