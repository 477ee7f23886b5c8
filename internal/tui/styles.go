package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Adaptive colors for dark/light terminals
	colorPrimary   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "#3D3D3D", Dark: "#ABABAB"}
	colorDim       = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent    = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorBorder    = lipgloss.AdaptiveColor{Light: "#DBDBDB", Dark: "#383838"}
	colorActiveBdr = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorStatusBg  = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#16213E"}
	colorStatusFg  = lipgloss.AdaptiveColor{Light: "#3D3D3D", Dark: "#ABABAB"}
	colorPositive  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorNegative  = lipgloss.AdaptiveColor{Light: "#D93025", Dark: "#F28B82"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			PaddingLeft(1)

	clockStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Align(lipgloss.Right)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	paneActiveStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorActiveBdr)

	paneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	storyTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	storyBodyStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	storyMetaStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	sentimentPositiveStyle = lipgloss.NewStyle().
				Foreground(colorPositive).
				Bold(true)

	sentimentNegativeStyle = lipgloss.NewStyle().
				Foreground(colorNegative).
				Bold(true)

	sentimentNeutralStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	tickerStyle = lipgloss.NewStyle().
			Foreground(colorPositive).
			PaddingLeft(1)

	statsStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			PaddingLeft(1)

	statusBarStyle = lipgloss.NewStyle().
			Background(colorStatusBg).
			Foreground(colorStatusFg).
			PaddingLeft(1).
			PaddingRight(1)

	loadingTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	loadingMsgStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errStyle = lipgloss.NewStyle().
			Foreground(colorAccent)
)
