package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/analog/internal/cover"
)

// renderHeader returns a styled header with an optional muted subtitle.
func renderHeader(title, subtitle string, width int) string {
	title = truncateEnd(title, width-2)
	subtitle = truncateEnd(subtitle, width-2)
	rows := []string{HeaderStyle.Render(title)}
	if subtitle != "" {
		rows = append(rows, renderMuted(subtitle))
	}
	return lipgloss.JoinVertical(lipgloss.Top, rows...)
}

// renderTintedHeader paints a full-width band in the cover colour, with text
// in whichever of black or white reads on it.
func renderTintedHeader(title, subtitle string, tint *cover.Color, width int) string {
	if tint == nil || width <= 0 {
		return renderHeader(title, subtitle, width)
	}
	band := lipgloss.NewStyle().
		Background(lipgloss.Color(tint.Hex())).
		Foreground(lipgloss.Color(tint.Foreground())).
		Width(width).
		Padding(0, 1)
	rows := []string{band.Bold(true).Render(truncateEnd(title, width-2))}
	if subtitle != "" {
		sub := band
		if bg, err := cover.ParseHex(string(BackgroundColor)); err == nil {
			faded := tint.Blend(bg, 0.35)
			sub = sub.Background(lipgloss.Color(faded.Hex())).Foreground(lipgloss.Color(faded.Foreground()))
		}
		rows = append(rows, sub.Render(truncateEnd(subtitle, width-2)))
	}
	return lipgloss.JoinVertical(lipgloss.Top, rows...)
}

// renderInputFrame draws a rounded bordered container around a rendered input view.
func renderInputFrame(inputView string, focused bool, contentWidth int) string {
	borderColor := MutedColor
	if focused {
		borderColor = AccentColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(contentWidth + 4).
		Render(inputView)
}

// renderCentered centers the provided content within the given width/height box.
func renderCentered(width, height int, content string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func renderMuted(text string) string {
	return lipgloss.NewStyle().Foreground(MutedColor).Render(text)
}

func renderHelp(text string) string {
	return HelpStyle.Render(text)
}
