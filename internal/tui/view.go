package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateBoard:
		content = docStyle.Render(m.board.View())
	case StateHistory:
		content = docStyle.Render(m.history.View())
	case StateSnooze, StateQuickLog:
		content = docStyle.Render(m.form.View())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewHeader(),
		content,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewHeader() string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render("carelog "+m.date),
		summaryStyle.Render(m.summary),
		summaryStyle.Render(m.actor.ID),
	)
}

func (m Model) viewStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return dangerStyle.Render(m.status)
	}
	return statusStyle.Render(m.status)
}

func summarize(done, total int) string {
	return fmt.Sprintf("%d/%d done", done, total)
}
