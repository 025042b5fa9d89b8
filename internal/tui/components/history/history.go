package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/carelog/internal/models"
)

var (
	versionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(5)

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true).
			Width(9)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type Model struct {
	viewport viewport.Model
	Title    string
	Records  []models.ConfirmationRecord
	loc      *time.Location
}

func New(width, height int) Model {
	return Model{viewport: viewport.New(width, height), loc: time.Local}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

// SetRecords shows one occurrence's ledger, newest first.
func (m *Model) SetRecords(title string, records []models.ConfirmationRecord, loc *time.Location) {
	m.Title = title
	m.Records = records
	if loc != nil {
		m.loc = loc
	}
	m.Render()
}

func (m *Model) Render() {
	var b strings.Builder
	b.WriteString(m.Title + "\n\n")
	if len(m.Records) == 0 {
		b.WriteString("No confirmations recorded.\n")
	}
	for _, rec := range m.Records {
		at := "-"
		if rec.ConfirmedAt != nil {
			at = rec.ConfirmedAt.In(m.loc).Format("15:04")
		}
		meta := rec.ConfirmedBy
		if rec.Action == models.ActionEdit {
			meta += ", edited by " + rec.EditedBy
		}
		if rec.NeedsReview {
			meta += ", needs review"
		}
		fmt.Fprintf(&b, "%s %s %s %s\n",
			versionStyle.Render(fmt.Sprintf("v%d", rec.Version)),
			actionStyle.Render(string(rec.Action)),
			at,
			metaStyle.Render(meta),
		)
		if rec.Notes != "" {
			fmt.Fprintf(&b, "      %s\n", rec.Notes)
		}
	}
	m.viewport.SetContent(b.String())
}
