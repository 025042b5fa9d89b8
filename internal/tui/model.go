package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/carelog/internal/adhoc"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/tracker"
	"github.com/julianstephens/carelog/internal/tui/components/board"
	"github.com/julianstephens/carelog/internal/tui/components/history"
)

type SessionState int

const (
	StateBoard SessionState = iota
	StateHistory
	StateSnooze
	StateQuickLog
)

type SnoozeFormModel struct {
	OccurrenceID string
	Minutes      int
}

type QuickLogFormModel struct {
	Category adhoc.Category
	Note     string
}

type Model struct {
	ctx          context.Context
	tracker      *tracker.Tracker
	actor        models.Actor
	state        SessionState
	keys         KeyMap
	help         help.Model
	board        board.Model
	history      history.Model
	form         *huh.Form
	snoozeForm   *SnoozeFormModel
	quickLogForm *QuickLogFormModel
	date         string
	summary      string
	status       string
	statusErr    bool
	quitting     bool
	width        int
	height       int
}

func NewModel(ctx context.Context, t *tracker.Tracker, actor models.Actor) Model {
	return Model{
		ctx:     ctx,
		tracker: t,
		actor:   actor,
		state:   StateBoard,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		board:   board.New(nil, 0, 0),
		history: history.New(0, 0),
		date:    t.Today(),
	}
}

// Run starts the board in the alternate screen.
func Run(ctx context.Context, t *tracker.Tracker, actor models.Actor) error {
	_, err := tea.NewProgram(NewModel(ctx, t, actor), tea.WithAltScreen()).Run()
	return err
}

func (m Model) ShortHelp() []key.Binding {
	switch m.state {
	case StateBoard:
		bk := m.board.Keys()
		return []key.Binding{bk.Confirm, bk.Undo, bk.Snooze, bk.QuickLog, m.keys.Quit, m.keys.Help}
	default:
		return []key.Binding{m.keys.Back}
	}
}

func (m Model) FullHelp() [][]key.Binding {
	if m.state != StateBoard {
		return [][]key.Binding{{m.keys.Back, m.keys.Up, m.keys.Down}}
	}
	bk := m.board.Keys()
	return [][]key.Binding{
		{bk.Confirm, bk.Override, bk.Undo, bk.Snooze, bk.History, bk.QuickLog},
		{m.keys.Up, m.keys.Down, m.keys.Refresh, m.keys.Help, m.keys.Quit},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(""), tick())
}

func (m *Model) newSnoozeForm(occurrenceID string) tea.Cmd {
	m.snoozeForm = &SnoozeFormModel{OccurrenceID: occurrenceID, Minutes: constants.SnoozeChoices[0]}

	options := make([]huh.Option[int], 0, len(constants.SnoozeChoices))
	for _, min := range constants.SnoozeChoices {
		options = append(options, huh.NewOption(fmt.Sprintf("%d minutes", min), min))
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Snooze for").
				Options(options...).
				Value(&m.snoozeForm.Minutes),
		),
	)
	m.state = StateSnooze
	return m.form.Init()
}

func (m *Model) newQuickLogForm() tea.Cmd {
	m.quickLogForm = &QuickLogFormModel{Category: adhoc.Categories[0]}

	options := make([]huh.Option[adhoc.Category], 0, len(adhoc.Categories))
	for _, c := range adhoc.Categories {
		d := adhoc.DisplayFor(c)
		options = append(options, huh.NewOption(d.Icon+" "+d.Name, c))
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[adhoc.Category]().
				Title("What happened?").
				Options(options...).
				Value(&m.quickLogForm.Category),
			huh.NewInput().
				Title("Note").
				Placeholder("optional").
				Value(&m.quickLogForm.Note),
		),
	)
	m.state = StateQuickLog
	return m.form.Init()
}
