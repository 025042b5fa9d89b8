package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/carelog/internal/tui/components/board"
)

const chromeHeight = 6

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h, v := docStyle.GetFrameSize()
		m.board.SetSize(msg.Width-h, msg.Height-v-chromeHeight)
		m.history.SetSize(msg.Width-h, msg.Height-v-chromeHeight)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadBoard(""), tick())

	case boardLoadedMsg:
		if msg.err != nil {
			m.status, m.statusErr = describe(msg.err)
			return m, nil
		}
		m.date = msg.board.Date
		m.summary = summarize(msg.board.ConfirmedCount(), msg.board.Total())
		m.board.SetItems(board.Items(msg.board, m.tracker.Location()))
		if msg.focus != "" {
			m.board.Select(msg.focus)
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status, m.statusErr = describe(msg.err)
		} else {
			m.status, m.statusErr = msg.status, false
		}
		return m, m.loadBoard(msg.focus)

	case historyLoadedMsg:
		if msg.err != nil {
			m.status, m.statusErr = describe(msg.err)
			return m, nil
		}
		m.history.SetRecords(msg.title, msg.records, m.tracker.Location())
		m.state = StateHistory
		return m, nil
	}

	switch m.state {
	case StateSnooze, StateQuickLog:
		return m.updateForm(msg)
	case StateHistory:
		if msg, ok := msg.(tea.KeyMsg); ok && (key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Quit)) {
			m.state = StateBoard
			return m, nil
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	return m.updateBoard(msg)
}

func (m Model) updateBoard(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.loadBoard("")
		}

	case board.ConfirmMsg:
		return m, m.confirm(msg.ID, msg.Override)
	case board.UndoMsg:
		return m, m.undo(msg.ID)
	case board.SnoozeMsg:
		cmd := m.newSnoozeForm(msg.ID)
		return m, cmd
	case board.QuickLogMsg:
		cmd := m.newQuickLogForm()
		return m, cmd
	case board.HistoryMsg:
		return m, m.loadHistory(msg.Occurrence, msg.Title)
	}

	var cmd tea.Cmd
	m.board, cmd = m.board.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = StateBoard
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		state := m.state
		m.state = StateBoard
		m.form = nil
		if state == StateSnooze {
			return m, m.snooze(m.snoozeForm.OccurrenceID, m.snoozeForm.Minutes)
		}
		return m, m.quickLog(m.quickLogForm.Category, m.quickLogForm.Note)
	case huh.StateAborted:
		m.state = StateBoard
		m.form = nil
		return m, nil
	}
	return m, cmd
}
