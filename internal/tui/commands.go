package tui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/carelog/internal/adhoc"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/ledger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/tracker"
)

const refreshInterval = 30 * time.Second

type boardLoadedMsg struct {
	board tracker.Board
	focus string
	err   error
}

type actionMsg struct {
	status string
	focus  string
	err    error
}

type historyLoadedMsg struct {
	title   string
	records []models.ConfirmationRecord
	err     error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// loadBoard expands today before reading so the board rolls over at
// midnight.
func (m Model) loadBoard(focus string) tea.Cmd {
	ctx, t := m.ctx, m.tracker
	return func() tea.Msg {
		date := t.Today()
		if _, err := t.Expand(ctx, date); err != nil && !apperr.IsTransient(err) {
			return boardLoadedMsg{err: err}
		}
		b, err := t.Board(ctx, date)
		return boardLoadedMsg{board: b, focus: focus, err: err}
	}
}

func (m Model) confirm(id string, override bool) tea.Cmd {
	ctx, t, actor := m.ctx, m.tracker, m.actor
	return func() tea.Msg {
		_, _, err := t.Confirm(ctx, actor, ledger.ConfirmRequest{OccurrenceID: id, OverrideConflict: override})
		return actionMsg{status: "✓ Confirmed", focus: id, err: err}
	}
}

func (m Model) undo(id string) tea.Cmd {
	ctx, t, actor := m.ctx, m.tracker, m.actor
	return func() tea.Msg {
		_, err := t.Undo(ctx, actor, id)
		return actionMsg{status: "↶ Undone", focus: id, err: err}
	}
}

func (m Model) snooze(id string, minutes int) tea.Cmd {
	ctx, t, actor := m.ctx, m.tracker, m.actor
	return func() tea.Msg {
		occ, err := t.Snooze(ctx, actor, id, minutes)
		status := "⏰ Snoozed"
		if err == nil && occ.SnoozeUntil != nil {
			status += " until " + occ.SnoozeUntil.In(t.Location()).Format("15:04")
		}
		return actionMsg{status: status, focus: id, err: err}
	}
}

func (m Model) quickLog(c adhoc.Category, note string) tea.Cmd {
	ctx, t, actor := m.ctx, m.tracker, m.actor
	return func() tea.Msg {
		occ, err := t.QuickLog(ctx, actor, c, note)
		return actionMsg{status: "Logged " + adhoc.DisplayFor(c).Name, focus: occ.ID, err: err}
	}
}

func (m Model) loadHistory(occ models.Occurrence, title string) tea.Cmd {
	ctx, t := m.ctx, m.tracker
	return func() tea.Msg {
		records, err := t.History(ctx, occ.ID)
		return historyLoadedMsg{title: title, records: records, err: err}
	}
}

// describe renders an action error for the status line.
func describe(err error) (string, bool) {
	if errors.Is(err, apperr.ErrQueued) {
		return "⏸ Saved offline; run 'carelog sync' when back online", false
	}
	if c, ok := apperr.AsConflict(err); ok {
		return c.Error() + " (O to confirm anyway)", true
	}
	return err.Error(), true
}
