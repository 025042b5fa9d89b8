package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/carelog/internal/classifier"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/tracker"
)

type ConfirmMsg struct {
	ID       string
	Override bool
}

type UndoMsg struct {
	ID string
}

type SnoozeMsg struct {
	ID string
}

type HistoryMsg struct {
	Occurrence models.Occurrence
	Title      string
}

type QuickLogMsg struct{}

var bucketIcons = map[classifier.Bucket]string{
	classifier.BucketOverdue:   "🔴",
	classifier.BucketDue:       "🟠",
	classifier.BucketSnoozed:   "💤",
	classifier.BucketUpcoming:  "⚪",
	classifier.BucketConfirmed: "✅",
}

type Item struct {
	Occurrence models.Occurrence
	Bucket     classifier.Bucket
	Label      string
	Loc        *time.Location
}

func (i Item) Title() string {
	return fmt.Sprintf("%s %s  %s", bucketIcons[i.Bucket], i.Occurrence.ScheduledAt.In(i.Loc).Format(constants.TimeFormat), i.Label)
}

func (i Item) Description() string {
	parts := []string{string(i.Bucket)}
	occ := i.Occurrence
	switch {
	case occ.Status == models.StatusConfirmed && occ.ConfirmedAt != nil:
		s := "given " + occ.ConfirmedAt.In(i.Loc).Format(constants.TimeFormat)
		if occ.ConfirmedBy != nil {
			s += " by " + *occ.ConfirmedBy
		}
		parts = append(parts, s)
	case i.Bucket == classifier.BucketSnoozed && occ.SnoozeUntil != nil:
		parts = append(parts, "until "+occ.SnoozeUntil.In(i.Loc).Format(constants.TimeFormat))
	}
	if occ.NeedsReview {
		parts = append(parts, "needs review")
	}
	return strings.Join(parts, " | ")
}

func (i Item) FilterValue() string { return i.Label }

// Items flattens a board in bucket order.
func Items(b tracker.Board, loc *time.Location) []list.Item {
	var items []list.Item
	for _, bucket := range classifier.Buckets {
		for _, occ := range b.Get(bucket) {
			items = append(items, Item{Occurrence: occ, Bucket: bucket, Label: b.Title(occ), Loc: loc})
		}
	}
	return items
}

type KeyMap struct {
	Confirm  key.Binding
	Override key.Binding
	Undo     key.Binding
	Snooze   key.Binding
	History  key.Binding
	QuickLog key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("c", "enter"),
			key.WithHelp("c", "confirm"),
		),
		Override: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "confirm anyway"),
		),
		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		Snooze: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "snooze"),
		),
		History: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history"),
		),
		QuickLog: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "quick log"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(items []list.Item, width, height int) Model {
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowHelp(false) // help is rendered by the parent model

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Confirm, keys.Undo, keys.Snooze, keys.QuickLog}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Confirm, keys.Override, keys.Undo, keys.Snooze, keys.History, keys.QuickLog}
	}

	return Model{list: l, keys: keys}
}

func (m *Model) SetItems(items []list.Item) {
	m.list.SetItems(items)
}

func (m Model) Selected() (Item, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i, ok
}

// Select moves the cursor to the occurrence with id, if present.
func (m *Model) Select(id string) {
	for idx, it := range m.list.Items() {
		if i, ok := it.(Item); ok && i.Occurrence.ID == id {
			m.list.Select(idx)
			return
		}
	}
}

func (m Model) Keys() KeyMap { return m.keys }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		if key.Matches(msg, m.keys.QuickLog) {
			return m, func() tea.Msg { return QuickLogMsg{} }
		}
		i, ok := m.Selected()
		if !ok {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Confirm):
			return m, func() tea.Msg { return ConfirmMsg{ID: i.Occurrence.ID} }
		case key.Matches(msg, m.keys.Override):
			return m, func() tea.Msg { return ConfirmMsg{ID: i.Occurrence.ID, Override: true} }
		case key.Matches(msg, m.keys.Undo):
			return m, func() tea.Msg { return UndoMsg{ID: i.Occurrence.ID} }
		case key.Matches(msg, m.keys.Snooze):
			return m, func() tea.Msg { return SnoozeMsg{ID: i.Occurrence.ID} }
		case key.Matches(msg, m.keys.History):
			return m, func() tea.Msg { return HistoryMsg{Occurrence: i.Occurrence, Title: i.Label} }
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  Nothing scheduled today.\n  Press 'l' to log something."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
