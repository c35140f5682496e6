package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/session"
)

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update applies incoming Bubble Tea messages to mutate the Model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case feedbackAppliedMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.selected = 0
		m.rating = 0
		if m.session.Status != session.SessionTranslating {
			return m, tea.Quit
		}
		m.syncDetail()
		return m, nil
	case transitionMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	detailHeight := max(3, msg.Height-12)
	if !m.ready {
		m.detail = viewport.New(msg.Width, detailHeight)
		m.ready = true
	} else {
		m.detail.Width = msg.Width
		m.detail.Height = detailHeight
	}
	m.syncDetail()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "left", "[":
		if m.selected > 0 {
			m.selected--
			m.syncDetail()
		}
		return m, nil
	case "right", "]":
		if step := m.session.CurrentStep(); step != nil && m.selected < len(step.Suggestions)-1 {
			m.selected++
			m.syncDetail()
		}
		return m, nil
	case "1", "2", "3", "4", "5":
		m.rating = int(msg.String()[0] - '0')
		return m, nil
	case "a", "enter":
		return m.dispatch(pattern.ActionAccept)
	case "r":
		return m.dispatch(pattern.ActionReject)
	case "s":
		return m.dispatch(pattern.ActionSkip)
	case "x":
		return m.dispatch(pattern.ActionRequestAlternatives)
	case "e":
		return m.dispatch(pattern.ActionRequestExplanation)
	case "p":
		m.busy = true
		return m, m.togglePause()
	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) dispatch(action pattern.FeedbackAction) (tea.Model, tea.Cmd) {
	fb := session.UserFeedback{Action: action, Rating: m.rating}
	if sugg := m.currentSuggestion(); sugg != nil {
		fb.SuggestionID = sugg.ID
	}
	m.busy = true
	return m, m.sendFeedback(fb)
}
