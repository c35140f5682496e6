// Package tui is the interactive step-review surface: it walks the user
// through a session one translation unit at a time and feeds their decisions
// back into the learning loop.
package tui

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/session"
)

// Run reviews the session interactively until it reaches a terminal status or
// the user quits.
func Run(ctx context.Context, engine *session.Engine, sess *session.TranslationSession) error {
	if engine == nil || sess == nil {
		return fmt.Errorf("engine and session are required")
	}
	program := tea.NewProgram(
		NewModel(engine, sess),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

// Model implements the Bubble Tea Model interface over one session.
type Model struct {
	engine  *session.Engine
	session *session.TranslationSession

	detail viewport.Model

	selected int // index into the current step's suggestions
	rating   int // pending 1-5 rating applied with the next accept
	errMsg   string

	width  int
	height int
	ready  bool
	busy   bool
}

// NewModel builds the review model positioned on the session's current step.
func NewModel(engine *session.Engine, sess *session.TranslationSession) Model {
	return Model{engine: engine, session: sess}
}

// feedbackAppliedMsg reports the outcome of one feedback action.
type feedbackAppliedMsg struct {
	action pattern.FeedbackAction
	err    error
}

// transitionMsg reports a pause/resume outcome.
type transitionMsg struct{ err error }

func (m Model) sendFeedback(fb session.UserFeedback) tea.Cmd {
	engine := m.engine
	sessionID := m.session.ID
	step := m.session.CurrentStep()
	if step == nil {
		return nil
	}
	stepID := step.ID
	return func() tea.Msg {
		err := engine.ProcessUserFeedback(context.Background(), sessionID, stepID, fb)
		return feedbackAppliedMsg{action: fb.Action, err: err}
	}
}

func (m Model) togglePause() tea.Cmd {
	engine := m.engine
	sessionID := m.session.ID
	paused := m.session.Status == session.SessionPaused
	return func() tea.Msg {
		if paused {
			return transitionMsg{err: engine.Resume(sessionID)}
		}
		return transitionMsg{err: engine.Pause(sessionID)}
	}
}

// currentSuggestion returns the highlighted suggestion, if any.
func (m Model) currentSuggestion() *session.TranslationSuggestion {
	step := m.session.CurrentStep()
	if step == nil || m.selected >= len(step.Suggestions) {
		return nil
	}
	return &step.Suggestions[m.selected]
}

// syncDetail fills the detail viewport with the highlighted suggestion's
// target subtree.
func (m *Model) syncDetail() {
	if !m.ready {
		return
	}
	sugg := m.currentSuggestion()
	if sugg == nil || sugg.TargetNode == nil {
		m.detail.SetContent(dimStyle.Render("no target preview"))
		return
	}
	data, err := json.MarshalIndent(sugg.TargetNode, "", "  ")
	if err != nil {
		m.detail.SetContent(errorStyle.Render(err.Error()))
		return
	}
	m.detail.SetContent(string(data))
	m.detail.GotoTop()
}
