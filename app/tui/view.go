package tui

import (
	"fmt"
	"strings"

	"github.com/lexcodex/transmute/session"
)

// View renders the step list, the highlighted suggestion, and a key help
// line.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("transmute %s -> %s", m.session.SourceLanguage, m.session.TargetLanguage)))
	b.WriteString("  ")
	b.WriteString(statusBarStyle.Render(fmt.Sprintf("session %s [%s]", shortID(m.session.ID), m.session.Status)))
	b.WriteString("\n\n")

	b.WriteString(m.renderSteps())
	b.WriteString("\n")

	if step := m.session.CurrentStep(); step != nil {
		b.WriteString(m.renderSuggestions(step))
		if m.ready && len(step.Suggestions) > 0 {
			b.WriteString(sectionHeaderStyle.Render("Target preview"))
			b.WriteString("\n")
			b.WriteString(m.detail.View())
			b.WriteString("\n")
		}
	} else {
		b.WriteString(completedStyle.Render("All steps processed."))
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("error: " + m.errMsg))
		b.WriteString("\n")
	}
	if m.rating > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("pending rating: %d/5", m.rating)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render("[a]ccept  [r]eject  [s]kip  [x] alternatives  [e]xplain  [1-5] rate  [p]ause  [q]uit"))
	return b.String()
}

func (m Model) renderSteps() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Steps (%d/%d)",
		m.session.Metadata.CompletedSteps, m.session.Metadata.TotalSteps)))
	b.WriteString("\n")
	for i, step := range m.session.Steps {
		marker := "  "
		if i == m.session.CurrentStepIndex {
			marker = "> "
		}
		line := fmt.Sprintf("%s%s %s", marker, stepGlyph(step.Status), step.SourceNode.Type)
		b.WriteString(styleForStep(step.Status).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSuggestions(step *session.TranslationStep) string {
	if len(step.Suggestions) == 0 {
		return dimStyle.Render("No suggestions. [x] requests alternatives, [s] skips the step.") + "\n"
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Suggestions (%d/%d)", m.selected+1, len(step.Suggestions))))
	b.WriteString("\n")
	for i := range step.Suggestions {
		sugg := &step.Suggestions[i]
		body := fmt.Sprintf("%s  confidence %.2f  [%s]\n%s",
			sugg.Type, sugg.Confidence, sugg.Metadata.Source, sugg.Reasoning)
		style := suggestionBoxStyle
		if i == m.selected {
			style = selectedBoxStyle
		}
		b.WriteString(style.Render(body))
		b.WriteString("\n")
	}
	return b.String()
}

func stepGlyph(status session.StepStatus) string {
	switch status {
	case session.StepCompleted:
		return "✓"
	case session.StepSkipped:
		return "–"
	case session.StepFailed:
		return "✗"
	case session.StepInProgress, session.StepAwaitingUser:
		return "●"
	default:
		return "○"
	}
}

func styleForStep(status session.StepStatus) interface{ Render(...string) string } {
	switch status {
	case session.StepCompleted:
		return completedStyle
	case session.StepInProgress, session.StepAwaitingUser:
		return inProgressStyle
	case session.StepFailed:
		return errorStyle
	default:
		return dimStyle
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
