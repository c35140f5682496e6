package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/session"
)

type echoOrchestrator struct{}

func (echoOrchestrator) Translate(_ context.Context, node *ast.Node, _ *session.TranslationContext) (*session.OrchestratorResult, error) {
	return &session.OrchestratorResult{
		TargetNode: ast.New(node.Type, node.Value),
		Confidence: 0.8,
		Reasoning:  "echo",
		Metadata:   session.OrchestratorMetadata{EngineName: session.EngineRuleBased},
	}, nil
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	engine := session.NewEngine(pattern.NewLibrary(), echoOrchestrator{}, nil, nil)
	source := ast.New(ast.NodeTypeProgram, "")
	source.AddChild(ast.New(ast.NodeTypeReturnStatement, ""))
	source.AddChild(ast.New(ast.NodeTypeCallExpression, ""))
	sess, err := engine.InitializeSession(context.Background(), source, session.Options{
		SourceLanguage: "asp",
		TargetLanguage: "go",
	})
	if err != nil {
		t.Fatalf("initialize session: %v", err)
	}
	return NewModel(engine, sess)
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewShowsStepsAndHelp(t *testing.T) {
	m := newTestModel(t)
	out := m.View()
	if !strings.Contains(out, "ReturnStatement") || !strings.Contains(out, "CallExpression") {
		t.Fatalf("view missing step list:\n%s", out)
	}
	if !strings.Contains(out, "[a]ccept") {
		t.Fatalf("view missing key help:\n%s", out)
	}
}

func TestRatingKeysSetPendingRating(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(keyMsg("4"))
	m = updated.(Model)
	if m.rating != 4 {
		t.Fatalf("rating = %d, want 4", m.rating)
	}
	if !strings.Contains(m.View(), "pending rating: 4/5") {
		t.Fatalf("pending rating not rendered")
	}
}

func TestAcceptFeedbackAdvancesSession(t *testing.T) {
	m := newTestModel(t)
	updated, cmd := m.Update(keyMsg("a"))
	m = updated.(Model)
	if !m.busy {
		t.Fatalf("accept should mark the model busy")
	}
	if cmd == nil {
		t.Fatalf("accept should produce a feedback command")
	}

	msg := cmd()
	applied, ok := msg.(feedbackAppliedMsg)
	if !ok {
		t.Fatalf("expected feedbackAppliedMsg, got %T", msg)
	}
	if applied.err != nil {
		t.Fatalf("feedback failed: %v", applied.err)
	}
	if m.session.CurrentStepIndex != 1 {
		t.Fatalf("session did not advance: index %d", m.session.CurrentStepIndex)
	}

	updated, _ = m.Update(applied)
	m = updated.(Model)
	if m.busy || m.rating != 0 {
		t.Fatalf("feedback result should clear busy and rating: %+v", m)
	}
}

func TestQuitOnTerminalSession(t *testing.T) {
	m := newTestModel(t)
	for m.session.Status == session.SessionTranslating {
		updated, cmd := m.Update(keyMsg("a"))
		m = updated.(Model)
		if cmd == nil {
			t.Fatalf("missing feedback command")
		}
		updated, _ = m.Update(cmd())
		m = updated.(Model)
	}
	if m.session.Status != session.SessionCompleted {
		t.Fatalf("session status = %s", m.session.Status)
	}
}

func TestSelectionBounds(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m = updated.(Model)
	if m.selected != 0 {
		t.Fatalf("selection went negative")
	}
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = updated.(Model)
	if m.selected != 0 {
		t.Fatalf("selection exceeded suggestion count")
	}
}
