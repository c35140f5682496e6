package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/session"
)

type cannedOrchestrator struct{ fail bool }

func (c *cannedOrchestrator) Translate(_ context.Context, node *ast.Node, _ *session.TranslationContext) (*session.OrchestratorResult, error) {
	if c.fail {
		return nil, errors.New("unavailable")
	}
	return &session.OrchestratorResult{
		TargetNode: ast.New(ast.NodeTypeCallExpression, "translated"),
		Confidence: 0.85,
		Reasoning:  "canned result",
		Metadata:   session.OrchestratorMetadata{EngineName: session.EngineRuleBased},
	}, nil
}

func newTestServer(t *testing.T) (*APIServer, http.Handler) {
	t.Helper()
	engine := session.NewEngine(pattern.NewLibrary(), &cannedOrchestrator{}, nil, nil)
	api := &APIServer{Engine: engine}
	return api, api.newHTTPServer(":0").Handler
}

func sessionRequestBody(t *testing.T) *bytes.Reader {
	t.Helper()
	source := ast.New(ast.NodeTypeProgram, "")
	call := ast.New(ast.NodeTypeCallExpression, "")
	call.SetAttr("callee", "Response.Write")
	call.AddChild(ast.New(ast.NodeTypeLiteral, "hi"))
	source.AddChild(call)

	body, err := json.Marshal(SessionRequest{
		SourceAST:      source,
		SourceLanguage: "asp",
		TargetLanguage: "go",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func createSession(t *testing.T, handler http.Handler) session.TranslationSession {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", sessionRequestBody(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess session.TranslationSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func TestCreateSession(t *testing.T) {
	_, handler := newTestServer(t)
	sess := createSession(t, handler)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, session.SessionTranslating, sess.Status)
	require.Len(t, sess.Steps, 1)
	assert.NotEmpty(t, sess.Steps[0].Suggestions)
}

func TestCreateSessionRejectsMissingLanguages(t *testing.T) {
	_, handler := newTestServer(t)
	body, _ := json.Marshal(SessionRequest{SourceAST: ast.New(ast.NodeTypeProgram, "")})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession(t *testing.T) {
	_, handler := newTestServer(t)
	sess := createSession(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessions(t *testing.T) {
	_, handler := newTestServer(t)
	createSession(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []session.TranslationSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)
}

func TestFeedbackAcceptCompletesStep(t *testing.T) {
	_, handler := newTestServer(t)
	sess := createSession(t, handler)

	body, _ := json.Marshal(FeedbackRequest{
		StepID: sess.Steps[0].ID,
		Action: pattern.ActionAccept,
		Rating: 5,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated session.TranslationSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, session.SessionCompleted, updated.Status)
	assert.Equal(t, session.StepCompleted, updated.Steps[0].Status)
}

func TestFeedbackOnWrongStepConflicts(t *testing.T) {
	_, handler := newTestServer(t)
	sess := createSession(t, handler)

	body, _ := json.Marshal(FeedbackRequest{StepID: "missing", Action: pattern.ActionAccept})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPauseResumeEndpoints(t *testing.T) {
	_, handler := newTestServer(t)
	sess := createSession(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/pause", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Pausing twice is an invalid transition.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/pause", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/cancel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPatterns(t *testing.T) {
	api, handler := newTestServer(t)
	api.Engine.Library().Add(&pattern.TranslationPattern{
		ID:             "p1",
		Name:           "sample",
		SourceLanguage: "asp",
		TargetLanguage: "go",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var patterns []pattern.TranslationPattern
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patterns))
	require.Len(t, patterns, 1)
	assert.Equal(t, "p1", patterns[0].ID)
}

func TestFailStepEndpoint(t *testing.T) {
	_, handler := newTestServer(t)
	sess := createSession(t, handler)

	body, _ := json.Marshal(map[string]string{"reason": "unsupported construct"})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/steps/"+sess.Steps[0].ID+"/fail", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got session.TranslationSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Metadata.FailedSteps)
	assert.Equal(t, session.StepFailed, got.Steps[0].Status)

	// The step is terminal now; failing it again conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/steps/"+sess.Steps[0].ID+"/fail", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
