package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/telemetry"
)

var (
	// ErrSessionNotFound reports an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStepNotFound reports an unknown step id.
	ErrStepNotFound = errors.New("step not found")
	// ErrNoSuggestion reports an accept with nothing to accept.
	ErrNoSuggestion = errors.New("no suggestion to act on")
	// ErrNoTranslation reports an orchestrator with no answer for a node.
	ErrNoTranslation = errors.New("no translation available")
	// ErrSessionNotActive reports feedback against a session that is not
	// translating.
	ErrSessionNotActive = errors.New("session is not translating")
	// ErrStepNotActionable reports feedback against a step that is not the
	// session's current, non-terminal step.
	ErrStepNotActionable = errors.New("step is not actionable")
	// ErrMissingTarget reports a modify without a replacement node.
	ErrMissingTarget = errors.New("modify requires a target node")
	// ErrInvalidTransition reports a disallowed session status change.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Fallback and extraction policy constants.
const (
	fallbackMatchLimit = 3
	maxSuggestions     = 5
)

// translationUnitTypes is the fixed allow-list of node kinds that become
// translation steps during analysis.
var translationUnitTypes = map[ast.NodeType]bool{
	ast.NodeTypeFunctionDeclaration:  true,
	ast.NodeTypeClassDeclaration:     true,
	ast.NodeTypeMethodDeclaration:    true,
	ast.NodeTypeVariableDeclaration:  true,
	ast.NodeTypeIfStatement:          true,
	ast.NodeTypeForStatement:         true,
	ast.NodeTypeWhileStatement:       true,
	ast.NodeTypeDoWhileStatement:     true,
	ast.NodeTypeSwitchStatement:      true,
	ast.NodeTypeTryStatement:         true,
	ast.NodeTypeExpressionStatement:  true,
	ast.NodeTypeReturnStatement:      true,
	ast.NodeTypeAssignmentExpression: true,
	ast.NodeTypeCallExpression:       true,
	ast.NodeTypeMemberExpression:     true,
}

// Options configures a new session.
type Options struct {
	SourceLanguage   string            `json:"source_language"`
	TargetLanguage   string            `json:"target_language"`
	UserID           string            `json:"user_id,omitempty"`
	ProjectID        string            `json:"project_id,omitempty"`
	StylePreferences map[string]string `json:"style_preferences,omitempty"`
	ProjectContext   map[string]string `json:"project_context,omitempty"`
}

// Engine drives stepwise, user-in-the-loop translation sessions over a
// shared pattern library. Matching and extraction are synchronous; the only
// suspension points are orchestrator calls.
type Engine struct {
	library      *pattern.Library
	extractor    *pattern.Extractor
	orchestrator Orchestrator
	validator    Validator
	telemetry    telemetry.Telemetry

	mu       sync.RWMutex
	sessions map[string]*TranslationSession
	clock    func() time.Time
}

// NewEngine wires an engine over the library. A nil orchestrator falls back
// to the library-only default; a nil telemetry sink discards events; a nil
// validator skips advisory validation.
func NewEngine(lib *pattern.Library, orch Orchestrator, val Validator, tel telemetry.Telemetry) *Engine {
	if lib == nil {
		lib = pattern.NewLibrary()
	}
	if orch == nil {
		orch = &LibraryOrchestrator{Library: lib}
	}
	if tel == nil {
		tel = telemetry.Nop{}
	}
	return &Engine{
		library:      lib,
		extractor:    pattern.NewExtractor(),
		orchestrator: orch,
		validator:    val,
		telemetry:    tel,
		sessions:     make(map[string]*TranslationSession),
		clock:        time.Now,
	}
}

// Library exposes the shared pattern library.
func (e *Engine) Library() *pattern.Library { return e.library }

// LoadPatterns bulk-loads patterns into the shared library.
func (e *Engine) LoadPatterns(patterns []*pattern.TranslationPattern) {
	e.library.Load(patterns)
}

// Patterns lists the library contents.
func (e *Engine) Patterns() []*pattern.TranslationPattern {
	return e.library.All()
}

// InitializeSession analyzes the source AST into translation units and
// starts the first step. The returned session is registered and live.
func (e *Engine) InitializeSession(ctx context.Context, sourceAST *ast.Node, opts Options) (*TranslationSession, error) {
	if sourceAST == nil {
		return nil, fmt.Errorf("initialize session: source AST is required")
	}
	if opts.SourceLanguage == "" || opts.TargetLanguage == "" {
		return nil, fmt.Errorf("initialize session: language pair is required")
	}

	now := e.clock()
	session := &TranslationSession{
		ID:             ast.NewID(),
		SourceLanguage: opts.SourceLanguage,
		TargetLanguage: opts.TargetLanguage,
		SourceAST:      sourceAST,
		Status:         SessionInitialized,
		Metadata: SessionMetadata{
			UserID:    opts.UserID,
			ProjectID: opts.ProjectID,
			StartedAt: now,
		},
	}
	e.emit(telemetry.EventSessionInitialized, session.ID, "", nil)

	session.Status = SessionAnalyzing
	session.Steps = decompose(sourceAST, now)
	session.Metadata.TotalSteps = len(session.Steps)
	e.emit(telemetry.EventSessionAnalyzed, session.ID, "", map[string]interface{}{
		"steps": len(session.Steps),
	})

	session.Status = SessionTranslating
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[session.ID] = session

	if len(session.Steps) == 0 {
		e.finalize(session)
		return session, nil
	}
	e.startStep(ctx, session, session.Steps[0], opts)
	return session, nil
}

// decompose walks the source tree in pre-order and creates one pending step
// per translation unit. A matched unit is translated whole, so the walk does
// not descend into it. This traversal order is canonical and never
// re-sorted.
func decompose(root *ast.Node, now time.Time) []*TranslationStep {
	var steps []*TranslationStep
	ast.Walk(root, func(n *ast.Node) bool {
		if !translationUnitTypes[n.Type] {
			return true
		}
		steps = append(steps, &TranslationStep{
			ID:         ast.NewID(),
			SourceNode: n,
			Status:     StepPending,
			Timestamp:  now,
		})
		return false
	})
	return steps
}

// GetSession looks up a session by id.
func (e *Engine) GetSession(id string) (*TranslationSession, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	session, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ActiveSessions lists sessions that have not reached a terminal status.
func (e *Engine) ActiveSessions() []*TranslationSession {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*TranslationSession
	for _, s := range e.sessions {
		switch s.Status {
		case SessionCompleted, SessionFailed, SessionCancelled:
		default:
			out = append(out, s)
		}
	}
	return out
}

// GetSessionCopy returns a deep copy of a session, safe to encode or
// inspect while the live session keeps taking feedback.
func (e *Engine) GetSessionCopy(id string) (*TranslationSession, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	session, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Copy(), nil
}

// ActiveSessionsCopy lists deep copies of the non-terminal sessions.
func (e *Engine) ActiveSessionsCopy() []*TranslationSession {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*TranslationSession
	for _, s := range e.sessions {
		switch s.Status {
		case SessionCompleted, SessionFailed, SessionCancelled:
		default:
			out = append(out, s.Copy())
		}
	}
	return out
}

// ProcessUserFeedback applies one user action to the session's current step.
// The learning update happens synchronously here, before the session
// advances, because later matching reads the mutated pattern statistics.
func (e *Engine) ProcessUserFeedback(ctx context.Context, sessionID, stepID string, fb UserFeedback) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	step, ok := session.Step(stepID)
	if !ok {
		return ErrStepNotFound
	}
	if session.Status != SessionTranslating {
		return ErrSessionNotActive
	}
	if step != session.CurrentStep() || step.Status.Terminal() {
		return ErrStepNotActionable
	}

	if fb.Timestamp.IsZero() {
		fb.Timestamp = e.clock()
	}
	opts := Options{SourceLanguage: session.SourceLanguage, TargetLanguage: session.TargetLanguage}

	var err error
	switch fb.Action {
	case pattern.ActionAccept:
		err = e.acceptStep(ctx, session, step, fb)
	case pattern.ActionModify:
		err = e.modifyStep(ctx, session, step, fb)
	case pattern.ActionReject:
		e.rejectStep(session, step, fb)
	case pattern.ActionSkip:
		step.Status = StepSkipped
		step.Feedback = &fb
		session.Metadata.SkippedSteps++
	case pattern.ActionRequestAlternatives:
		e.requestAlternatives(ctx, session, step, opts)
	case pattern.ActionRequestExplanation:
		explainStep(step, fb.SuggestionID)
	default:
		return fmt.Errorf("unknown feedback action %q", fb.Action)
	}
	if err != nil {
		return err
	}

	e.emit(telemetry.EventFeedbackApplied, session.ID, step.ID, map[string]interface{}{
		"action": string(fb.Action),
		"rating": fb.Rating,
	})

	if step.Status.Terminal() {
		e.advance(ctx, session, opts)
	}
	return nil
}

// FailStep marks the current step failed without learning from it, records
// the failure in the session metadata, and advances. The failed unit is
// left out of the reconstructed target AST.
func (e *Engine) FailStep(ctx context.Context, sessionID, stepID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	step, ok := session.Step(stepID)
	if !ok {
		return ErrStepNotFound
	}
	if session.Status != SessionTranslating {
		return ErrSessionNotActive
	}
	if step != session.CurrentStep() || step.Status.Terminal() {
		return ErrStepNotActionable
	}

	step.Status = StepFailed
	session.Metadata.FailedSteps++
	e.emit(telemetry.EventStepFailed, session.ID, step.ID, map[string]interface{}{
		"reason": reason,
	})
	e.advance(ctx, session, Options{SourceLanguage: session.SourceLanguage, TargetLanguage: session.TargetLanguage})
	return nil
}

// acceptStep installs the chosen suggestion, runs advisory validation, and
// feeds the learning loop.
func (e *Engine) acceptStep(ctx context.Context, session *TranslationSession, step *TranslationStep, fb UserFeedback) error {
	sugg, ok := step.Suggestion(fb.SuggestionID)
	if !ok {
		return ErrNoSuggestion
	}
	step.TargetNode = sugg.TargetNode
	step.Confidence = sugg.Confidence
	step.PatternID = sugg.Metadata.PatternID
	step.Feedback = &fb
	step.Status = StepCompleted
	session.Metadata.CompletedSteps++

	e.validateAdvisory(ctx, session, step)
	e.learn(session, step, pattern.Feedback{Action: pattern.ActionAccept, Rating: fb.Rating, Comment: fb.Comment})
	return nil
}

// modifyStep installs the user-supplied replacement and learns from it.
func (e *Engine) modifyStep(ctx context.Context, session *TranslationSession, step *TranslationStep, fb UserFeedback) error {
	if fb.TargetNode == nil {
		return ErrMissingTarget
	}
	step.TargetNode = fb.TargetNode
	step.Feedback = &fb
	step.Status = StepCompleted
	session.Metadata.CompletedSteps++
	if top, ok := step.Suggestion(""); ok {
		step.PatternID = top.Metadata.PatternID
		step.Confidence = top.Confidence
	}

	e.validateAdvisory(ctx, session, step)
	e.learn(session, step, pattern.Feedback{Action: pattern.ActionModify, Rating: fb.Rating, Comment: fb.Comment})
	return nil
}

// rejectStep clears the active suggestion path; the user must request new
// suggestions before the step can advance.
func (e *Engine) rejectStep(session *TranslationSession, step *TranslationStep, fb UserFeedback) {
	if top, ok := step.Suggestion(fb.SuggestionID); ok && top.Metadata.PatternID != "" {
		if err := e.library.ApplyFeedback(top.Metadata.PatternID, pattern.Feedback{Action: pattern.ActionReject, Rating: fb.Rating}); err == nil {
			session.recordPattern(top.Metadata.PatternID)
		}
	}
	step.Suggestions = nil
	step.Feedback = &fb
	step.Status = StepAwaitingUser
}

// learn mutates the used pattern's statistics, or extracts a fresh pattern
// when the applied transformation had no learned backing.
func (e *Engine) learn(session *TranslationSession, step *TranslationStep, fb pattern.Feedback) {
	if step.PatternID != "" {
		if err := e.library.ApplyFeedback(step.PatternID, fb); err == nil {
			session.recordPattern(step.PatternID)
			return
		}
	}
	if step.TargetNode == nil {
		return
	}
	ectx := pattern.ExtractionContext{
		SourceLanguage: session.SourceLanguage,
		TargetLanguage: session.TargetLanguage,
		SessionID:      session.ID,
		Complexity:     ast.Complexity(step.SourceNode),
	}
	result, err := e.extractor.Extract(step.SourceNode, step.TargetNode, ectx, &fb)
	if err != nil {
		return
	}
	e.library.Add(result.Pattern)
	step.PatternID = result.Pattern.ID
	session.recordPattern(result.Pattern.ID)
	e.emit(telemetry.EventPatternLearned, session.ID, step.ID, map[string]interface{}{
		"pattern_id": result.Pattern.ID,
		"confidence": result.Confidence,
	})
}

// validateAdvisory runs the external validator. Failures are warnings; the
// step completes regardless.
func (e *Engine) validateAdvisory(ctx context.Context, session *TranslationSession, step *TranslationStep) {
	if e.validator == nil || step.TargetNode == nil {
		return
	}
	result := e.validator.ValidateManipulation(ctx, Manipulation{
		Type:       ManipulationReplaceNode,
		TargetNode: step.SourceNode,
		NewNode:    step.TargetNode,
	})
	if !result.IsValid {
		e.emit(telemetry.EventValidationWarning, session.ID, step.ID, map[string]interface{}{
			"errors": result.Errors,
		})
	}
}

// requestAlternatives queries the orchestrator again and appends the new
// candidates without changing the step outcome.
func (e *Engine) requestAlternatives(ctx context.Context, session *TranslationSession, step *TranslationStep, opts Options) {
	step.Status = StepInProgress
	e.generateSuggestions(ctx, session, step, opts)
	step.Status = StepAwaitingUser
}

// startStep moves a pending step into progress and gathers its suggestions.
func (e *Engine) startStep(ctx context.Context, session *TranslationSession, step *TranslationStep, opts Options) {
	step.Status = StepInProgress
	step.Timestamp = e.clock()
	e.emit(telemetry.EventStepStarted, session.ID, step.ID, map[string]interface{}{
		"node_type": string(step.SourceNode.Type),
	})
	e.generateSuggestions(ctx, session, step, opts)
	step.Status = StepAwaitingUser
}

// generateSuggestions performs exactly one orchestrator call for the step;
// on collaborator failure it degrades to pattern-library matches and keeps
// the step actionable.
func (e *Engine) generateSuggestions(ctx context.Context, session *TranslationSession, step *TranslationStep, opts Options) {
	tctx := &TranslationContext{
		SourceLanguage:   session.SourceLanguage,
		TargetLanguage:   session.TargetLanguage,
		SessionID:        session.ID,
		StylePreferences: opts.StylePreferences,
		ProjectContext:   opts.ProjectContext,
		QualityThreshold: 0.5,
		MaxLatencyMillis: 30000,
	}
	result, err := e.orchestrator.Translate(ctx, step.SourceNode, tctx)
	if err != nil {
		e.emit(telemetry.EventOrchestratorError, session.ID, step.ID, map[string]interface{}{
			"error": err.Error(),
		})
		e.fallbackSuggestions(session, step)
	} else {
		step.Suggestions = append(step.Suggestions, convertResult(result))
	}

	sort.SliceStable(step.Suggestions, func(i, j int) bool {
		return step.Suggestions[i].Confidence > step.Suggestions[j].Confidence
	})
	if len(step.Suggestions) > maxSuggestions {
		step.Suggestions = step.Suggestions[:maxSuggestions]
	}
	if len(step.Suggestions) > 0 {
		step.Confidence = step.Suggestions[0].Confidence
	}
	e.emit(telemetry.EventSuggestionsReady, session.ID, step.ID, map[string]interface{}{
		"count": len(step.Suggestions),
	})
}

// fallbackSuggestions converts up to three library matches into suggestions
// when the orchestrator is unavailable.
func (e *Engine) fallbackSuggestions(session *TranslationSession, step *TranslationStep) {
	matches := e.library.FindMatchingPatterns(step.SourceNode, session.SourceLanguage, session.TargetLanguage, fallbackMatchLimit)
	for _, m := range matches {
		step.Suggestions = append(step.Suggestions, TranslationSuggestion{
			ID:          ast.NewID(),
			Type:        SuggestionPatternMatch,
			Confidence:  m.Confidence,
			Description: m.Pattern.Name,
			TargetNode:  pattern.Instantiate(m.Pattern, m.VariableBindings),
			Reasoning:   fmt.Sprintf("Library fallback: pattern %s matched with confidence %.2f", m.Pattern.Name, m.Confidence),
			Metadata: SuggestionMetadata{
				Source:    SourcePattern,
				PatternID: m.Pattern.ID,
			},
		})
	}
}

// convertResult lifts an orchestrator answer into a ranked suggestion.
func convertResult(result *OrchestratorResult) TranslationSuggestion {
	engine := result.Metadata.EngineName
	sugg := TranslationSuggestion{
		ID:         ast.NewID(),
		Type:       SuggestionTypeFor(engine),
		Confidence: result.Confidence,
		TargetNode: result.TargetNode,
		Reasoning:  result.Reasoning,
		Metadata: SuggestionMetadata{
			Source:     SourceFor(engine),
			EngineName: string(engine),
		},
	}
	if pid, ok := result.Metadata.EngineSpecific["pattern_id"].(string); ok {
		sugg.Metadata.PatternID = pid
	}
	for _, alt := range result.Alternatives {
		sugg.Alternatives = append(sugg.Alternatives, Alternative{
			TargetNode:  alt.TargetNode,
			Confidence:  alt.Confidence,
			Description: alt.Description,
			Reasoning:   alt.Reasoning,
		})
	}
	return sugg
}

// advance moves the cursor past the finished step, starting the next one or
// finalizing the session at the end. The cursor only increases.
func (e *Engine) advance(ctx context.Context, session *TranslationSession, opts Options) {
	session.CurrentStepIndex++
	if session.CurrentStepIndex >= len(session.Steps) {
		e.finalize(session)
		return
	}
	e.startStep(ctx, session, session.Steps[session.CurrentStepIndex], opts)
}

// finalize reconstructs the target AST from completed steps, scores the
// session, and appends the completion snapshot.
func (e *Engine) finalize(session *TranslationSession) {
	root := ast.New(ast.NodeTypeProgram, "")
	for _, step := range session.Steps {
		if step.Status == StepCompleted && step.TargetNode != nil {
			root.AddChild(step.TargetNode)
		}
	}
	session.TargetAST = root
	session.Status = SessionCompleted
	session.Metadata.CompletedAt = e.clock()
	session.Metadata.QualityScore = qualityScore(session)
	e.appendSnapshot(session, "session completed")
	e.emit(telemetry.EventSessionCompleted, session.ID, "", map[string]interface{}{
		"quality_score": session.Metadata.QualityScore,
	})
}

// qualityScore blends completion, step confidence, and user ratings.
func qualityScore(session *TranslationSession) float64 {
	total := len(session.Steps)
	if total == 0 {
		return 0
	}
	completed := 0
	confidenceSum := 0.0
	ratingSum, ratingCount := 0, 0
	for _, step := range session.Steps {
		if step.Status == StepCompleted {
			completed++
			confidenceSum += step.Confidence
		}
		if step.Feedback != nil && step.Feedback.Rating > 0 {
			ratingSum += step.Feedback.Rating
			ratingCount++
		}
	}
	completionRate := float64(completed) / float64(total)
	avgConfidence := 0.0
	if completed > 0 {
		avgConfidence = confidenceSum / float64(completed)
	}
	avgRating := 0.0
	if ratingCount > 0 {
		avgRating = float64(ratingSum) / float64(ratingCount)
	}
	return 0.4*completionRate + 0.3*avgConfidence + 0.3*(avgRating/5)
}

// Pause suspends a translating session.
func (e *Engine) Pause(sessionID string) error {
	return e.transition(sessionID, SessionTranslating, SessionPaused, telemetry.EventSessionPaused)
}

// Resume continues a paused session.
func (e *Engine) Resume(sessionID string) error {
	return e.transition(sessionID, SessionPaused, SessionTranslating, telemetry.EventSessionResumed)
}

// Cancel stops a session without rolling back completed steps or applied
// learning updates.
func (e *Engine) Cancel(sessionID string) error {
	return e.stop(sessionID, SessionCancelled, telemetry.EventSessionCancelled)
}

// Fail marks a session failed; completed work and library mutations stand.
func (e *Engine) Fail(sessionID string) error {
	return e.stop(sessionID, SessionFailed, telemetry.EventSessionFailed)
}

func (e *Engine) transition(sessionID string, from, to SessionStatus, event telemetry.EventType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, to)
	}
	session.Status = to
	e.emit(event, session.ID, "", nil)
	return nil
}

func (e *Engine) stop(sessionID string, to SessionStatus, event telemetry.EventType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	switch session.Status {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, to)
	}
	session.Status = to
	e.emit(event, session.ID, "", nil)
	return nil
}

// Snapshot appends a rollback point capturing the session's current target
// AST.
func (e *Engine) Snapshot(sessionID, description string) (*SessionSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.appendSnapshot(session, description), nil
}

func (e *Engine) appendSnapshot(session *TranslationSession, description string) *SessionSnapshot {
	snap := SessionSnapshot{
		Seq:         len(session.History),
		Timestamp:   e.clock(),
		StepIndex:   session.CurrentStepIndex,
		TargetAST:   session.TargetAST.Clone(),
		Description: description,
	}
	session.History = append(session.History, snap)
	e.emit(telemetry.EventSnapshotRecorded, session.ID, "", map[string]interface{}{
		"seq": snap.Seq,
	})
	return &session.History[len(session.History)-1]
}

// Rollback replaces the live target AST with snapshot seq's copy. The
// history log itself is never rewritten.
func (e *Engine) Rollback(sessionID string, seq int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if seq < 0 || seq >= len(session.History) {
		return fmt.Errorf("rollback: snapshot %d out of range", seq)
	}
	session.TargetAST = session.History[seq].TargetAST.Clone()
	e.emit(telemetry.EventRollback, session.ID, "", map[string]interface{}{
		"seq": seq,
	})
	return nil
}

func (e *Engine) emit(t telemetry.EventType, sessionID, stepID string, meta map[string]interface{}) {
	e.telemetry.Emit(telemetry.Event{
		Type:      t,
		SessionID: sessionID,
		StepID:    stepID,
		Timestamp: e.clock(),
		Metadata:  meta,
	})
}
