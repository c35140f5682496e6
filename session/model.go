package session

import (
	"time"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
)

// StepStatus tracks one translation unit through its state machine:
// PENDING -> IN_PROGRESS -> {AWAITING_USER, COMPLETED, FAILED, SKIPPED}.
// AWAITING_USER loops back through IN_PROGRESS for reflective actions.
type StepStatus string

const (
	StepPending      StepStatus = "pending"
	StepInProgress   StepStatus = "in_progress"
	StepAwaitingUser StepStatus = "awaiting_user"
	StepCompleted    StepStatus = "completed"
	StepFailed       StepStatus = "failed"
	StepSkipped      StepStatus = "skipped"
)

// Terminal reports whether the step can no longer transition on its own.
// FAILED is terminal unless the caller explicitly retries.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// SessionStatus tracks a session through INITIALIZED -> ANALYZING ->
// TRANSLATING -> COMPLETED, with PAUSED/FAILED/CANCELLED reachable from
// TRANSLATING via explicit caller action.
type SessionStatus string

const (
	SessionInitialized SessionStatus = "initialized"
	SessionAnalyzing   SessionStatus = "analyzing"
	SessionTranslating SessionStatus = "translating"
	SessionPaused      SessionStatus = "paused"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
	SessionCancelled   SessionStatus = "cancelled"
)

// SuggestionType classifies what kind of translation a suggestion offers.
type SuggestionType string

const (
	SuggestionDirectMapping      SuggestionType = "direct_mapping"
	SuggestionPatternMatch       SuggestionType = "pattern_match"
	SuggestionSemanticEquivalent SuggestionType = "semantic_equivalent"
	SuggestionFrameworkSpecific  SuggestionType = "framework_specific"
	SuggestionBestPractice       SuggestionType = "best_practice"
	SuggestionPerformance        SuggestionType = "performance"
	SuggestionSecurity           SuggestionType = "security"
)

// SuggestionSource records where a suggestion came from.
type SuggestionSource string

const (
	SourcePattern         SuggestionSource = "pattern"
	SourceEngineGenerated SuggestionSource = "engine-generated"
	SourceUser            SuggestionSource = "user"
	SourceHeuristic       SuggestionSource = "heuristic"
)

// SuggestionMetadata carries provenance for a suggestion.
type SuggestionMetadata struct {
	Source     SuggestionSource `json:"source"`
	EngineName string           `json:"engine_name,omitempty"`
	PatternID  string           `json:"pattern_id,omitempty"`
}

// Alternative is a secondary candidate attached to a suggestion.
type Alternative struct {
	TargetNode  *ast.Node `json:"target_node"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description,omitempty"`
	Reasoning   string    `json:"reasoning,omitempty"`
}

// TranslationSuggestion is one ranked candidate translation for a step.
type TranslationSuggestion struct {
	ID           string             `json:"id"`
	Type         SuggestionType     `json:"type"`
	Confidence   float64            `json:"confidence"`
	Description  string             `json:"description,omitempty"`
	TargetNode   *ast.Node          `json:"target_node"`
	Reasoning    string             `json:"reasoning,omitempty"`
	Alternatives []Alternative      `json:"alternatives,omitempty"`
	Metadata     SuggestionMetadata `json:"metadata"`
}

// UserFeedback is the caller-supplied verdict on a step's suggestions.
// Rating is 1-5 with 0 meaning not provided. TargetNode is required for
// modify and ignored otherwise.
type UserFeedback struct {
	Action       pattern.FeedbackAction `json:"action"`
	SuggestionID string                 `json:"suggestion_id,omitempty"`
	TargetNode   *ast.Node              `json:"target_node,omitempty"`
	Rating       int                    `json:"rating,omitempty"`
	Comment      string                 `json:"comment,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// TranslationStep is one translation unit of a session. Steps are created
// during analysis in AST pre-order and never removed, only transitioned.
type TranslationStep struct {
	ID          string                  `json:"id"`
	SourceNode  *ast.Node               `json:"source_node"`
	TargetNode  *ast.Node               `json:"target_node,omitempty"`
	PatternID   string                  `json:"pattern_id,omitempty"`
	Status      StepStatus              `json:"status"`
	Confidence  float64                 `json:"confidence"`
	Suggestions []TranslationSuggestion `json:"suggestions,omitempty"`
	Feedback    *UserFeedback           `json:"feedback,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

// Suggestion finds an attached suggestion by id; an empty id selects the
// top-ranked one.
func (s *TranslationStep) Suggestion(id string) (*TranslationSuggestion, bool) {
	if len(s.Suggestions) == 0 {
		return nil, false
	}
	if id == "" {
		return &s.Suggestions[0], true
	}
	for i := range s.Suggestions {
		if s.Suggestions[i].ID == id {
			return &s.Suggestions[i], true
		}
	}
	return nil, false
}

// SessionMetadata carries bookkeeping for a session.
type SessionMetadata struct {
	UserID         string    `json:"user_id,omitempty"`
	ProjectID      string    `json:"project_id,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps int       `json:"completed_steps"`
	SkippedSteps   int       `json:"skipped_steps"`
	FailedSteps    int       `json:"failed_steps"`
	QualityScore   float64   `json:"quality_score"`
}

// SessionSnapshot records a historical target-AST state for rollback. The
// history is an append-only log; rollback replaces the live target pointer,
// never rewrites entries.
type SessionSnapshot struct {
	Seq         int       `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	StepIndex   int       `json:"step_index"`
	TargetAST   *ast.Node `json:"target_ast,omitempty"`
	Description string    `json:"description,omitempty"`
}

// TranslationSession is one end-to-end, user-supervised translation of a
// source AST. It owns its steps; patterns outlive it in the library.
type TranslationSession struct {
	ID               string             `json:"id"`
	SourceLanguage   string             `json:"source_language"`
	TargetLanguage   string             `json:"target_language"`
	SourceAST        *ast.Node          `json:"source_ast"`
	TargetAST        *ast.Node          `json:"target_ast,omitempty"`
	Steps            []*TranslationStep `json:"steps"`
	PatternIDs       []string           `json:"pattern_ids,omitempty"`
	CurrentStepIndex int                `json:"current_step_index"`
	Status           SessionStatus      `json:"status"`
	Metadata         SessionMetadata    `json:"metadata"`
	History          []SessionSnapshot  `json:"history,omitempty"`
}

// Step finds a step by id.
func (s *TranslationSession) Step(id string) (*TranslationStep, bool) {
	for _, step := range s.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return nil, false
}

// CurrentStep returns the step at the cursor, or nil past the end.
func (s *TranslationSession) CurrentStep() *TranslationStep {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.Steps) {
		return nil
	}
	return s.Steps[s.CurrentStepIndex]
}

// Copy returns a deep copy of the session. Server handlers encode copies
// so concurrent feedback on the live session cannot race with readers.
func (s *TranslationSession) Copy() *TranslationSession {
	if s == nil {
		return nil
	}
	out := *s
	out.SourceAST = s.SourceAST.Clone()
	out.TargetAST = s.TargetAST.Clone()
	out.PatternIDs = append([]string(nil), s.PatternIDs...)
	if s.Steps != nil {
		out.Steps = make([]*TranslationStep, len(s.Steps))
		for i, step := range s.Steps {
			out.Steps[i] = step.copy()
		}
	}
	if s.History != nil {
		out.History = make([]SessionSnapshot, len(s.History))
		for i, snap := range s.History {
			out.History[i] = snap
			out.History[i].TargetAST = snap.TargetAST.Clone()
		}
	}
	return &out
}

func (s *TranslationStep) copy() *TranslationStep {
	if s == nil {
		return nil
	}
	out := *s
	out.SourceNode = s.SourceNode.Clone()
	out.TargetNode = s.TargetNode.Clone()
	if s.Suggestions != nil {
		out.Suggestions = make([]TranslationSuggestion, len(s.Suggestions))
		for i, sug := range s.Suggestions {
			out.Suggestions[i] = sug
			out.Suggestions[i].TargetNode = sug.TargetNode.Clone()
			if sug.Alternatives != nil {
				alts := make([]Alternative, len(sug.Alternatives))
				for j, alt := range sug.Alternatives {
					alts[j] = alt
					alts[j].TargetNode = alt.TargetNode.Clone()
				}
				out.Suggestions[i].Alternatives = alts
			}
		}
	}
	if s.Feedback != nil {
		fb := *s.Feedback
		fb.TargetNode = s.Feedback.TargetNode.Clone()
		out.Feedback = &fb
	}
	return &out
}

// recordPattern tracks which patterns the session touched, once each.
func (s *TranslationSession) recordPattern(id string) {
	if id == "" {
		return
	}
	for _, existing := range s.PatternIDs {
		if existing == id {
			return
		}
	}
	s.PatternIDs = append(s.PatternIDs, id)
}
