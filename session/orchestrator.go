package session

import (
	"context"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
)

// EngineName identifies which translation strategy produced a result.
type EngineName string

const (
	EngineRuleBased    EngineName = "rule-based"
	EnginePatternBased EngineName = "pattern-based"
	EngineLLMEnhanced  EngineName = "llm-enhanced"
)

// SuggestionTypeFor maps an engine name to the suggestion type its results
// carry.
func SuggestionTypeFor(name EngineName) SuggestionType {
	switch name {
	case EngineRuleBased:
		return SuggestionDirectMapping
	case EnginePatternBased:
		return SuggestionPatternMatch
	case EngineLLMEnhanced:
		return SuggestionSemanticEquivalent
	default:
		return SuggestionSemanticEquivalent
	}
}

// SourceFor maps an engine name to the feedback-metadata source.
func SourceFor(name EngineName) SuggestionSource {
	switch name {
	case EngineRuleBased:
		return SourceHeuristic
	case EnginePatternBased:
		return SourcePattern
	case EngineLLMEnhanced:
		return SourceEngineGenerated
	default:
		return SourceEngineGenerated
	}
}

// TranslationContext is synthesized fresh for every orchestrator call;
// nothing in it is cached across calls.
type TranslationContext struct {
	SourceLanguage   string            `json:"source_language"`
	TargetLanguage   string            `json:"target_language"`
	SessionID        string            `json:"session_id"`
	StylePreferences map[string]string `json:"style_preferences,omitempty"`
	ProjectContext   map[string]string `json:"project_context,omitempty"`
	QualityThreshold float64           `json:"quality_threshold"`
	MaxLatencyMillis int               `json:"max_latency_millis"`
}

// OrchestratorAlternative is a secondary candidate from the orchestrator.
type OrchestratorAlternative struct {
	TargetNode  *ast.Node `json:"target_node"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description,omitempty"`
	Reasoning   string    `json:"reasoning,omitempty"`
}

// OrchestratorResult is the orchestrator's answer for one node.
type OrchestratorResult struct {
	TargetNode   *ast.Node                 `json:"target_node"`
	Confidence   float64                   `json:"confidence"`
	Reasoning    string                    `json:"reasoning,omitempty"`
	Alternatives []OrchestratorAlternative `json:"alternatives,omitempty"`
	Metadata     OrchestratorMetadata      `json:"metadata"`
}

// OrchestratorMetadata identifies the winning engine.
type OrchestratorMetadata struct {
	EngineName     EngineName             `json:"engine_name"`
	EngineSpecific map[string]interface{} `json:"engine_specific,omitempty"`
}

// Orchestrator arbitrates among translation strategies for one node. It is
// an external collaborator; the session engine awaits exactly one call per
// suggestion-generation request.
type Orchestrator interface {
	Translate(ctx context.Context, node *ast.Node, tctx *TranslationContext) (*OrchestratorResult, error)
}

// LibraryOrchestrator answers from the pattern library alone. It serves as
// the default collaborator when no external multi-engine orchestrator is
// configured, and mirrors the engine's degraded mode.
type LibraryOrchestrator struct {
	Library *pattern.Library
}

// Translate returns the best library match instantiated as a target node.
func (o *LibraryOrchestrator) Translate(ctx context.Context, node *ast.Node, tctx *TranslationContext) (*OrchestratorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := o.Library.FindMatchingPatterns(node, tctx.SourceLanguage, tctx.TargetLanguage, 3)
	if len(matches) == 0 {
		return nil, ErrNoTranslation
	}
	best := matches[0]
	result := &OrchestratorResult{
		TargetNode: pattern.Instantiate(best.Pattern, best.VariableBindings),
		Confidence: best.Confidence,
		Reasoning:  "Matched learned pattern " + best.Pattern.Name,
		Metadata: OrchestratorMetadata{
			EngineName: EnginePatternBased,
			EngineSpecific: map[string]interface{}{
				"pattern_id": best.Pattern.ID,
			},
		},
	}
	for _, m := range matches[1:] {
		result.Alternatives = append(result.Alternatives, OrchestratorAlternative{
			TargetNode:  pattern.Instantiate(m.Pattern, m.VariableBindings),
			Confidence:  m.Confidence,
			Description: m.Pattern.Name,
			Reasoning:   "Alternative learned pattern",
		})
	}
	return result, nil
}
