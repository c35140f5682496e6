package session

import "fmt"

// minReasoningDetail is the length below which a suggestion's reasoning is
// considered too thin and gets enriched on request.
const minReasoningDetail = 40

// explainStep lazily enriches a suggestion's reasoning using a fixed
// per-type template. An empty suggestion id enriches the top-ranked one.
// This is a reflective action: it never changes the step status.
func explainStep(step *TranslationStep, suggestionID string) {
	sugg, ok := step.Suggestion(suggestionID)
	if !ok {
		return
	}
	if len(sugg.Reasoning) >= minReasoningDetail {
		return
	}
	sugg.Reasoning = explanationFor(sugg)
}

func explanationFor(sugg *TranslationSuggestion) string {
	nodeType := ""
	if sugg.TargetNode != nil {
		nodeType = string(sugg.TargetNode.Type)
	}
	switch sugg.Type {
	case SuggestionDirectMapping:
		return fmt.Sprintf(
			"This construct has a direct equivalent in the target language. The %s form preserves the original semantics one-to-one, so no structural rework is needed.",
			nodeType)
	case SuggestionPatternMatch:
		return fmt.Sprintf(
			"A learned translation pattern matched this construct (confidence %.2f). The pattern was built from previously approved translations of the same shape and reuses their structure here.",
			sugg.Confidence)
	case SuggestionSemanticEquivalent:
		return fmt.Sprintf(
			"No direct mapping exists, so this suggestion re-expresses the behavior with idiomatic %s constructs. Review the control flow carefully: equivalence is semantic, not syntactic.",
			nodeType)
	default:
		return fmt.Sprintf(
			"Suggested translation with confidence %.2f. Review against the source construct before accepting; this suggestion type carries no specialized rationale.",
			sugg.Confidence)
	}
}
