package pattern

import (
	"fmt"
	"time"

	"github.com/lexcodex/transmute/ast"
)

// ExtractionContext describes the surrounding translation when a pattern is
// synthesized from an approved transformation.
type ExtractionContext struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	SessionID      string `json:"session_id,omitempty"`
	Complexity     int    `json:"complexity"`
	UserRating     int    `json:"user_rating,omitempty"`
}

// ExtractionResult is the outcome of synthesizing a pattern from a
// source/target node pair.
type ExtractionResult struct {
	Pattern             *TranslationPattern `json:"pattern"`
	Confidence          float64             `json:"confidence"`
	GeneralizationLevel float64             `json:"generalization_level"`
	ApplicabilityScore  float64             `json:"applicability_score"`
	Examples            []ExamplePair       `json:"examples,omitempty"`
}

// commonConstructTypes are shapes that recur across most languages; patterns
// rooted at one of these apply more broadly.
var commonConstructTypes = map[ast.NodeType]bool{
	ast.NodeTypeIfStatement:         true,
	ast.NodeTypeForStatement:        true,
	ast.NodeTypeWhileStatement:      true,
	ast.NodeTypeFunctionDeclaration: true,
	ast.NodeTypeVariableDeclaration: true,
	ast.NodeTypeBinaryExpression:    true,
	ast.NodeTypeCallExpression:      true,
}

// Extractor synthesizes new translation patterns from approved or
// user-modified transformations.
type Extractor struct {
	clock func() time.Time
}

// NewExtractor builds an extractor.
func NewExtractor() *Extractor {
	return &Extractor{clock: time.Now}
}

// Extract derives a pattern from a source/target pair. The feedback, when
// present, seeds the new pattern's confidence; nil feedback leaves the
// neutral baseline.
func (e *Extractor) Extract(source, target *ast.Node, ectx ExtractionContext, fb *Feedback) (*ExtractionResult, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("extract: source and target nodes are required")
	}

	now := e.clock()
	sourceComplexity := ast.Complexity(source)
	targetComplexity := ast.Complexity(target)

	p := &TranslationPattern{
		ID:             NewPatternID(ectx.SourceLanguage, ectx.TargetLanguage, string(source.Type), string(target.Type), now),
		Name:           fmt.Sprintf("%s to %s", source.Type, target.Type),
		Description:    fmt.Sprintf("Learned %s/%s transformation of %s into %s", ectx.SourceLanguage, ectx.TargetLanguage, source.Type, target.Type),
		SourceLanguage: ectx.SourceLanguage,
		TargetLanguage: ectx.TargetLanguage,
		SourcePattern:  derivePattern(source),
		TargetPattern:  derivePattern(target),
		Confidence:     extractionConfidence(ectx, fb),
		SuccessRate:    0.5,
		Metadata: PatternMetadata{
			Author:     "extractor",
			Version:    "1",
			Complexity: sourceComplexity,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	example := ExamplePair{
		Source:     renderExample(source),
		Target:     renderExample(target),
		RecordedAt: now,
	}
	p.Metadata.Examples = append(p.Metadata.Examples, example)

	avgComplexity := float64(sourceComplexity+targetComplexity) / 2
	generalization := (10 - avgComplexity) / 10
	if generalization < 0 {
		generalization = 0
	}
	if generalization > 1 {
		generalization = 1
	}

	return &ExtractionResult{
		Pattern:             p,
		Confidence:          p.Confidence,
		GeneralizationLevel: generalization,
		ApplicabilityScore:  applicability(source, ectx.Complexity),
		Examples:            []ExamplePair{example},
	}, nil
}

// derivePattern lifts a concrete node into a pattern shape: children become
// a sequence of node elements, identifiers become variables.
func derivePattern(n *ast.Node) ASTPattern {
	p := ASTPattern{
		NodeType:  string(n.Type),
		Structure: PatternStructure{Kind: StructureSequence},
	}
	for i, child := range n.Children {
		p.Structure.Elements = append(p.Structure.Elements, PatternElement{
			Kind:  ElementNode,
			Value: string(child.Type),
		})
		if child.Type == ast.NodeTypeIdentifier {
			p.Variables = append(p.Variables, PatternVariable{
				Name:         fmt.Sprintf("var_%d", i),
				Type:         "identifier",
				DefaultValue: child.Value,
			})
		}
	}
	if op, ok := n.Attr("operator"); ok {
		if s, ok := op.(string); ok && s != "" {
			p.Constraints = append(p.Constraints, PatternConstraint{
				Type:     ConstraintTypeAttribute,
				Property: "operator",
				Operator: OperatorEquals,
				Value:    s,
			})
		}
	}
	return p
}

// extractionConfidence starts at the neutral baseline and folds in every
// available signal: the action taken, an attached rating, the structural
// complexity, and an independent context rating.
func extractionConfidence(ectx ExtractionContext, fb *Feedback) float64 {
	confidence := 0.5
	if fb != nil {
		switch fb.Action {
		case ActionAccept:
			confidence += 0.3
		case ActionModify:
			confidence += 0.1
		case ActionReject:
			confidence -= 0.2
		}
		if fb.Rating > 0 {
			confidence += 0.1 * float64(fb.Rating-3)
		}
	}
	if headroom := 5 - ectx.Complexity; headroom > 0 {
		confidence += 0.05 * float64(headroom)
	}
	if ectx.UserRating > 0 {
		confidence += 0.1 * float64(ectx.UserRating-3)
	}
	return Clamp01(confidence)
}

func applicability(source *ast.Node, complexity int) float64 {
	score := 0.5
	if commonConstructTypes[source.Type] {
		score += 0.2
	}
	if headroom := 5 - complexity; headroom > 0 {
		score += 0.1 * float64(headroom)
	}
	return Clamp01(score)
}

// renderExample flattens a node into a compact textual sketch for the
// pattern's example log.
func renderExample(n *ast.Node) string {
	if n.Value != "" {
		return fmt.Sprintf("%s(%s)", n.Type, n.Value)
	}
	if len(n.Children) == 0 {
		return string(n.Type)
	}
	return fmt.Sprintf("%s/%d", n.Type, len(n.Children))
}
