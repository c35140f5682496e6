package pattern

import (
	"fmt"
	"time"
)

// StructureKind enumerates pattern structure layouts.
type StructureKind string

const (
	StructureSequence   StructureKind = "sequence"
	StructureChoice     StructureKind = "choice"
	StructureOptional   StructureKind = "optional"
	StructureRepetition StructureKind = "repetition"
	StructureGroup      StructureKind = "group"
)

// ElementKind enumerates what a pattern element stands for.
type ElementKind string

const (
	ElementNode     ElementKind = "node"
	ElementLiteral  ElementKind = "literal"
	ElementVariable ElementKind = "variable"
	ElementWildcard ElementKind = "wildcard"
)

// ConstraintType enumerates the property classes a constraint can test.
type ConstraintType string

const (
	ConstraintTypeType      ConstraintType = "type"
	ConstraintTypeValue     ConstraintType = "value"
	ConstraintTypeAttribute ConstraintType = "attribute"
	ConstraintTypeContext   ConstraintType = "context"
	ConstraintTypeSemantic  ConstraintType = "semantic"
)

// ConstraintOperator enumerates the predicates a constraint can apply.
type ConstraintOperator string

const (
	OperatorEquals    ConstraintOperator = "equals"
	OperatorContains  ConstraintOperator = "contains"
	OperatorMatches   ConstraintOperator = "matches"
	OperatorExists    ConstraintOperator = "exists"
	OperatorNotExists ConstraintOperator = "not_exists"
)

// ASTPattern describes one side of a reusable transformation.
type ASTPattern struct {
	NodeType    string              `json:"node_type"`
	Structure   PatternStructure    `json:"structure"`
	Constraints []PatternConstraint `json:"constraints,omitempty"`
	Variables   []PatternVariable   `json:"variables,omitempty"`
}

// PatternStructure holds the ordered element layout of a pattern.
type PatternStructure struct {
	Kind     StructureKind    `json:"kind"`
	Elements []PatternElement `json:"elements,omitempty"`
}

// PatternElement is one slot in a pattern structure.
type PatternElement struct {
	Kind        ElementKind         `json:"kind"`
	Value       string              `json:"value,omitempty"`
	Constraints []PatternConstraint `json:"constraints,omitempty"`
}

// PatternConstraint gates pattern applicability on a node property.
// Property is a dotted path resolved against the node (see ResolveProperty).
type PatternConstraint struct {
	Type     ConstraintType     `json:"type"`
	Property string             `json:"property"`
	Operator ConstraintOperator `json:"operator"`
	Value    string             `json:"value,omitempty"`
}

// PatternVariable captures a substitutable slot in the target template.
type PatternVariable struct {
	Name         string              `json:"name"`
	Type         string              `json:"type"`
	Constraints  []PatternConstraint `json:"constraints,omitempty"`
	DefaultValue string              `json:"default_value,omitempty"`
}

// TranslationPattern is a learned source-to-target transformation with its
// usage statistics. Confidence and SuccessRate stay clamped to [0,1];
// UsageCount only increases.
type TranslationPattern struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	SourceLanguage string          `json:"source_language"`
	TargetLanguage string          `json:"target_language"`
	SourcePattern  ASTPattern      `json:"source_pattern"`
	TargetPattern  ASTPattern      `json:"target_pattern"`
	Confidence     float64         `json:"confidence"`
	UsageCount     int             `json:"usage_count"`
	SuccessRate    float64         `json:"success_rate"`
	Metadata       PatternMetadata `json:"metadata"`
}

// Copy returns a deep copy of the pattern. The library hands copies to
// callers so learning updates never race with readers holding earlier
// results.
func (p *TranslationPattern) Copy() *TranslationPattern {
	if p == nil {
		return nil
	}
	out := *p
	out.SourcePattern = p.SourcePattern.copy()
	out.TargetPattern = p.TargetPattern.copy()
	out.Metadata.Tags = append([]string(nil), p.Metadata.Tags...)
	out.Metadata.Examples = append([]ExamplePair(nil), p.Metadata.Examples...)
	return &out
}

func (a ASTPattern) copy() ASTPattern {
	out := a
	out.Constraints = append([]PatternConstraint(nil), a.Constraints...)
	if a.Structure.Elements != nil {
		elems := make([]PatternElement, len(a.Structure.Elements))
		for i, e := range a.Structure.Elements {
			elems[i] = e
			elems[i].Constraints = append([]PatternConstraint(nil), e.Constraints...)
		}
		out.Structure.Elements = elems
	}
	if a.Variables != nil {
		vars := make([]PatternVariable, len(a.Variables))
		for i, v := range a.Variables {
			vars[i] = v
			vars[i].Constraints = append([]PatternConstraint(nil), v.Constraints...)
		}
		out.Variables = vars
	}
	return out
}

// PatternMetadata carries provenance and bookkeeping for a pattern.
type PatternMetadata struct {
	Author      string           `json:"author,omitempty"`
	Version     string           `json:"version,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Complexity  int              `json:"complexity"`
	Performance PerformanceStats `json:"performance"`
	Examples    []ExamplePair    `json:"examples,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// PerformanceStats tracks how a pattern behaves when applied.
type PerformanceStats struct {
	Applications int `json:"applications"`
	AvgMatchMics int `json:"avg_match_micros"`
}

// ExamplePair records one observed source/target instance of a pattern.
type ExamplePair struct {
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	RecordedAt  time.Time `json:"recorded_at"`
	Description string    `json:"description,omitempty"`
}

// PatternMatch is the result of scoring one pattern against one node.
type PatternMatch struct {
	Pattern          *TranslationPattern `json:"pattern"`
	Confidence       float64             `json:"confidence"`
	Similarity       float64             `json:"similarity"`
	VariableBindings map[string]string   `json:"variable_bindings,omitempty"`
	StructuralScore  float64             `json:"structural_score"`
	SemanticScore    float64             `json:"semantic_score"`
	ContextScore     float64             `json:"context_score"`
}

// NewPatternID derives a pattern identity from the language pair, the node
// types being bridged, and the extraction instant. The timestamp keeps
// repeated extractions of the same shape distinct unless the caller
// deduplicates.
func NewPatternID(sourceLang, targetLang, sourceType, targetType string, at time.Time) string {
	return fmt.Sprintf("pat_%s-%s_%s_%s_%d", sourceLang, targetLang, sourceType, targetType, at.UnixNano())
}

// Clamp01 restricts v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
