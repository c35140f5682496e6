package pattern

import (
	"testing"

	"github.com/lexcodex/transmute/ast"
)

// writeCallNode builds the canonical Response.Write("hello") call used
// across matcher tests.
func writeCallNode() *ast.Node {
	call := ast.New(ast.NodeTypeCallExpression, "")
	call.SetAttr("callee", "Response.Write")
	call.SetAttr("operator", "Write")
	call.AddChild(ast.New(ast.NodeTypeLiteral, "hello"))
	return call
}

func writeCallPattern() *TranslationPattern {
	return &TranslationPattern{
		ID:             "p-write",
		Name:           "response write",
		SourceLanguage: "asp",
		TargetLanguage: "go",
		SourcePattern: ASTPattern{
			NodeType: string(ast.NodeTypeCallExpression),
			Structure: PatternStructure{
				Kind: StructureSequence,
				Elements: []PatternElement{
					{Kind: ElementNode, Value: string(ast.NodeTypeLiteral)},
				},
			},
			Constraints: []PatternConstraint{
				{Type: ConstraintTypeAttribute, Property: "operator", Operator: OperatorEquals, Value: "Write"},
			},
		},
		TargetPattern: ASTPattern{NodeType: string(ast.NodeTypeCallExpression)},
		Confidence:    0.9,
		SuccessRate:   0.8,
		UsageCount:    50,
		Metadata:      PatternMetadata{Complexity: 2},
	}
}

func TestMatchTypeMismatchScoresZero(t *testing.T) {
	m := NewMatcher(nil)
	p := writeCallPattern()
	node := ast.New(ast.NodeTypeReturnStatement, "")
	match := m.Match(p, node)
	if match.Confidence != 0 || match.StructuralScore != 0 || match.SemanticScore != 0 || match.ContextScore != 0 {
		t.Fatalf("expected all-zero scores on type mismatch, got %+v", match)
	}
}

func TestMatchResponseWriteScenario(t *testing.T) {
	m := NewMatcher(nil)
	match := m.Match(writeCallPattern(), writeCallNode())
	if match.StructuralScore < 0.8 {
		t.Fatalf("structural score %f, expected >= 0.8", match.StructuralScore)
	}
	if match.Confidence < 0.7 {
		t.Fatalf("confidence %f, expected >= 0.7", match.Confidence)
	}
}

func TestMatchScoresStayInUnitInterval(t *testing.T) {
	m := NewMatcher(nil)
	patterns := []*TranslationPattern{
		writeCallPattern(),
		{
			ID:            "p-extreme",
			SourcePattern: ASTPattern{NodeType: string(ast.NodeTypeCallExpression)},
			Confidence:    1,
			SuccessRate:   1,
			UsageCount:    1 << 20,
			Metadata:      PatternMetadata{Complexity: 500},
		},
	}
	for _, p := range patterns {
		match := m.Match(p, writeCallNode())
		for name, score := range map[string]float64{
			"confidence": match.Confidence,
			"structural": match.StructuralScore,
			"semantic":   match.SemanticScore,
			"context":    match.ContextScore,
		} {
			if score < 0 || score > 1 {
				t.Fatalf("%s score %f out of [0,1] for pattern %s", name, score, p.ID)
			}
		}
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	m := NewMatcher(nil)
	p := writeCallPattern()
	node := writeCallNode()
	first := m.Match(p, node)
	second := m.Match(p, node)
	if first.Confidence != second.Confidence || first.StructuralScore != second.StructuralScore {
		t.Fatalf("repeated match diverged: %+v vs %+v", first, second)
	}
}

func TestStructuralScoreUsesCache(t *testing.T) {
	cache := NewScoreCache()
	m := NewMatcher(cache)
	m.Match(writeCallPattern(), writeCallNode())
	if cache.Len() != 1 {
		t.Fatalf("expected one cached structural score, got %d", cache.Len())
	}
}

func TestStructureMatchKinds(t *testing.T) {
	seq := PatternStructure{Kind: StructureSequence, Elements: []PatternElement{
		{Kind: ElementNode, Value: string(ast.NodeTypeIdentifier)},
		{Kind: ElementWildcard},
	}}
	children := []*ast.Node{
		ast.New(ast.NodeTypeIdentifier, "x"),
		ast.New(ast.NodeTypeLiteral, "1"),
	}
	if got := structureMatch(seq, children); got != 1 {
		t.Fatalf("sequence: expected 1, got %f", got)
	}
	if got := structureMatch(seq, children[:1]); got != 0 {
		t.Fatalf("sequence length mismatch: expected 0, got %f", got)
	}

	choice := PatternStructure{Kind: StructureChoice, Elements: []PatternElement{
		{Kind: ElementNode, Value: string(ast.NodeTypeForStatement)},
		{Kind: ElementNode, Value: string(ast.NodeTypeLiteral)},
	}}
	if got := structureMatch(choice, children); got != 1 {
		t.Fatalf("choice: expected 1, got %f", got)
	}

	optional := PatternStructure{Kind: StructureOptional, Elements: []PatternElement{
		{Kind: ElementNode, Value: string(ast.NodeTypeIdentifier)},
	}}
	if got := structureMatch(optional, nil); got != 1 {
		t.Fatalf("optional absent: expected 1, got %f", got)
	}

	repetition := PatternStructure{Kind: StructureRepetition, Elements: []PatternElement{
		{Kind: ElementNode, Value: string(ast.NodeTypeIdentifier)},
	}}
	if got := structureMatch(repetition, children); got != 0.5 {
		t.Fatalf("repetition: expected 0.5, got %f", got)
	}
}

func TestEvalConstraintOperators(t *testing.T) {
	node := writeCallNode()
	cases := []struct {
		name string
		c    PatternConstraint
		want bool
	}{
		{"equals hit", PatternConstraint{Property: "operator", Operator: OperatorEquals, Value: "Write"}, true},
		{"equals miss", PatternConstraint{Property: "operator", Operator: OperatorEquals, Value: "Read"}, false},
		{"contains", PatternConstraint{Property: "callee", Operator: OperatorContains, Value: "Response"}, true},
		{"matches", PatternConstraint{Property: "callee", Operator: OperatorMatches, Value: `^Response\.`}, true},
		{"matches bad regexp", PatternConstraint{Property: "callee", Operator: OperatorMatches, Value: `([`}, false},
		{"exists", PatternConstraint{Property: "callee", Operator: OperatorExists}, true},
		{"not exists", PatternConstraint{Property: "missing", Operator: OperatorNotExists}, true},
	}
	for _, tc := range cases {
		if got := EvalConstraint(tc.c, node); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestResolvePropertyDottedPath(t *testing.T) {
	node := ast.New(ast.NodeTypeCallExpression, "call")
	node.SetAttr("meta", map[string]interface{}{"origin": "legacy"})
	if v, ok := ResolveProperty(node, "meta.origin"); !ok || v != "legacy" {
		t.Fatalf("expected legacy, got %v (%v)", v, ok)
	}
	if v, ok := ResolveProperty(node, "type"); !ok || v != string(ast.NodeTypeCallExpression) {
		t.Fatalf("expected node type, got %v", v)
	}
	if _, ok := ResolveProperty(node, "meta.missing"); ok {
		t.Fatal("expected missing nested path to fail")
	}
}

func TestBindVariablesFallbackChain(t *testing.T) {
	p := writeCallPattern()
	p.SourcePattern.Variables = []PatternVariable{
		{
			Name: "callee",
			Type: "identifier",
			Constraints: []PatternConstraint{
				{Type: ConstraintTypeAttribute, Property: "callee", Operator: OperatorExists},
			},
		},
		{Name: "fallback", Type: "identifier"},
	}
	m := NewMatcher(nil)
	match := m.Match(p, writeCallNode())
	if match.VariableBindings["callee"] != "Response.Write" {
		t.Fatalf("expected callee binding, got %v", match.VariableBindings)
	}
	// Node value is empty, so the second variable falls back to the type.
	if match.VariableBindings["fallback"] != string(ast.NodeTypeCallExpression) {
		t.Fatalf("expected node-type fallback, got %v", match.VariableBindings)
	}
}

func TestTypeCompatibilityHierarchy(t *testing.T) {
	if got := TypeCompatibility("Identifier", "Identifier"); got != 1 {
		t.Fatalf("exact: expected 1, got %f", got)
	}
	if got := TypeCompatibility("Identifier", "BinaryExpression"); got != 0.7 {
		t.Fatalf("family: expected 0.7, got %f", got)
	}
	if got := TypeCompatibility("Identifier", "IfStatement"); got != 0 {
		t.Fatalf("unrelated: expected 0, got %f", got)
	}
}
