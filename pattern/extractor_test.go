package pattern

import (
	"strings"
	"testing"
	"time"

	"github.com/lexcodex/transmute/ast"
)

func extractionPair() (*ast.Node, *ast.Node) {
	source := ast.New(ast.NodeTypeCallExpression, "")
	source.SetAttr("callee", "Response.Write")
	source.SetAttr("operator", "Write")
	source.AddChild(ast.New(ast.NodeTypeLiteral, "hello"))

	target := ast.New(ast.NodeTypeCallExpression, "")
	target.SetAttr("callee", "fmt.Fprint")
	target.AddChild(ast.New(ast.NodeTypeIdentifier, "w"))
	target.AddChild(ast.New(ast.NodeTypeLiteral, "hello"))
	return source, target
}

func TestExtractBuildsPattern(t *testing.T) {
	source, target := extractionPair()
	ectx := ExtractionContext{SourceLanguage: "asp", TargetLanguage: "go", Complexity: 2}
	result, err := NewExtractor().Extract(source, target, ectx, &Feedback{Action: ActionAccept})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	p := result.Pattern
	if p.SourceLanguage != "asp" || p.TargetLanguage != "go" {
		t.Fatalf("unexpected language pair: %s/%s", p.SourceLanguage, p.TargetLanguage)
	}
	if p.SourcePattern.NodeType != string(ast.NodeTypeCallExpression) {
		t.Fatalf("unexpected source node type %s", p.SourcePattern.NodeType)
	}
	if p.SourcePattern.Structure.Kind != StructureSequence {
		t.Fatalf("expected sequence structure, got %s", p.SourcePattern.Structure.Kind)
	}
	if len(p.SourcePattern.Structure.Elements) != 1 {
		t.Fatalf("expected 1 source element, got %d", len(p.SourcePattern.Structure.Elements))
	}
	// The target's identifier child becomes a variable slot.
	if len(p.TargetPattern.Variables) != 1 || p.TargetPattern.Variables[0].Type != "identifier" {
		t.Fatalf("expected identifier variable on target, got %+v", p.TargetPattern.Variables)
	}
	if !strings.HasPrefix(p.ID, "pat_asp-go_CallExpression_CallExpression_") {
		t.Fatalf("unexpected id shape %s", p.ID)
	}
	if len(result.Examples) != 1 {
		t.Fatalf("expected a recorded example, got %d", len(result.Examples))
	}
}

func TestExtractConfidenceByAction(t *testing.T) {
	source, target := extractionPair()
	ectx := ExtractionContext{SourceLanguage: "asp", TargetLanguage: "go", Complexity: 5}
	cases := []struct {
		action FeedbackAction
		want   float64
	}{
		{ActionAccept, 0.8},
		{ActionModify, 0.6},
		{ActionReject, 0.3},
	}
	for _, tc := range cases {
		result, err := NewExtractor().Extract(source, target, ectx, &Feedback{Action: tc.action})
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if diff := result.Confidence - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%s: expected confidence %f, got %f", tc.action, tc.want, result.Confidence)
		}
	}
}

func TestExtractConfidenceFoldsRatings(t *testing.T) {
	source, target := extractionPair()
	ectx := ExtractionContext{SourceLanguage: "asp", TargetLanguage: "go", Complexity: 5, UserRating: 5}
	result, err := NewExtractor().Extract(source, target, ectx, &Feedback{Action: ActionAccept, Rating: 5})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// 0.5 + 0.3 (accept) + 0.2 (rating) + 0.2 (context rating), clamped.
	if result.Confidence != 1.0 {
		t.Fatalf("expected clamped confidence 1.0, got %f", result.Confidence)
	}

	ectx.UserRating = 1
	result, err = NewExtractor().Extract(source, target, ectx, &Feedback{Action: ActionReject, Rating: 1})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// 0.5 - 0.2 - 0.2 - 0.2 clamps at zero... but stays within range.
	if result.Confidence < 0 || result.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", result.Confidence)
	}
}

func TestExtractGeneralizationFavorsSimplePairs(t *testing.T) {
	simpleSource := ast.New(ast.NodeTypeIdentifier, "x")
	simpleTarget := ast.New(ast.NodeTypeIdentifier, "y")
	ectx := ExtractionContext{SourceLanguage: "asp", TargetLanguage: "go"}
	simple, err := NewExtractor().Extract(simpleSource, simpleTarget, ectx, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	bigSource, bigTarget := extractionPair()
	for i := 0; i < 12; i++ {
		bigSource.AddChild(ast.New(ast.NodeTypeIfStatement, ""))
	}
	complexResult, err := NewExtractor().Extract(bigSource, bigTarget, ectx, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if simple.GeneralizationLevel <= complexResult.GeneralizationLevel {
		t.Fatalf("expected simpler pair to generalize further: %f vs %f",
			simple.GeneralizationLevel, complexResult.GeneralizationLevel)
	}
	if simple.GeneralizationLevel != 0.9 {
		t.Fatalf("single-node pair: expected 0.9, got %f", simple.GeneralizationLevel)
	}
}

func TestExtractApplicabilityForCommonConstructs(t *testing.T) {
	source, target := extractionPair()
	ectx := ExtractionContext{SourceLanguage: "asp", TargetLanguage: "go", Complexity: 5}
	result, err := NewExtractor().Extract(source, target, ectx, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// Call expressions are a common construct: 0.5 + 0.2.
	if diff := result.ApplicabilityScore - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected applicability 0.7, got %f", result.ApplicabilityScore)
	}
}

func TestExtractDistinctIDsOverTime(t *testing.T) {
	source, target := extractionPair()
	ectx := ExtractionContext{SourceLanguage: "asp", TargetLanguage: "go"}
	e := NewExtractor()
	first, err := e.Extract(source, target, ectx, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	time.Sleep(time.Microsecond)
	second, err := e.Extract(source, target, ectx, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if first.Pattern.ID == second.Pattern.ID {
		t.Fatal("expected timestamped ids to differ across extractions")
	}
}

func TestExtractRequiresBothNodes(t *testing.T) {
	source, _ := extractionPair()
	if _, err := NewExtractor().Extract(source, nil, ExtractionContext{}, nil); err == nil {
		t.Fatal("expected error for missing target node")
	}
}
