package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lexcodex/transmute/ast"
)

// Scoring weights are fixed policy, not configuration.
const (
	structuralTypeWeight       = 0.3
	structuralChildCountWeight = 0.2
	structuralShapeWeight      = 0.3
	structuralConstraintWeight = 0.2

	semanticIdentifierWeight  = 0.3
	semanticTypeWeight        = 0.2
	semanticOperationWeight   = 0.3
	semanticControlFlowWeight = 0.2

	contextUsageWeight      = 0.4
	contextSuccessWeight    = 0.4
	contextComplexityWeight = 0.2

	matchStructuralWeight = 0.4
	matchSemanticWeight   = 0.3
	matchContextWeight    = 0.3

	patternConfidenceWeight = 0.6
	patternSuccessWeight    = 0.4

	overallMatchWeight   = 0.7
	overallPatternWeight = 0.3

	usageSaturation = 100.0
)

// Matcher scores translation patterns against AST nodes. It is stateless
// apart from the shared structural-score cache.
type Matcher struct {
	cache *ScoreCache
}

// NewMatcher builds a matcher over the given cache; a nil cache gets a
// private one.
func NewMatcher(cache *ScoreCache) *Matcher {
	if cache == nil {
		cache = NewScoreCache()
	}
	return &Matcher{cache: cache}
}

// Match computes the multi-factor score of one pattern against one node.
// A node-type mismatch is the common not-applicable case: every score is
// zero and no error is raised.
func (m *Matcher) Match(p *TranslationPattern, node *ast.Node) PatternMatch {
	match := PatternMatch{Pattern: p}
	if p == nil || node == nil || p.SourcePattern.NodeType != string(node.Type) {
		return match
	}

	match.StructuralScore = m.structuralScore(p, node)
	match.SemanticScore = m.semanticScore(p, node)
	match.ContextScore = m.contextScore(p, node)

	matchScore := matchStructuralWeight*match.StructuralScore +
		matchSemanticWeight*match.SemanticScore +
		matchContextWeight*match.ContextScore
	patternScore := patternConfidenceWeight*p.Confidence + patternSuccessWeight*p.SuccessRate

	match.Similarity = Clamp01(matchScore)
	match.Confidence = Clamp01(overallMatchWeight*matchScore + overallPatternWeight*patternScore)
	match.VariableBindings = bindVariables(p, node)
	return match
}

// structuralScore combines the guaranteed type match with child-count
// similarity, recursive shape matching, and constraint satisfaction.
// Results are memoized per (pattern id, node id).
func (m *Matcher) structuralScore(p *TranslationPattern, node *ast.Node) float64 {
	if score, ok := m.cache.Get(p.ID, node.ID); ok {
		return score
	}
	score := structuralTypeWeight +
		structuralChildCountWeight*childCountSimilarity(p.SourcePattern, node) +
		structuralShapeWeight*structureMatch(p.SourcePattern.Structure, node.Children) +
		structuralConstraintWeight*constraintRatio(p.SourcePattern.Constraints, node)
	score = Clamp01(score)
	m.cache.Put(p.ID, node.ID, score)
	return score
}

func childCountSimilarity(p ASTPattern, node *ast.Node) float64 {
	pc := len(p.Structure.Elements)
	nc := len(node.Children)
	denom := pc
	if nc > denom {
		denom = nc
	}
	if denom < 1 {
		denom = 1
	}
	diff := pc - nc
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(denom)
}

// structureMatch recursively scores a pattern structure against a node's
// children.
func structureMatch(structure PatternStructure, children []*ast.Node) float64 {
	switch structure.Kind {
	case StructureSequence, StructureGroup:
		if len(structure.Elements) != len(children) {
			return 0
		}
		if len(structure.Elements) == 0 {
			return 1
		}
		total := 0.0
		for i, el := range structure.Elements {
			total += elementScore(el, children[i])
		}
		return total / float64(len(structure.Elements))
	case StructureChoice:
		best := 0.0
		for _, el := range structure.Elements {
			for _, child := range children {
				if s := elementScore(el, child); s > best {
					best = s
				}
			}
		}
		return best
	case StructureOptional:
		if len(children) == 0 || len(structure.Elements) == 0 {
			return 1
		}
		return elementScore(structure.Elements[0], children[0])
	case StructureRepetition:
		if len(structure.Elements) == 0 {
			return 0
		}
		if len(children) == 0 {
			return 1
		}
		total := 0.0
		for _, child := range children {
			total += elementScore(structure.Elements[0], child)
		}
		return total / float64(len(children))
	default:
		return 0
	}
}

// elementScore rates one pattern slot against one concrete child.
func elementScore(el PatternElement, child *ast.Node) float64 {
	var score float64
	switch el.Kind {
	case ElementWildcard, ElementVariable:
		score = 1
	case ElementNode:
		if el.Value == string(child.Type) {
			score = 1
		}
	case ElementLiteral:
		if el.Value == child.Value {
			score = 1
		}
	}
	if score == 0 || len(el.Constraints) == 0 {
		return score
	}
	return score * constraintRatio(el.Constraints, child)
}

// constraintRatio is the fraction of constraints that evaluate true against
// the node. An empty constraint list is trivially satisfied.
func constraintRatio(constraints []PatternConstraint, node *ast.Node) float64 {
	if len(constraints) == 0 {
		return 1
	}
	satisfied := 0
	for _, c := range constraints {
		if EvalConstraint(c, node) {
			satisfied++
		}
	}
	return float64(satisfied) / float64(len(constraints))
}

// EvalConstraint applies one constraint predicate to a node.
func EvalConstraint(c PatternConstraint, node *ast.Node) bool {
	value, ok := ResolveProperty(node, c.Property)
	switch c.Operator {
	case OperatorExists:
		return ok
	case OperatorNotExists:
		return !ok
	case OperatorEquals:
		return ok && fmt.Sprint(value) == c.Value
	case OperatorContains:
		return ok && strings.Contains(fmt.Sprint(value), c.Value)
	case OperatorMatches:
		if !ok {
			return false
		}
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprint(value))
	default:
		return false
	}
}

// ResolveProperty walks a dotted path against a node. The first segment may
// name an intrinsic field (type, value, id) or an attribute; deeper segments
// descend into nested attribute maps.
func ResolveProperty(node *ast.Node, path string) (interface{}, bool) {
	if node == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current interface{}
	switch segments[0] {
	case "type", "nodeType":
		current = string(node.Type)
	case "value":
		current = node.Value
	case "id":
		current = node.ID
	default:
		v, ok := node.Attr(segments[0])
		if !ok {
			return nil, false
		}
		current = v
	}
	for _, seg := range segments[1:] {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (m *Matcher) semanticScore(p *TranslationPattern, node *ast.Node) float64 {
	idScore := jaccard(patternIdentifiers(p.SourcePattern), ast.Identifiers(node))
	typeScore := TypeCompatibility(p.SourcePattern.NodeType, string(node.Type))
	opScore := jaccard(patternOperations(p.SourcePattern), ast.Operations(node))
	cfScore := jaccard(patternControlFlow(p.SourcePattern), controlFlowSet(node))
	return Clamp01(semanticIdentifierWeight*idScore +
		semanticTypeWeight*typeScore +
		semanticOperationWeight*opScore +
		semanticControlFlowWeight*cfScore)
}

func (m *Matcher) contextScore(p *TranslationPattern, node *ast.Node) float64 {
	usage := float64(p.UsageCount) / usageSaturation
	if usage > 1 {
		usage = 1
	}
	return Clamp01(contextUsageWeight*usage +
		contextSuccessWeight*p.SuccessRate +
		contextComplexityWeight*complexityMatch(p.Metadata.Complexity, ast.Complexity(node)))
}

func complexityMatch(patternComplexity, nodeComplexity int) float64 {
	diff := patternComplexity - nodeComplexity
	if diff < 0 {
		diff = -diff
	}
	score := 1 - float64(diff)/10
	if score < 0 {
		return 0
	}
	return score
}

// typeFamilies is the fixed compatibility hierarchy. Exact matches score
// 1.0, members of the same family 0.7, anything else 0.
var typeFamilies = map[string]string{
	"Identifier":           "Expression",
	"Literal":              "Expression",
	"BinaryExpression":     "Expression",
	"UnaryExpression":      "Expression",
	"CallExpression":       "Expression",
	"MemberExpression":     "Expression",
	"AssignmentExpression": "Expression",

	"IfStatement":         "Statement",
	"ForStatement":        "Statement",
	"WhileStatement":      "Statement",
	"DoWhileStatement":    "Statement",
	"SwitchStatement":     "Statement",
	"TryStatement":        "Statement",
	"ThrowStatement":      "Statement",
	"ReturnStatement":     "Statement",
	"ExpressionStatement": "Statement",
	"BlockStatement":      "Statement",

	"FunctionDeclaration": "Declaration",
	"ClassDeclaration":    "Declaration",
	"MethodDeclaration":   "Declaration",
	"VariableDeclaration": "Declaration",
}

// TypeCompatibility rates two node types: exact match, same family, or
// unrelated.
func TypeCompatibility(a, b string) float64 {
	if a == b {
		return 1
	}
	fa, okA := typeFamilies[a]
	fb, okB := typeFamilies[b]
	if okA && okB && fa == fb {
		return 0.7
	}
	return 0
}

// jaccard computes set similarity; two empty sets count as identical.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

func patternIdentifiers(p ASTPattern) map[string]bool {
	out := make(map[string]bool)
	for _, el := range p.Structure.Elements {
		if el.Kind == ElementLiteral && el.Value != "" {
			addDotted(out, el.Value)
		}
	}
	for _, v := range p.Variables {
		if v.Name != "" {
			out[v.Name] = true
		}
		if v.DefaultValue != "" {
			addDotted(out, v.DefaultValue)
		}
	}
	for _, c := range p.Constraints {
		if (c.Type == ConstraintTypeValue || c.Type == ConstraintTypeAttribute) && c.Value != "" {
			addDotted(out, c.Value)
		}
	}
	return out
}

func patternOperations(p ASTPattern) map[string]bool {
	out := make(map[string]bool)
	for _, c := range p.Constraints {
		if strings.HasSuffix(c.Property, "operator") && c.Value != "" {
			out[c.Value] = true
		}
	}
	for _, el := range p.Structure.Elements {
		for _, c := range el.Constraints {
			if strings.HasSuffix(c.Property, "operator") && c.Value != "" {
				out[c.Value] = true
			}
		}
	}
	return out
}

func patternControlFlow(p ASTPattern) map[string]bool {
	out := make(map[string]bool)
	if ast.IsControlFlow(ast.NodeType(p.NodeType)) {
		out[p.NodeType] = true
	}
	for _, el := range p.Structure.Elements {
		if el.Kind == ElementNode && ast.IsControlFlow(ast.NodeType(el.Value)) {
			out[el.Value] = true
		}
	}
	return out
}

func controlFlowSet(node *ast.Node) map[string]bool {
	out := make(map[string]bool)
	for t := range ast.ControlFlow(node) {
		out[string(t)] = true
	}
	return out
}

func addDotted(set map[string]bool, value string) {
	for _, tok := range strings.Split(value, ".") {
		if tok != "" {
			set[tok] = true
		}
	}
}

// bindVariables extracts advisory variable bindings: an attribute constraint
// on the variable resolves the value, otherwise the node's own value, then
// its type.
func bindVariables(p *TranslationPattern, node *ast.Node) map[string]string {
	if len(p.SourcePattern.Variables) == 0 {
		return nil
	}
	bindings := make(map[string]string, len(p.SourcePattern.Variables))
	for _, v := range p.SourcePattern.Variables {
		bound := false
		for _, c := range v.Constraints {
			if c.Type != ConstraintTypeAttribute {
				continue
			}
			if value, ok := ResolveProperty(node, c.Property); ok {
				bindings[v.Name] = fmt.Sprint(value)
				bound = true
				break
			}
		}
		if bound {
			continue
		}
		switch {
		case node.Value != "":
			bindings[v.Name] = node.Value
		default:
			bindings[v.Name] = string(node.Type)
		}
	}
	return bindings
}
