package pattern

import "github.com/lexcodex/transmute/ast"

// Instantiate materializes a target node from the pattern's target template
// and the variable bindings captured during matching. Unresolved variables
// fall back to their declared defaults, then to the variable name itself.
func Instantiate(p *TranslationPattern, bindings map[string]string) *ast.Node {
	if p == nil {
		return nil
	}
	target := p.TargetPattern
	root := ast.New(ast.NodeType(target.NodeType), "")
	for _, c := range target.Constraints {
		if c.Type == ConstraintTypeAttribute && c.Operator == OperatorEquals && c.Property != "" {
			root.SetAttr(c.Property, c.Value)
		}
	}

	defaults := make(map[string]string, len(target.Variables))
	for _, v := range target.Variables {
		defaults[v.Name] = v.DefaultValue
	}

	for _, el := range target.Elements() {
		switch el.Kind {
		case ElementNode:
			root.AddChild(ast.New(ast.NodeType(el.Value), ""))
		case ElementLiteral:
			root.AddChild(ast.New(ast.NodeTypeLiteral, el.Value))
		case ElementVariable:
			value, ok := bindings[el.Value]
			if !ok {
				value = defaults[el.Value]
			}
			if value == "" {
				value = el.Value
			}
			root.AddChild(ast.New(ast.NodeTypeIdentifier, value))
		case ElementWildcard:
			// Wildcards carry no target content.
		}
	}
	return root
}

// Elements exposes the ordered slots of the pattern structure.
func (p ASTPattern) Elements() []PatternElement {
	return p.Structure.Elements
}
