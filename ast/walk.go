package ast

import "strings"

// Walk visits the subtree rooted at n in pre-order, depth-first. The visit
// function returns false to stop descending into the current node's children.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range n.Children {
		Walk(child, visit)
	}
}

// controlFlowTypes is the fixed set of node kinds treated as control flow
// for complexity and similarity purposes.
var controlFlowTypes = map[NodeType]bool{
	NodeTypeIfStatement:      true,
	NodeTypeForStatement:     true,
	NodeTypeWhileStatement:   true,
	NodeTypeDoWhileStatement: true,
	NodeTypeSwitchStatement:  true,
	NodeTypeTryStatement:     true,
	NodeTypeThrowStatement:   true,
	NodeTypeReturnStatement:  true,
}

// IsControlFlow reports whether the node type participates in control flow.
func IsControlFlow(t NodeType) bool { return controlFlowTypes[t] }

// Complexity measures structural weight: one per node, plus two for every
// control-flow node in the subtree.
func Complexity(n *Node) int {
	if n == nil {
		return 0
	}
	c := 1
	if IsControlFlow(n.Type) {
		c += 2
	}
	for _, child := range n.Children {
		c += Complexity(child)
	}
	return c
}

// Identifiers collects identifier names and literal values from the subtree.
// Dotted member chains contribute each segment separately.
func Identifiers(n *Node) map[string]bool {
	out := make(map[string]bool)
	Walk(n, func(node *Node) bool {
		switch node.Type {
		case NodeTypeIdentifier, NodeTypeLiteral:
			addTokens(out, node.Value)
		case NodeTypeMemberExpression, NodeTypeCallExpression:
			addTokens(out, node.Value)
			if callee, ok := node.Attr("callee"); ok {
				if s, ok := callee.(string); ok {
					addTokens(out, s)
				}
			}
			if name, ok := node.Attr("name"); ok {
				if s, ok := name.(string); ok {
					addTokens(out, s)
				}
			}
		default:
			if name, ok := node.Attr("name"); ok {
				if s, ok := name.(string); ok {
					addTokens(out, s)
				}
			}
		}
		return true
	})
	return out
}

// Operations collects operator and attribute tokens from the subtree.
func Operations(n *Node) map[string]bool {
	out := make(map[string]bool)
	Walk(n, func(node *Node) bool {
		if op, ok := node.Attr("operator"); ok {
			if s, ok := op.(string); ok && s != "" {
				out[s] = true
			}
		}
		switch node.Type {
		case NodeTypeBinaryExpression, NodeTypeUnaryExpression, NodeTypeAssignmentExpression:
			if node.Value != "" {
				out[node.Value] = true
			}
		}
		return true
	})
	return out
}

// ControlFlow collects the control-flow node types present in the subtree.
func ControlFlow(n *Node) map[NodeType]bool {
	out := make(map[NodeType]bool)
	Walk(n, func(node *Node) bool {
		if IsControlFlow(node.Type) {
			out[node.Type] = true
		}
		return true
	})
	return out
}

func addTokens(set map[string]bool, value string) {
	for _, tok := range strings.FieldsFunc(value, func(r rune) bool { return r == '.' }) {
		if tok != "" {
			set[tok] = true
		}
	}
}
