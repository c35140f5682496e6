// Package validate performs structural checks on proposed AST manipulations.
// Findings are reported as LSP diagnostics so every surface (HTTP API, RPC
// server, TUI) renders them the same way editors do.
package validate

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/session"
)

// Source tags diagnostics produced by this package.
const Source = "transmute"

// Structural validates replacement nodes before they are installed into a
// session's target tree. Validation is advisory: callers surface findings to
// the user but never block on them.
type Structural struct {
	// MaxDepth bounds tree nesting; zero means no limit.
	MaxDepth int
}

var _ session.Validator = (*Structural)(nil)

// ValidateManipulation checks the manipulation's replacement node and folds
// error-severity findings into the result.
func (v *Structural) ValidateManipulation(_ context.Context, m session.Manipulation) session.ValidationResult {
	diags := v.Check(m.NewNode)
	result := session.ValidationResult{IsValid: true}
	for _, d := range diags {
		if d.Severity == protocol.DiagnosticSeverityError {
			result.IsValid = false
			result.Errors = append(result.Errors, d.Message)
		}
	}
	return result
}

// Check walks the node and collects structural findings as diagnostics.
func (v *Structural) Check(node *ast.Node) []protocol.Diagnostic {
	if node == nil {
		return []protocol.Diagnostic{diag(protocol.DiagnosticSeverityError, nil, "replacement node is missing")}
	}
	var diags []protocol.Diagnostic
	v.check(node, 1, &diags)
	return diags
}

func (v *Structural) check(node *ast.Node, depth int, diags *[]protocol.Diagnostic) {
	if v.MaxDepth > 0 && depth > v.MaxDepth {
		*diags = append(*diags, diag(protocol.DiagnosticSeverityWarning, node,
			fmt.Sprintf("node nesting exceeds depth %d", v.MaxDepth)))
		return
	}
	if node.Type == "" {
		*diags = append(*diags, diag(protocol.DiagnosticSeverityError, node, "node has no type"))
	}

	switch node.Type {
	case ast.NodeTypeIfStatement, ast.NodeTypeForStatement, ast.NodeTypeWhileStatement,
		ast.NodeTypeDoWhileStatement, ast.NodeTypeSwitchStatement:
		if len(node.Children) == 0 {
			*diags = append(*diags, diag(protocol.DiagnosticSeverityWarning, node,
				fmt.Sprintf("%s has no body", node.Type)))
		}
	case ast.NodeTypeBinaryExpression:
		if len(node.Children) != 2 {
			*diags = append(*diags, diag(protocol.DiagnosticSeverityError, node,
				fmt.Sprintf("binary expression has %d operands, want 2", len(node.Children))))
		}
	case ast.NodeTypeAssignmentExpression:
		if len(node.Children) < 2 {
			*diags = append(*diags, diag(protocol.DiagnosticSeverityError, node,
				"assignment is missing a side"))
		}
	case ast.NodeTypeIdentifier:
		if node.Value == "" {
			*diags = append(*diags, diag(protocol.DiagnosticSeverityError, node, "identifier has no name"))
		}
	}

	if node.EndLine > 0 && node.EndLine < node.StartLine {
		*diags = append(*diags, diag(protocol.DiagnosticSeverityWarning, node, "node span ends before it starts"))
	}

	for _, child := range node.Children {
		if child == nil {
			*diags = append(*diags, diag(protocol.DiagnosticSeverityError, node, "node has a nil child"))
			continue
		}
		v.check(child, depth+1, diags)
	}
}

func diag(severity protocol.DiagnosticSeverity, node *ast.Node, message string) protocol.Diagnostic {
	d := protocol.Diagnostic{
		Severity: severity,
		Source:   Source,
		Message:  message,
	}
	if node != nil && node.StartLine > 0 {
		d.Range = protocol.Range{
			Start: protocol.Position{Line: uint32(node.StartLine - 1), Character: uint32(node.StartCol)},
			End:   protocol.Position{Line: uint32(max(node.EndLine, node.StartLine) - 1), Character: uint32(node.EndCol)},
		}
	}
	return d
}
