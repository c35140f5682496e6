package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/session"
)

func TestCheckAcceptsWellFormedTree(t *testing.T) {
	call := ast.New(ast.NodeTypeCallExpression, "")
	call.SetAttr("callee", "fmt.Println")
	call.AddChild(ast.New(ast.NodeTypeLiteral, "hello"))

	v := &Structural{}
	assert.Empty(t, v.Check(call))
}

func TestCheckFlagsMalformedNodes(t *testing.T) {
	bin := ast.New(ast.NodeTypeBinaryExpression, "+")
	bin.AddChild(ast.New(ast.NodeTypeLiteral, "1")) // missing right operand
	ifStmt := ast.New(ast.NodeTypeIfStatement, "")  // empty body
	root := ast.New(ast.NodeTypeBlockStatement, "")
	root.AddChild(bin)
	root.AddChild(ifStmt)
	root.AddChild(ast.New(ast.NodeTypeIdentifier, ""))

	v := &Structural{}
	diags := v.Check(root)
	require.Len(t, diags, 3)

	bySeverity := map[protocol.DiagnosticSeverity]int{}
	for _, d := range diags {
		assert.Equal(t, Source, d.Source)
		bySeverity[d.Severity]++
	}
	assert.Equal(t, 2, bySeverity[protocol.DiagnosticSeverityError])
	assert.Equal(t, 1, bySeverity[protocol.DiagnosticSeverityWarning])
}

func TestCheckReportsPositions(t *testing.T) {
	ident := ast.New(ast.NodeTypeIdentifier, "")
	ident.StartLine, ident.StartCol = 12, 4
	ident.EndLine, ident.EndCol = 12, 9

	diags := (&Structural{}).Check(ident)
	require.Len(t, diags, 1)
	assert.Equal(t, uint32(11), diags[0].Range.Start.Line)
	assert.Equal(t, uint32(4), diags[0].Range.Start.Character)
}

func TestCheckNilNode(t *testing.T) {
	diags := (&Structural{}).Check(nil)
	require.Len(t, diags, 1)
	assert.Equal(t, protocol.DiagnosticSeverityError, diags[0].Severity)
}

func TestMaxDepthStopsDescent(t *testing.T) {
	root := ast.New(ast.NodeTypeBlockStatement, "")
	cur := root
	for i := 0; i < 5; i++ {
		next := ast.New(ast.NodeTypeBlockStatement, "")
		cur.AddChild(next)
		cur = next
	}
	diags := (&Structural{MaxDepth: 3}).Check(root)
	require.Len(t, diags, 1)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[0].Severity)
}

func TestValidateManipulationFoldsErrors(t *testing.T) {
	bad := ast.New(ast.NodeTypeBinaryExpression, "+")
	v := &Structural{}
	result := v.ValidateManipulation(context.Background(), session.Manipulation{
		Type:    session.ManipulationReplaceNode,
		NewNode: bad,
	})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)

	good := ast.New(ast.NodeTypeLiteral, "1")
	result = v.ValidateManipulation(context.Background(), session.Manipulation{
		Type:    session.ManipulationReplaceNode,
		NewNode: good,
	})
	assert.True(t, result.IsValid)
}
