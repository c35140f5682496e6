package ast

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Node is the concrete syntax-tree unit the translation engine consumes.
// The engine never mutates a source node; target nodes are built fresh.
type Node struct {
	ID         string                 `json:"id"`
	Type       NodeType               `json:"type"`
	Value      string                 `json:"value,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	StartLine  int                    `json:"start_line"`
	StartCol   int                    `json:"start_col"`
	EndLine    int                    `json:"end_line"`
	EndCol     int                    `json:"end_col"`
	Children   []*Node                `json:"children,omitempty"`

	parent *Node
}

// NodeType enumerates supported node kinds.
type NodeType string

const (
	NodeTypeProgram NodeType = "Program"

	NodeTypeFunctionDeclaration NodeType = "FunctionDeclaration"
	NodeTypeClassDeclaration    NodeType = "ClassDeclaration"
	NodeTypeMethodDeclaration   NodeType = "MethodDeclaration"
	NodeTypeVariableDeclaration NodeType = "VariableDeclaration"

	NodeTypeIfStatement         NodeType = "IfStatement"
	NodeTypeForStatement        NodeType = "ForStatement"
	NodeTypeWhileStatement      NodeType = "WhileStatement"
	NodeTypeDoWhileStatement    NodeType = "DoWhileStatement"
	NodeTypeSwitchStatement     NodeType = "SwitchStatement"
	NodeTypeTryStatement        NodeType = "TryStatement"
	NodeTypeThrowStatement      NodeType = "ThrowStatement"
	NodeTypeReturnStatement     NodeType = "ReturnStatement"
	NodeTypeExpressionStatement NodeType = "ExpressionStatement"
	NodeTypeBlockStatement      NodeType = "BlockStatement"

	NodeTypeIdentifier           NodeType = "Identifier"
	NodeTypeLiteral              NodeType = "Literal"
	NodeTypeBinaryExpression     NodeType = "BinaryExpression"
	NodeTypeUnaryExpression      NodeType = "UnaryExpression"
	NodeTypeCallExpression       NodeType = "CallExpression"
	NodeTypeMemberExpression     NodeType = "MemberExpression"
	NodeTypeAssignmentExpression NodeType = "AssignmentExpression"
)

// New builds a node with a fresh identity.
func New(nodeType NodeType, value string) *Node {
	return &Node{
		ID:    NewID(),
		Type:  nodeType,
		Value: value,
	}
}

// NewID returns a random hex identifier, falling back to a timestamp when
// the entropy source is unavailable.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// AddChild appends child and records this node as its parent.
func (n *Node) AddChild(child *Node) *Node {
	if child == nil {
		return n
	}
	child.parent = n
	n.Children = append(n.Children, child)
	return n
}

// Parent returns the enclosing node, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// SetAttr sets a named attribute, allocating the map on first use.
func (n *Node) SetAttr(key string, value interface{}) *Node {
	if n.Attributes == nil {
		n.Attributes = make(map[string]interface{})
	}
	n.Attributes[key] = value
	return n
}

// Attr reads a named attribute.
func (n *Node) Attr(key string) (interface{}, bool) {
	if n.Attributes == nil {
		return nil, false
	}
	v, ok := n.Attributes[key]
	return v, ok
}

// Rebind restores parent pointers after deserialization. JSON round trips
// drop them because only the child direction is marshaled.
func (n *Node) Rebind() {
	if n == nil {
		return
	}
	for _, child := range n.Children {
		child.parent = n
		child.Rebind()
	}
}

// Clone deep-copies the subtree. Parent pointers inside the copy are
// rebound; the copy's root has no parent.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:        n.ID,
		Type:      n.Type,
		Value:     n.Value,
		StartLine: n.StartLine,
		StartCol:  n.StartCol,
		EndLine:   n.EndLine,
		EndCol:    n.EndCol,
	}
	if n.Attributes != nil {
		out.Attributes = make(map[string]interface{}, len(n.Attributes))
		for k, v := range n.Attributes {
			out.Attributes[k] = v
		}
	}
	for _, child := range n.Children {
		out.AddChild(child.Clone())
	}
	return out
}
