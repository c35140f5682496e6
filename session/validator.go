package session

import (
	"context"

	"github.com/lexcodex/transmute/ast"
)

// ManipulationType enumerates supported tree manipulations.
type ManipulationType string

// ManipulationReplaceNode swaps a source node for a freshly built target.
const ManipulationReplaceNode ManipulationType = "replace-node"

// Manipulation describes a proposed change for advisory validation.
type Manipulation struct {
	Type       ManipulationType `json:"type"`
	TargetNode *ast.Node        `json:"target_node"`
	NewNode    *ast.Node        `json:"new_node"`
}

// ValidationResult reports advisory findings. Failures never abort a step;
// they surface as warnings on the telemetry stream.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// Validator checks structural validity of accepted or modified targets.
type Validator interface {
	ValidateManipulation(ctx context.Context, m Manipulation) ValidationResult
}
