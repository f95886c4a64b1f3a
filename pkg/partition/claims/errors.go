// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package claims

import (
	"fmt"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// Kinds of Violation. Use errors.Is to test for them.
var (
	// ErrDuplicateNode is returned when a node is inserted twice in the same claim.
	ErrDuplicateNode = errors.New("node inserted twice in the same claim")

	// ErrNodeAlreadyClaimed is returned when a node owned by one claim is inserted in another.
	ErrNodeAlreadyClaimed = errors.New("node already belongs to another claim")

	// ErrFusionTargetNotClaimed is returned when a node is fused onto a producer that has no claim.
	ErrFusionTargetNotClaimed = errors.New("fusion target has no claim")

	// ErrConflictingDecision is returned when a unit is decided twice with different outcomes.
	ErrConflictingDecision = errors.New("unit decided twice with conflicting outcomes")
)

// Violation of the claim bookkeeping invariants. It means the support checks and the bookkeeping of
// the partitioning disagree, and the pass that hit it must be aborted.
type Violation struct {
	// Kind is one of the Err* sentinels of this package.
	Kind error

	// Node is the index of the offending node.
	Node graph.NodeIndex

	// Claim is the id of the claim involved, or -1.
	Claim int
}

// Error implements the error interface.
func (v *Violation) Error() string {
	if v.Claim < 0 {
		return fmt.Sprintf("claim invariant violated at node #%d: %v", v.Node, v.Kind)
	}
	return fmt.Sprintf("claim invariant violated at node #%d (claim %d): %v", v.Node, v.Claim, v.Kind)
}

// Unwrap returns the Kind, so errors.Is works with the sentinels.
func (v *Violation) Unwrap() error { return v.Kind }

func newViolation(kind error, node graph.NodeIndex, claim int) error {
	return errors.WithStack(&Violation{Kind: kind, Node: node, Claim: claim})
}
