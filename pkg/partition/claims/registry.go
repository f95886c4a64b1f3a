// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package claims

import (
	"fmt"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/support/sets"
)

// Decision recorded for a node unit.
type Decision int

const (
	Undecided Decision = iota
	Accepted
	Rejected
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	switch d {
	case Undecided:
		return "Undecided"
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Registry owns the claims of one partitioning pass.
//
// Claims are kept in an arena, and a back-map records the one claim owning each node: a node can
// only be written to it once. It also memoizes the decision taken for each node unit, identified
// by the index of its target node.
//
// It is not safe for concurrent use.
type Registry struct {
	claims    []*Claim
	owner     map[graph.NodeIndex]int
	decisions map[graph.NodeIndex]Decision
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		owner:     make(map[graph.NodeIndex]int),
		decisions: make(map[graph.NodeIndex]Decision),
	}
}

// NewClaim creates an empty claim.
func (r *Registry) NewClaim() *Claim {
	c := &Claim{id: len(r.claims), nodes: sets.MakeOrdered[graph.NodeIndex]()}
	r.claims = append(r.claims, c)
	return c
}

// Insert appends the node to the claim and registers the claim as its owner.
//
// Inserting a node already in c fails with ErrDuplicateNode, and a node owned by another claim
// fails with ErrNodeAlreadyClaimed. Nothing is changed on failure.
func (r *Registry) Insert(c *Claim, idx graph.NodeIndex) error {
	if c.Contains(idx) {
		return newViolation(ErrDuplicateNode, idx, c.id)
	}
	if owner, found := r.owner[idx]; found {
		return newViolation(ErrNodeAlreadyClaimed, idx, owner)
	}
	c.nodes.Insert(idx)
	r.owner[idx] = c.id
	return nil
}

// Request creates a claim with the single node.
func (r *Registry) Request(idx graph.NodeIndex) (*Claim, error) {
	if owner, found := r.owner[idx]; found {
		return nil, newViolation(ErrNodeAlreadyClaimed, idx, owner)
	}
	c := r.NewClaim()
	if err := r.Insert(c, idx); err != nil {
		return nil, err
	}
	return c, nil
}

// Extend adds node idx to the claim owning target, and returns that claim.
//
// It fails with ErrFusionTargetNotClaimed if target has no claim, or with the errors of Insert.
func (r *Registry) Extend(target, idx graph.NodeIndex) (*Claim, error) {
	c := r.ClaimOf(target)
	if c == nil {
		return nil, newViolation(ErrFusionTargetNotClaimed, idx, -1)
	}
	if err := r.Insert(c, idx); err != nil {
		return nil, err
	}
	return c, nil
}

// ClaimOf returns the claim owning the node, or nil.
func (r *Registry) ClaimOf(idx graph.NodeIndex) *Claim {
	id, found := r.owner[idx]
	if !found {
		return nil
	}
	return r.claims[id]
}

// IsClaimed returns whether some claim owns the node.
func (r *Registry) IsClaimed(idx graph.NodeIndex) bool {
	_, found := r.owner[idx]
	return found
}

// Decision returns the decision recorded for the unit, Undecided if none.
func (r *Registry) Decision(unit graph.NodeIndex) Decision {
	return r.decisions[unit]
}

// IsDecided returns whether a decision was recorded for the unit.
func (r *Registry) IsDecided(unit graph.NodeIndex) bool {
	return r.decisions[unit] != Undecided
}

// Decide records the decision for the unit. Recording the same decision again is a no-op, while a
// different one fails with ErrConflictingDecision.
func (r *Registry) Decide(unit graph.NodeIndex, accepted bool) error {
	decision := Rejected
	if accepted {
		decision = Accepted
	}
	previous := r.decisions[unit]
	if previous != Undecided && previous != decision {
		return newViolation(ErrConflictingDecision, unit, -1)
	}
	r.decisions[unit] = decision
	return nil
}

// NumDecided returns the number of units with a recorded decision.
func (r *Registry) NumDecided() int { return len(r.decisions) }

// Claims returns the non-empty claims, in creation order.
func (r *Registry) Claims() []*Claim {
	claims := make([]*Claim, 0, len(r.claims))
	for _, c := range r.claims {
		if c.Len() > 0 {
			claims = append(claims, c)
		}
	}
	return claims
}

// NumClaimed returns the number of claimed nodes.
func (r *Registry) NumClaimed() int { return len(r.owner) }
