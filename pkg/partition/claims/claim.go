// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package claims holds the bookkeeping of graph partitioning: the claims (sets of nodes) a backend
// takes, which node belongs to which claim, and which node units were already decided.
//
// All methods that could break an invariant return a *Violation (wrapped with a stack trace), see
// ErrDuplicateNode and friends.
package claims

import (
	"fmt"
	"strings"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/support/sets"
)

// MetaDef describes the single operator that replaces the nodes of a claim.
type MetaDef struct {
	Name         string
	OpType       string
	Domain       string
	SinceVersion int
	Inputs       []string
	Outputs      []string
	Attributes   graph.Attributes
}

// String implements fmt.Stringer.
func (m *MetaDef) String() string {
	op := m.OpType
	if m.Domain != graph.DomainONNX {
		op = m.Domain + "." + op
	}
	return fmt.Sprintf("%s:%s(v%d)[%s] (%s) -> (%s)", m.Name, op, m.SinceVersion,
		graph.FormatAttributes(m.Attributes), strings.Join(m.Inputs, ", "), strings.Join(m.Outputs, ", "))
}

// Claim is an ordered set of nodes taken by one backend, optionally to be replaced by one fused
// operator (MetaDef).
//
// Nodes are only added through the Registry that created the claim.
type Claim struct {
	id    int
	nodes *sets.Ordered[graph.NodeIndex]

	// MetaDef is the fused operator replacing the claimed nodes, or nil if the nodes are executed
	// as they are.
	MetaDef *MetaDef

	// UseExistingSchema is set when MetaDef names an operator with a statically registered kernel,
	// as opposed to one to be compiled.
	UseExistingSchema bool
}

// ID of the claim within its Registry, in creation order.
func (c *Claim) ID() int { return c.id }

// Nodes returns a copy of the claimed node indices, in insertion order.
func (c *Claim) Nodes() []graph.NodeIndex { return c.nodes.Keys() }

// Len returns the number of claimed nodes.
func (c *Claim) Len() int { return c.nodes.Len() }

// Contains returns whether the node is part of the claim.
func (c *Claim) Contains(idx graph.NodeIndex) bool { return c.nodes.Has(idx) }

// String implements fmt.Stringer.
func (c *Claim) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "claim %d %v", c.id, c.nodes.Keys())
	if c.MetaDef != nil {
		_, _ = fmt.Fprintf(&sb, " fused as %s", c.MetaDef)
	}
	return sb.String()
}
