// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partition

import (
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
)

// Oracle answers the support questions of one backend. backends.Backend implements it.
type Oracle interface {
	// IsUnitSupported returns whether the backend can execute the unit natively.
	IsUnitSupported(unit *nodeunit.NodeUnit) bool

	// IsFusableWithActivation returns the producer node the activation node can be fused onto, or nil.
	// The producer must be an unassigned node the backend supports, so it's claimed before the
	// activation is visited.
	IsFusableWithActivation(node *graph.Node) *graph.Node
}
