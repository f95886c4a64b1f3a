// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package partition finds the subgraphs of a graph one backend takes.
//
// Partitioning runs in two phases around the layout transformation, each an explicit entry point:
//
//   - PreLayout visits the unassigned nodes in topological order and requests every node unit the
//     backend supports, one single-node claim per node. Trailing Relu/Clip activations are fused into
//     the claim of their already claimed producer. The result is a *Requests.
//   - The caller then assigns the requested nodes to the backend and transforms their layout.
//   - PostLayout takes the *Requests and visits the nodes assigned to the backend: plain nodes get a
//     single-node claim, and each QDQ group one claim with a QLinear operator replacing it.
//
// # Error Handling
//
// An unsupported node is not an error: it's left for other backends. Inconsistencies between the
// Oracle answers and the claims bookkeeping (a node claimed twice, an activation fused onto an
// unclaimed producer, a unit decided twice) abort the pass with a *claims.Violation, and no claims
// are returned.
package partition

import (
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/gomlx/capgraph/pkg/partition/claims"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Phase of the partitioning.
type Phase int

const (
	// PhasePreLayout is the tentative claiming, before the layout transformation.
	PhasePreLayout Phase = iota

	// PhasePostLayout is the final claiming, after the layout transformation.
	PhasePostLayout
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhasePreLayout:
		return "PreLayout"
	case PhasePostLayout:
		return "PostLayout"
	default:
		return "UnknownPhase"
	}
}

// Partitioner claims nodes of a graph for one backend.
type Partitioner struct {
	backend string
	oracle  Oracle

	// nodeUnits groups the nodes of the graph, nodeunit.GetAllNodeUnits by default.
	nodeUnits func(g *graph.Graph) ([]*nodeunit.NodeUnit, map[graph.NodeIndex]*nodeunit.NodeUnit, error)
}

// New creates a Partitioner for the backend: backend is the tag of the nodes assigned to it, and
// oracle answers its support questions.
func New(backend string, oracle Oracle) *Partitioner {
	return &Partitioner{backend: backend, oracle: oracle, nodeUnits: nodeunit.GetAllNodeUnits}
}

// Backend returns the name of the backend the Partitioner claims nodes for.
func (p *Partitioner) Backend() string { return p.backend }

// Requests is the result of PreLayout: the nodes the backend wants, to be assigned to it by the
// caller before PostLayout. It can only be given to PostLayout once.
type Requests struct {
	backend  string
	graph    *graph.Graph
	claims   []*claims.Claim
	consumed bool
}

// Claims returns the claims requested, in creation order.
func (r *Requests) Claims() []*claims.Claim { return r.claims }

// Nodes returns all requested nodes, in claim order.
func (r *Requests) Nodes() []graph.NodeIndex {
	var nodes []graph.NodeIndex
	for _, c := range r.claims {
		nodes = append(nodes, c.Nodes()...)
	}
	return nodes
}

// PreLayout runs the first phase on the graph, see package documentation.
func (p *Partitioner) PreLayout(g *graph.Graph) (*Requests, error) {
	var requests *Requests
	err := exceptions.TryCatch[error](func() {
		ps := p.newPass(g, PhasePreLayout)
		ps.preLayout()
		requests = &Requests{backend: p.backend, graph: g, claims: ps.registry.Claims()}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "partition %s for %q", PhasePreLayout, p.backend)
	}
	return requests, nil
}

// PostLayout runs the second phase on the graph, after the nodes in requests were assigned to the
// backend and their layout transformed. It returns the final claims.
func (p *Partitioner) PostLayout(g *graph.Graph, requests *Requests) ([]*claims.Claim, error) {
	switch {
	case requests == nil:
		return nil, errors.Errorf("partition %s for %q requires the result of %s", PhasePostLayout, p.backend, PhasePreLayout)
	case requests.backend != p.backend:
		return nil, errors.Errorf("partition %s for %q given the requests of backend %q",
			PhasePostLayout, p.backend, requests.backend)
	case requests.graph != g:
		return nil, errors.Errorf("partition %s for %q given the requests of another graph", PhasePostLayout, p.backend)
	case requests.consumed:
		return nil, errors.Errorf("partition %s for %q: requests already used", PhasePostLayout, p.backend)
	}
	requests.consumed = true

	var result []*claims.Claim
	err := exceptions.TryCatch[error](func() {
		ps := p.newPass(g, PhasePostLayout)
		ps.postLayout()
		result = ps.registry.Claims()
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "partition %s for %q", PhasePostLayout, p.backend)
	}
	return result, nil
}

// pass holds the state of one phase over one graph. Its methods panic on errors.
type pass struct {
	*Partitioner
	phase    Phase
	graph    *graph.Graph
	order    []graph.NodeIndex
	units    map[graph.NodeIndex]*nodeunit.NodeUnit
	registry *claims.Registry
}

func (p *Partitioner) newPass(g *graph.Graph, phase Phase) *pass {
	order, err := g.TopologicalOrder()
	if err != nil {
		panic(err)
	}
	_, units, err := p.nodeUnits(g)
	if err != nil {
		panic(err)
	}
	return &pass{
		Partitioner: p,
		phase:       phase,
		graph:       g,
		order:       order,
		units:       units,
		registry:    claims.NewRegistry(),
	}
}

// check panics with err, if not nil. The entry points convert the panic back to an error.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

func (ps *pass) preLayout() {
	var numFused int
	for _, idx := range ps.order {
		node := ps.graph.Node(idx)
		if node.IsAssigned() {
			continue
		}
		unit := ps.units[idx]
		if ps.registry.IsDecided(unit.Index()) {
			continue
		}

		var accepted bool
		if ps.oracle.IsUnitSupported(unit) {
			ps.request(unit)
			accepted = true
		} else if unit.UnitType() != nodeunit.QDQGroup {
			if target := ps.oracle.IsFusableWithActivation(node); target != nil {
				ps.fuseActivation(target, node)
				accepted = true
				numFused++
			}
		}
		check(ps.registry.Decide(unit.Index(), accepted))
	}
	klog.V(1).Infof("partition %s for %q: %d claims, %d nodes requested, %d activations fused, %d units decided",
		ps.phase, ps.backend, len(ps.registry.Claims()), ps.registry.NumClaimed(), numFused, ps.registry.NumDecided())
}

// request creates one single-node claim for each node of the unit.
func (ps *pass) request(unit *nodeunit.NodeUnit) {
	for _, member := range unit.Nodes() {
		_, err := ps.registry.Request(member.Index())
		check(err)
	}
	klog.V(2).Infof("partition %s for %q: requested %s", ps.phase, ps.backend, unit)
}

// fuseActivation extends the claim of target with the activation node.
func (ps *pass) fuseActivation(target, activation *graph.Node) {
	c, err := ps.registry.Extend(target.Index(), activation.Index())
	check(err)
	meta, err := FuseActivation(ps.backend, target, activation)
	check(err)
	c.MetaDef = meta
	c.UseExistingSchema = true
	klog.V(2).Infof("partition %s for %q: fused %s onto %s", ps.phase, ps.backend, activation, target)
}

func (ps *pass) postLayout() {
	var numGroups int
	for _, idx := range ps.order {
		node := ps.graph.Node(idx)
		if node.Backend() != ps.backend {
			continue
		}
		unit := ps.units[idx]
		if ps.registry.IsDecided(unit.Index()) {
			continue
		}
		if unit.UnitType() == nodeunit.QDQGroup {
			c := ps.registry.NewClaim()
			for _, member := range unit.Nodes() {
				check(ps.registry.Insert(c, member.Index()))
			}
			c.MetaDef = FuseQDQGroup(ps.backend, unit)
			c.UseExistingSchema = true
			numGroups++
			klog.V(2).Infof("partition %s for %q: %s fused as %s", ps.phase, ps.backend, unit, c.MetaDef.OpType)
		} else {
			_, err := ps.registry.Request(idx)
			check(err)
		}
		check(ps.registry.Decide(unit.Index(), true))
	}
	klog.V(1).Infof("partition %s for %q: %d claims, %d QDQ groups, %d nodes claimed",
		ps.phase, ps.backend, len(ps.registry.Claims()), numGroups, ps.registry.NumClaimed())
}
