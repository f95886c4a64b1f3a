// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scheduler drives the partitioning of a graph for one backend, end to end.
//
// It stands in for the graph scheduler of a runtime: it applies the fusion transformers, runs the
// first partitioning phase, assigns the requested nodes to the backend and replaces each claim with
// a fused operator by a single node, moves the layout-sensitive operators of the backend to the
// channels-last (NHWC) domain, and then runs the second phase, again replacing the claims with a
// fused operator (QDQ groups) by a single node.
package scheduler

import (
	"slices"

	"github.com/gomlx/capgraph/backends"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/fusion"
	"github.com/gomlx/capgraph/pkg/partition"
	"github.com/gomlx/capgraph/pkg/partition/claims"
	"github.com/gomlx/capgraph/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultLayoutSensitiveOps are the operators moved to the NHWC domain once assigned to the backend.
var DefaultLayoutSensitiveOps = []string{"Conv", "MaxPool", "AveragePool"}

// Options for Run.
type Options struct {
	// SkipFusion disables the fusion transformers.
	SkipFusion bool

	// Transformers applied before partitioning. If nil, fusion.Default is used.
	Transformers []fusion.Transformer

	// Fusion options for the fixed-point driver.
	Fusion fusion.Options

	// LayoutSensitiveOps are moved to the NHWC domain when assigned to the backend.
	// If nil, DefaultLayoutSensitiveOps is used.
	LayoutSensitiveOps []string
}

// Result of Run. The graph given to Run is modified in place.
type Result struct {
	// Fused is true if the fusion transformers modified the graph.
	Fused bool

	// Requests of the first phase, referring to the node indices before any claim was replaced
	// by a fused node.
	Requests *partition.Requests

	// Claims of the second phase: the final claims, referring to the node indices before the
	// QDQ groups were replaced by a fused node.
	Claims []*claims.Claim

	// ClaimOpTypes lists the operator types of the nodes of each claim in Claims.
	ClaimOpTypes [][]string

	// Nodes assigned to the backend in the final graph, in index order.
	Nodes []graph.NodeIndex

	// MissingKernels lists the operators claimed for which the backend has no kernel registered,
	// and WithoutKernel the IDs of the claims they belong to.
	MissingKernels []string
	WithoutKernel  sets.Set[int]
}

// Run partitions the graph for the backend. See package documentation for the steps.
func Run(g *graph.Graph, backend backends.Backend, opts Options) (*Result, error) {
	result := &Result{}
	name := backend.Name()

	if !opts.SkipFusion {
		transformers := opts.Transformers
		if transformers == nil {
			transformers = fusion.Default(name)
		}
		var err error
		result.Fused, err = fusion.ApplyToFixedPoint(g, transformers, opts.Fusion)
		if err != nil {
			return nil, errors.WithMessagef(err, "scheduling graph %q for %q", g.Name(), name)
		}
	}

	p := partition.New(name, backend)
	requests, err := p.PreLayout(g)
	if err != nil {
		return nil, err
	}
	result.Requests = requests
	for _, idx := range requests.Nodes() {
		g.Node(idx).AssignBackend(name)
	}
	for _, c := range requests.Claims() {
		if c.MetaDef != nil {
			if _, err := Materialize(g, name, c); err != nil {
				return nil, err
			}
		}
	}

	layoutOps := opts.LayoutSensitiveOps
	if layoutOps == nil {
		layoutOps = DefaultLayoutSensitiveOps
	}
	TransformLayout(g, name, layoutOps)

	result.Claims, err = p.PostLayout(g, requests)
	if err != nil {
		return nil, err
	}
	result.MissingKernels, result.WithoutKernel = checkKernels(g, backend, result.Claims)
	for _, c := range result.Claims {
		opTypes := make([]string, 0, c.Len())
		for _, idx := range c.Nodes() {
			opTypes = append(opTypes, g.Node(idx).OpType)
		}
		result.ClaimOpTypes = append(result.ClaimOpTypes, opTypes)
	}
	for _, c := range result.Claims {
		if c.MetaDef != nil {
			if _, err := Materialize(g, name, c); err != nil {
				return nil, err
			}
		}
	}

	for _, node := range g.Nodes() {
		if node.Backend() == name {
			result.Nodes = append(result.Nodes, node.Index())
		}
	}
	klog.V(1).Infof("scheduler: graph %q, %d nodes assigned to %q in %d claims", g.Name(), len(result.Nodes), name, len(result.Claims))
	return result, nil
}

// Materialize replaces the nodes of the claim by one node described by its MetaDef, assigned to the
// backend. It returns the new node.
func Materialize(g *graph.Graph, backend string, c *claims.Claim) (*graph.Node, error) {
	meta := c.MetaDef
	if meta == nil {
		return nil, errors.Errorf("materialize %s: claim has no fused operator", c)
	}
	for _, idx := range c.Nodes() {
		if err := g.RemoveNode(idx); err != nil {
			return nil, errors.WithMessagef(err, "materialize %s", c)
		}
	}
	node, err := g.AddNode(graph.NodeDef{
		Name:         meta.Name,
		OpType:       meta.OpType,
		Domain:       meta.Domain,
		SinceVersion: meta.SinceVersion,
		Inputs:       slices.Clone(meta.Inputs),
		Outputs:      slices.Clone(meta.Outputs),
		Attributes:   meta.Attributes.Clone(),
		Backend:      backend,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "materialize %s", c)
	}
	klog.V(2).Infof("scheduler: %s materialized as %s", c, node)
	return node, nil
}

// TransformLayout moves the ONNX operators in opTypes assigned to the backend to the NHWC domain.
//
// It only renames the domain: the transposes a real layout transformation inserts don't matter
// for partitioning.
func TransformLayout(g *graph.Graph, backend string, opTypes []string) (moved int) {
	for _, node := range g.Nodes() {
		if node.Backend() != backend || node.Domain != graph.DomainONNX || !slices.Contains(opTypes, node.OpType) {
			continue
		}
		node.SetDomain(graph.DomainNHWC)
		moved++
	}
	klog.V(2).Infof("scheduler: %d nodes of %q moved to %s", moved, backend, graph.DomainNHWC)
	return moved
}

// checkKernels returns the operators of the claims the backend has no kernel for, logging a warning
// for each, and the IDs of those claims.
func checkKernels(g *graph.Graph, backend backends.Backend, list []*claims.Claim) (missing []string, ids sets.Set[int]) {
	caps := backend.Capabilities()
	ids = sets.Make[int]()
	check := func(c *claims.Claim, domain, opType string, version int) {
		if caps.HasKernel(domain, opType, version) {
			return
		}
		kernel := backends.KernelDef{OpType: opType, Domain: domain, SinceVersion: version, EndVersion: version}
		klog.Warningf("scheduler: %q has no kernel %s for %s", backend.Name(), kernel, c)
		missing = append(missing, kernel.String())
		ids.Insert(c.ID())
	}
	for _, c := range list {
		if c.MetaDef != nil {
			check(c, c.MetaDef.Domain, c.MetaDef.OpType, c.MetaDef.SinceVersion)
			continue
		}
		for _, idx := range c.Nodes() {
			node := g.Node(idx)
			check(c, node.Domain, node.OpType, node.SinceVersion)
		}
	}
	return missing, ids
}
