// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fusion implements structural rewrites of a graph: a chain of operators matching a Pattern
// is replaced by one fused node.
//
// Transformers are applied until nothing changes with ApplyToFixedPoint. A successful rewrite removes
// the matched nodes, so any node index taken before a call that reported a modification may be
// stale afterwards.
package fusion

import (
	"fmt"
	"slices"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/support/sets"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Transformer rewrites a graph in place.
type Transformer interface {
	// Name of the transformer, for logging.
	Name() string

	// Apply scans the graph once and returns whether it was modified.
	// Not finding anything to rewrite is not an error.
	Apply(g *graph.Graph) (modified bool, err error)
}

// Step is one operator of a Pattern.
type Step struct {
	// OpType the node must have.
	OpType string

	// Domains accepted for the node. If empty only DomainONNX is accepted.
	Domains []string

	// MinVersion is the minimum SinceVersion of the node, 0 for any.
	MinVersion int

	// Input is the input slot fed by output 0 of the previous step. Not used by the anchor.
	Input int

	// Check is an optional pre-condition on the node.
	Check func(node *graph.Node) bool
}

// Matches returns whether the node satisfies the step.
func (s Step) Matches(node *graph.Node) bool {
	if node.OpType != s.OpType || node.SinceVersion < s.MinVersion {
		return false
	}
	if len(s.Domains) == 0 {
		if node.Domain != graph.DomainONNX {
			return false
		}
	} else if !slices.Contains(s.Domains, node.Domain) {
		return false
	}
	return s.Check == nil || s.Check(node)
}

// Pattern is a chain of operators, each consuming output 0 of the previous one. The first step is
// the anchor.
type Pattern struct {
	Name  string
	Steps []Step

	// Fuse returns the definition of the node replacing the matched nodes, given in step order.
	// Its inputs, outputs and backend are set by the transformer.
	Fuse func(matched []*graph.Node) graph.NodeDef
}

// PatternTransformer replaces every match of a Pattern with one fused node.
type PatternTransformer struct {
	pattern  Pattern
	backends sets.Set[string]
}

var _ Transformer = (*PatternTransformer)(nil)

// NewPatternTransformer creates a transformer for the pattern.
//
// If compatibleBackends is given, only nodes unassigned or assigned to one of them are rewritten.
func NewPatternTransformer(pattern Pattern, compatibleBackends ...string) *PatternTransformer {
	if len(pattern.Steps) < 2 {
		exceptions.Panicf("fusion pattern %q needs at least 2 steps, got %d", pattern.Name, len(pattern.Steps))
	}
	return &PatternTransformer{pattern: pattern, backends: sets.MakeWith(compatibleBackends...)}
}

// Name implements Transformer.
func (t *PatternTransformer) Name() string { return t.pattern.Name }

// Apply implements Transformer.
func (t *PatternTransformer) Apply(g *graph.Graph) (modified bool, err error) {
	err = exceptions.TryCatch[error](func() {
		order, err := g.TopologicalOrder()
		if err != nil {
			panic(err)
		}
		for _, idx := range order {
			anchor := g.Node(idx)
			if anchor == nil {
				// Removed by a previous match.
				continue
			}
			matched := t.match(g, anchor)
			if matched == nil {
				continue
			}
			fused := t.replace(g, matched)
			klog.V(1).Infof("fusion %s: replaced %d nodes starting at #%d with %s", t.Name(), len(matched), idx, fused)
			modified = true
		}
	})
	if err != nil {
		return false, errors.WithMessagef(err, "fusion %s on graph %q", t.Name(), g.Name())
	}
	return modified, nil
}

func (t *PatternTransformer) isCompatible(node *graph.Node) bool {
	return len(t.backends) == 0 || !node.IsAssigned() || t.backends.Has(node.Backend())
}

// match returns the chain of nodes matching the pattern starting at anchor, or nil.
func (t *PatternTransformer) match(g *graph.Graph, anchor *graph.Node) []*graph.Node {
	steps := t.pattern.Steps
	if !steps[0].Matches(anchor) || !t.isCompatible(anchor) {
		return nil
	}
	matched := []*graph.Node{anchor}
	previous := anchor
	for _, step := range steps[1:] {
		if len(previous.Outputs()) != 1 {
			return nil
		}
		value := previous.Output(0)
		// The intermediate value disappears with the fusion.
		if g.IsGraphOutput(value) {
			return nil
		}
		next := g.SoleConsumer(value)
		if next == nil || next.Input(step.Input) != value || next.Backend() != anchor.Backend() {
			return nil
		}
		if !step.Matches(next) {
			return nil
		}
		matched = append(matched, next)
		previous = next
	}
	return matched
}

// replace removes the matched nodes and adds the fused node. It panics on errors.
func (t *PatternTransformer) replace(g *graph.Graph, matched []*graph.Node) *graph.Node {
	def := t.pattern.Fuse(matched)
	anchor, last := matched[0], matched[len(matched)-1]
	def.Inputs = slices.Clone(anchor.Inputs())
	for i, node := range matched[1:] {
		chained := t.pattern.Steps[i+1].Input
		for slot, input := range node.Inputs() {
			if slot != chained && input != "" {
				def.Inputs = append(def.Inputs, input)
			}
		}
	}
	def.Outputs = slices.Clone(last.Outputs())
	def.Backend = anchor.Backend()
	if def.Name == "" {
		def.Name = fmt.Sprintf("%s_%s", anchor.Name, t.pattern.Name)
	}
	for _, node := range matched {
		if err := g.RemoveNode(node.Index()); err != nil {
			panic(err)
		}
	}
	fused, err := g.AddNode(def)
	if err != nil {
		panic(err)
	}
	return fused
}
