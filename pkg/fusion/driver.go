// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fusion

import (
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultMaxSteps is the default limit of rounds of ApplyToFixedPoint.
const DefaultMaxSteps = 10

// Options for ApplyToFixedPoint.
type Options struct {
	// MaxSteps is the maximum number of rounds over all transformers. If <= 0, DefaultMaxSteps is used.
	MaxSteps int
}

// ApplyToFixedPoint applies the transformers in rounds, until a round leaves the graph unchanged or
// the limit of rounds is reached. It returns whether the graph was modified.
//
// Hitting the limit is not an error: the graph is valid, only possibly not fully fused.
func ApplyToFixedPoint(g *graph.Graph, transformers []Transformer, opts Options) (modified bool, err error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	for step := range maxSteps {
		var roundModified bool
		for _, t := range transformers {
			changed, err := t.Apply(g)
			if err != nil {
				return modified, errors.WithMessagef(err, "round %d of graph transformations", step)
			}
			if changed {
				klog.V(2).Infof("fusion round %d: %s modified graph %q", step, t.Name(), g.Name())
			}
			roundModified = roundModified || changed
		}
		if !roundModified {
			klog.V(1).Infof("fusion: graph %q reached a fixed point after %d round(s)", g.Name(), step+1)
			return modified, nil
		}
		modified = true
	}
	klog.Warningf("fusion: graph %q still changing after %d rounds, stopping", g.Name(), maxSteps)
	return modified, nil
}
