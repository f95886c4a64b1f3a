package xnnpack

import (
	"github.com/gomlx/capgraph/backends"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"k8s.io/klog/v2"
)

// fusionTargets are the operators whose XNNPACK kernels take output min/max clamp values.
var fusionTargets = map[string]bool{
	"Conv":        true,
	"AveragePool": true,
	"MaxPool":     true,
}

// IsFusableWithActivation returns the producer a Relu or Clip node can be fused onto: a supported
// and still unassigned Conv, AveragePool or MaxPool whose only use is the activation. It returns nil
// otherwise.
func (b *Backend) IsFusableWithActivation(node *graph.Node) *graph.Node {
	if b.noFusion || node.Domain != graph.DomainONNX {
		return nil
	}
	activation := backends.ActivationFromOpType(node.OpType)
	if activation == backends.ActivationNone {
		return nil
	}
	g := node.Graph()
	input := node.Input(0)
	producer := g.Producer(input)
	if producer == nil || producer.Domain != graph.DomainONNX || !fusionTargets[producer.OpType] {
		return nil
	}
	// Assigned nodes are skipped by the partitioner, so they never hold a claim to extend.
	if producer.IsAssigned() {
		return nil
	}
	// The producer's output can't be needed by anyone else once the activation is applied to it.
	if g.NumOutputEdges(producer) != 1 || g.SoleConsumer(input) != node || g.IsGraphOutput(input) {
		return nil
	}
	if activation == backends.ActivationClip && !areClipBoundsConstant(node) {
		return nil
	}
	if !b.IsUnitSupported(nodeunit.NewSingleNode(producer)) {
		return nil
	}
	klog.V(2).Infof("xnnpack: %s can be fused onto %s", node, producer)
	return producer
}

// areClipBoundsConstant returns whether the optional min and max inputs of a Clip (opset >= 11) are
// constants. Before opset 11 they are attributes.
func areClipBoundsConstant(node *graph.Node) bool {
	g := node.Graph()
	for _, bound := range []string{node.Input(1), node.Input(2)} {
		if bound == "" {
			continue
		}
		if _, ok := g.Initializer(bound).ScalarFloat(); !ok {
			return false
		}
	}
	return true
}
