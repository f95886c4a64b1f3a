package xnnpack

import (
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
)

// softmaxAxis returns the normalized softmax axis, or -1 if it's out of range.
//
// Up to opset 12 the default axis is 1 and the input is coerced to 2D around it; from opset 13 on
// the default is -1 and the softmax is computed along that single axis.
func softmaxAxis(unit *nodeunit.NodeUnit, rank int) int {
	defaultAxis := int64(-1)
	if unit.SinceVersion() < 13 {
		defaultAxis = 1
	}
	axis := int(unit.Node().Attributes.Int("axis", defaultAxis))
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return -1
	}
	return axis
}

// isSoftmaxSupported checks a Softmax, or a quantized Softmax in a QDQ group.
func isSoftmaxSupported(unit *nodeunit.NodeUnit) bool {
	if !isDTypeSupported(unit) {
		return false
	}
	shape := inputShape(unit, 0)
	rank := shape.Rank()
	if rank <= 0 {
		return false
	}
	axis := softmaxAxis(unit, rank)
	if axis < 0 {
		return false
	}
	// XNNPACK computes the softmax over the innermost dimension: from opset 13 on, the axis must be
	// the last one.
	if unit.SinceVersion() >= 13 {
		return axis == rank-1
	}
	return true
}
