package xnnpack

import (
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/gomlx/gopjrt/dtypes"
)

// isConvSupported checks a Conv, or a quantized Conv in a QDQ group.
func isConvSupported(unit *nodeunit.NodeUnit) bool {
	if !isDTypeSupported(unit) {
		return false
	}
	node := unit.Node()
	g := node.Graph()

	shape := inputShape(unit, 0)
	if shape.Rank() != 4 || !shape[1].IsStatic() {
		return false
	}
	channels := int64(shape[1].Value)

	// Weights must be constant: the kernel packs them when it's created.
	inputs := unit.Inputs()
	if len(inputs) < 2 {
		return false
	}
	weights := g.Initializer(inputs[1].Name)
	if weights == nil || len(weights.Dims) != 4 {
		return false
	}
	if unit.UnitType() == nodeunit.QDQGroup && weights.DType != dtypes.Uint8 && weights.DType != dtypes.Int8 {
		return false
	}
	if len(inputs) > 2 && inputs[2].Name != "" && !g.IsConstant(inputs[2].Name) {
		return false
	}

	attrs := node.Attributes
	if !isPaddingSupported(attrs) {
		return false
	}
	if kernel := attrs.Ints("kernel_shape"); kernel != nil && len(kernel) != 2 {
		return false
	}
	// Regular or depthwise convolutions only.
	group := attrs.Int("group", 1)
	return group == 1 || (group == channels && weights.Dims[1] == 1)
}
