package xnnpack

import (
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/gomlx/gopjrt/dtypes"
)

// isAveragePoolSupported checks an AveragePool, or a quantized AveragePool in a QDQ group.
func isAveragePoolSupported(unit *nodeunit.NodeUnit) bool {
	if unit.UnitType() == nodeunit.QDQGroup && len(unit.Inputs()) != 1 {
		return false
	}
	if !isDTypeSupported(unit) {
		return false
	}

	// Only 2D pooling (4 dims with batch and channel), and C, H, W must be known so the kernel can
	// be built ahead of execution.
	shape := inputShape(unit, 0)
	if shape.Rank() != 4 || !shape[1].IsStatic() || !shape[2].IsStatic() || !shape[3].IsStatic() {
		return false
	}

	attrs := unit.Node().Attributes
	// There is no way to round the output shape up.
	if attrs.Int("ceil_mode", 0) != 0 {
		return false
	}
	if !isPaddingSupported(attrs) {
		return false
	}
	// XNNPACK doesn't support 1x1 average pooling.
	return isKernel2D(attrs)
}

// isMaxPoolSupported checks a MaxPool. Quantized MaxPool is not supported as a QDQ group, since there
// is no QLinearMaxPool kernel, but MaxPool on uint8 tensors is.
func isMaxPoolSupported(unit *nodeunit.NodeUnit) bool {
	if unit.UnitType() == nodeunit.QDQGroup {
		return false
	}
	node := unit.Node()
	g := node.Graph()
	info := g.ValueInfo(node.Input(0))
	if info == nil || (info.DType != dtypes.Float32 && info.DType != dtypes.Uint8) {
		return false
	}
	shape := info.Shape
	if shape.Rank() != 4 || !shape[1].IsStatic() {
		return false
	}
	attrs := node.Attributes
	if !isKernel2D(attrs) || !isPaddingSupported(attrs) {
		return false
	}
	if attrs.Int("storage_order", 0) != 0 {
		return false
	}
	// The optional indices output is not supported.
	return numOutputs(node) == 1
}
