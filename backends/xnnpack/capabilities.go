package xnnpack

import (
	"github.com/gomlx/capgraph/backends"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/gopjrt/dtypes"
)

var uint8Only = []dtypes.DType{dtypes.Uint8}

// Capabilities of the XNNPACK backend: the registered kernels and the supported data types.
//
// Layout-sensitive operators are registered in the NHWC domain, since they are only executed
// after the layout transformation.
var Capabilities = backends.Capabilities{
	Kernels: []backends.KernelDef{
		{OpType: "Conv", Domain: graph.DomainNHWC, SinceVersion: 11},
		{OpType: "QLinearConv", Domain: graph.DomainNHWC, SinceVersion: 10, DTypes: uint8Only},
		{OpType: "MaxPool", Domain: graph.DomainNHWC, SinceVersion: 11, EndVersion: 11},
		{OpType: "MaxPool", Domain: graph.DomainNHWC, SinceVersion: 12},
		{OpType: "AveragePool", Domain: graph.DomainNHWC, SinceVersion: 7, EndVersion: 7},
		{OpType: "AveragePool", Domain: graph.DomainNHWC, SinceVersion: 11},
		{OpType: "QLinearAveragePool", Domain: graph.DomainMicrosoft, SinceVersion: 1, DTypes: uint8Only},
		{OpType: "Softmax", Domain: graph.DomainONNX, SinceVersion: 1, EndVersion: 11},
		{OpType: "Softmax", Domain: graph.DomainONNX, SinceVersion: 12},
		{OpType: "QLinearSoftmax", Domain: graph.DomainMicrosoft, SinceVersion: 1, EndVersion: 11, DTypes: uint8Only},
	},
	DTypes: map[dtypes.DType]bool{
		dtypes.Float32: true,
		dtypes.Uint8:   true,
	},
}
