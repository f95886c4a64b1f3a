// Package xnnpack implements the support checks of a backend running on the XNNPACK library:
// channels-last (NHWC) convolutions and pooling, and softmax, in float32 or quantized uint8.
//
// The backend doesn't execute anything: it tells the partitioner which nodes it takes, and which
// trailing activations it can fuse into them.
//
// Configuration options, comma-separated (e.g. "xnnpack:nofusion,noqdq"):
//
//   - nofusion: don't fuse trailing Relu/Clip activations.
//   - noqdq: reject quantized (QDQ) groups.
//   - noconv, noavgpool, nomaxpool, nosoftmax: disable support of the operator.
package xnnpack

import (
	"strings"

	"github.com/gomlx/capgraph/backends"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in CAPGRAPH_BACKEND to specify this backend.
const BackendName = "xnnpack"

// ProviderName is the tag set on nodes assigned to this backend.
const ProviderName = "XnnpackExecutionProvider"

// Registers New() as the default constructor for "xnnpack" backend.
func init() {
	backends.Register(BackendName, New)
}

// Backend implements backends.Backend for XNNPACK.
type Backend struct {
	noFusion bool
	noQDQ    bool
	disabled map[string]bool
}

// Compile-time check that xnnpack.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// optionOps maps the options that disable an operator to the operator.
var optionOps = map[string]string{
	"noconv":    "Conv",
	"noavgpool": "AveragePool",
	"nomaxpool": "MaxPool",
	"nosoftmax": "Softmax",
}

// New constructs a new XNNPACK Backend. See package documentation for the configuration options.
func New(config string) (backends.Backend, error) {
	b := &Backend{disabled: make(map[string]bool)}
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "nofusion":
			b.noFusion = true
		case "noqdq":
			b.noQDQ = true
		default:
			opType, found := optionOps[part]
			if !found {
				return nil, errors.Errorf("unknown configuration option %q for XNNPACK (xnnpack) backend", part)
			}
			b.disabled[opType] = true
		}
	}
	return b, nil
}

// Name returns the name used to tag the nodes assigned to this backend.
func (b *Backend) Name() string {
	return ProviderName
}

// String implements fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "XNNPACK NHWC kernels for Conv, MaxPool, AveragePool and Softmax (float32, QDQ uint8)"
}

// Capabilities returns the kernels registered by this backend.
func (b *Backend) Capabilities() backends.Capabilities {
	return Capabilities
}

// IsUnitSupported implements backends.Backend.
func (b *Backend) IsUnitSupported(unit *nodeunit.NodeUnit) bool {
	if unit.Domain() != graph.DomainONNX || b.disabled[unit.OpType()] {
		return false
	}
	if unit.UnitType() == nodeunit.QDQGroup && b.noQDQ {
		return false
	}
	var supported bool
	switch unit.OpType() {
	case "Conv":
		supported = isConvSupported(unit)
	case "AveragePool":
		supported = isAveragePoolSupported(unit)
	case "MaxPool":
		supported = isMaxPoolSupported(unit)
	case "Softmax":
		supported = isSoftmaxSupported(unit)
	}
	if klog.V(2).Enabled() {
		klog.Infof("xnnpack: %s supported=%v", unit, supported)
	}
	return supported
}
