package backends

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/gopjrt/dtypes"
)

// KernelDef describes one statically registered kernel: an operator of a domain, for a range of
// opset versions.
type KernelDef struct {
	OpType string
	Domain string

	// SinceVersion and EndVersion (inclusive) delimit the opset versions covered.
	// EndVersion 0 means there is no upper limit.
	SinceVersion, EndVersion int

	// DTypes the kernel is restricted to, or nil if it follows the backend's DTypes.
	DTypes []dtypes.DType
}

// Matches returns whether the kernel implements the operator at the given version.
func (k KernelDef) Matches(domain, opType string, version int) bool {
	if k.OpType != opType || k.Domain != domain || version < k.SinceVersion {
		return false
	}
	return k.EndVersion == 0 || version <= k.EndVersion
}

// String implements fmt.Stringer.
func (k KernelDef) String() string {
	op := k.OpType
	if k.Domain != graph.DomainONNX {
		op = k.Domain + "." + op
	}
	versions := fmt.Sprintf("%d+", k.SinceVersion)
	if k.EndVersion != 0 {
		versions = fmt.Sprintf("%d-%d", k.SinceVersion, k.EndVersion)
	}
	if len(k.DTypes) == 0 {
		return fmt.Sprintf("%s(%s)", op, versions)
	}
	return fmt.Sprintf("%s(%s)%v", op, versions, k.DTypes)
}

// Capabilities holds mappings of what is supported by a backend.
type Capabilities struct {
	// Kernels registered by the backend.
	Kernels []KernelDef

	// DTypes list the data types supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	DTypes map[dtypes.DType]bool
}

// HasKernel returns whether some kernel implements the operator at the given version.
func (c Capabilities) HasKernel(domain, opType string, version int) bool {
	return slices.ContainsFunc(c.Kernels, func(k KernelDef) bool {
		return k.Matches(domain, opType, version)
	})
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	var c2 Capabilities
	c2.Kernels = make([]KernelDef, len(c.Kernels))
	for i, k := range c.Kernels {
		k.DTypes = slices.Clone(k.DTypes)
		c2.Kernels[i] = k
	}
	c2.DTypes = make(map[dtypes.DType]bool, len(c.DTypes))
	maps.Copy(c2.DTypes, c.DTypes)
	return c2
}
