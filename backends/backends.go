// Package backends defines the interface a compute backend implements to take part in graph
// partitioning, and a registry of named backends.
//
// A backend answers two questions for the partitioner: whether a node unit (a node, or a quantized
// QDQ group) is natively supported, and whether a node can be fused as a trailing activation onto a
// node the backend already took. It also lists, in its Capabilities, the kernels it has for the
// fused operators it asks for.
//
// Backends are registered by name (see Register) and created from a configuration string, see
// NewWithConfig.
package backends

import (
	"os"
	"slices"
	"strings"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/pkg/errors"
)

// Backend is the API a compute backend implements for graph partitioning.
type Backend interface {
	// Name returns the name used to tag the nodes assigned to this backend.
	// E.g.: "XnnpackExecutionProvider".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Capabilities lists the kernels available in the backend.
	Capabilities() Capabilities

	// IsUnitSupported returns whether the unit can be executed natively by the backend.
	IsUnitSupported(unit *nodeunit.NodeUnit) bool

	// IsFusableWithActivation returns the producer node the given activation node can be fused onto,
	// or nil if it can't be fused. The producer returned must be unassigned and supported by the backend.
	IsFusableWithActivation(node *graph.Node) *graph.Node
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// Registered returns the sorted names of the registered backends.
func Registered() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// CAPGRAPH_BACKEND is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "xnnpack") and
// "<backend_configuration>" is backend specific (e.g.: for xnnpack, a list of disabled features).
const CAPGRAPH_BACKEND = "CAPGRAPH_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment CAPGRAPH_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
func New() (Backend, error) {
	config, found := os.LookupEnv(CAPGRAPH_BACKEND)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configurations string formated as "<backend_name>:<backend_configuration>".
//
// The "<backend_name>" is the name of a registered backend (e.g.: "xnnpack") and
// "<backend_configuration>" is backend specific. A config without ":" is taken as the backend
// name, and an empty config selects the first registered backend.
func NewWithConfig(config string) (Backend, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.Errorf(`no registered backends -- maybe import the xnnpack one with import _ "github.com/gomlx/capgraph/backends/xnnpack"?`)
	}
	backendName, backendConfig := config, ""
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	}
	if backendName == "" {
		backendName = firstRegistered
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given, registered backends: %v",
			backendName, config, Registered())
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}
