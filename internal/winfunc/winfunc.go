// Package winfunc defines the window function invocation contract and a
// name-keyed registry of concrete implementations.
//
// A WindowFunction is reset once per partition and then applied to successive
// row sub-ranges of that partition. Per sub-range it receives the peer group
// bounds, its own frame bounds, and a validity bitmap marking rows whose frame
// is usable. Frame and peer bounds are partition-relative and inclusive.
package winfunc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/jobbine-joseph/velox/internal/errors"
	"github.com/jobbine-joseph/velox/internal/partition"
)

// WindowFunction is the contract every window function implements.
type WindowFunction interface {
	// OutputType returns the Arrow type of the function's output column.
	OutputType() arrow.DataType

	// ResetPartition is called once before any Apply call for a new
	// partition. Implementations may cache partition-scoped state.
	ResetPartition(p *partition.Partition)

	// Apply computes output values for one sub-range of the current
	// partition's rows and appends exactly len(peerStarts) values to dest.
	// frameStarts/frameEnds hold this function's frame bounds; validity is a
	// bitmap whose cleared bits mark rows with unusable frames (their frame
	// bound contents must not be read). resultOffset is the destination
	// offset within the output column; dest's length equals resultOffset on
	// entry. Ranking functions, which ignore frames, may disregard validity.
	Apply(
		peerStarts, peerEnds []int,
		frameStarts, frameEnds []int,
		validity []byte,
		resultOffset int,
		dest array.Builder,
	) error
}

// Args carries the resolved argument of a window function.
type Args struct {
	// ArgChannel is the input column index of the function argument, or -1
	// when the function takes no argument.
	ArgChannel int
	// ArgType is the Arrow type of the argument column; nil when absent.
	ArgType arrow.DataType
}

// Factory constructs a window function instance from its resolved arguments.
type Factory func(args Args) (WindowFunction, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a factory under the given function name. Registering a
// duplicate name panics; names are fixed at package initialization.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("window function already registered: %s", name))
	}
	registry[name] = factory
}

// Create constructs the named window function.
func Create(name string, args Args) (WindowFunction, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewSpecificationError("CreateFunction",
			fmt.Sprintf("unknown window function: %s", name))
	}
	return factory(args)
}

// Names returns the registered function names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// requireNoArg validates that a ranking function was given no argument.
func requireNoArg(name string, args Args) error {
	if args.ArgChannel >= 0 {
		return errors.NewSpecificationError("CreateFunction",
			fmt.Sprintf("%s takes no argument", name))
	}
	return nil
}

// requireArg validates that a value or aggregate function was given one.
func requireArg(name string, args Args) error {
	if args.ArgChannel < 0 || args.ArgType == nil {
		return errors.NewSpecificationError("CreateFunction",
			fmt.Sprintf("%s requires an argument column", name))
	}
	return nil
}
