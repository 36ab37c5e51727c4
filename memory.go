package velox

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Releasable represents any resource that can be released to free memory.
//
// This interface is implemented by Batch, Series and WindowOperator, all of
// which hold Apache Arrow buffers. Always call Release() when done with a
// resource to prevent memory leaks.
//
// The recommended pattern is to use defer for automatic cleanup:
//
//	out, err := op.GetOutput()
//	if out != nil {
//		defer out.Release()
//	}
type Releasable interface {
	Release()
}

// MemoryManager helps track and release multiple resources automatically.
//
// MemoryManager is useful when a query produces many short-lived batches that
// need bulk cleanup, such as draining an operator in a loop. For most use
// cases, prefer the defer pattern with individual Release() calls.
//
// The MemoryManager is safe for concurrent use from multiple goroutines.
type MemoryManager struct {
	allocator memory.Allocator
	resources []Releasable
	mu        sync.Mutex
}

// NewMemoryManager creates a new memory manager with the given allocator
func NewMemoryManager(allocator memory.Allocator) *MemoryManager {
	return &MemoryManager{
		allocator: allocator,
		resources: make([]Releasable, 0),
	}
}

// Track adds a resource to be managed and automatically released
func (m *MemoryManager) Track(resource Releasable) {
	if resource != nil {
		m.mu.Lock()
		m.resources = append(m.resources, resource)
		m.mu.Unlock()
	}
}

// Count returns the number of tracked resources
func (m *MemoryManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

// ReleaseAll releases all tracked resources and clears the tracking list
func (m *MemoryManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, resource := range m.resources {
		if resource != nil {
			resource.Release()
		}
	}
	m.resources = m.resources[:0]
}

// WithMemoryManager creates a memory manager, executes a function with it,
// and releases all tracked resources when the function returns.
//
// Example:
//
//	err := velox.WithMemoryManager(mem, func(manager *velox.MemoryManager) error {
//		for {
//			out, err := op.GetOutput()
//			if err != nil || out == nil {
//				return err
//			}
//			manager.Track(out)
//			process(out)
//		}
//	})
//	// All tracked batches are released here
func WithMemoryManager(allocator memory.Allocator, fn func(*MemoryManager) error) error {
	manager := NewMemoryManager(allocator)
	defer manager.ReleaseAll()
	return fn(manager)
}
