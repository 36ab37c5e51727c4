package velox_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	velox "github.com/jobbine-joseph/velox"
)

type countingResource struct {
	released int
}

func (r *countingResource) Release() { r.released++ }

func TestMemoryManagerTracksAndReleases(t *testing.T) {
	manager := velox.NewMemoryManager(memory.NewGoAllocator())

	resources := []*countingResource{{}, {}, {}}
	for _, r := range resources {
		manager.Track(r)
	}
	manager.Track(nil) // ignored

	assert.Equal(t, 3, manager.Count())

	manager.ReleaseAll()
	assert.Equal(t, 0, manager.Count())
	for _, r := range resources {
		assert.Equal(t, 1, r.released)
	}
}

func TestWithMemoryManager(t *testing.T) {
	resource := &countingResource{}

	err := velox.WithMemoryManager(memory.NewGoAllocator(), func(m *velox.MemoryManager) error {
		m.Track(resource)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resource.released)
}

func TestWithMemoryManagerTracksBatches(t *testing.T) {
	mem := memory.NewGoAllocator()

	err := velox.WithMemoryManager(mem, func(m *velox.MemoryManager) error {
		b, err := velox.NewBatch(velox.NewSeries("v", []int64{1, 2}, mem))
		if err != nil {
			return err
		}
		m.Track(b)
		assert.Equal(t, 2, b.NumRows())
		return nil
	})
	require.NoError(t, err)
}
