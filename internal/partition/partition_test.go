package partition_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/partition"
	"github.com/jobbine-joseph/velox/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBatch(t *testing.T, mem memory.Allocator, groups []string, values []int64) *batch.Batch {
	t.Helper()
	b, err := batch.New(
		series.New("g", groups, mem),
		series.New("v", values, mem),
	)
	require.NoError(t, err)
	return b
}

func drainPartitions(t *testing.T, src partition.Source) []*partition.Partition {
	t.Helper()
	var parts []*partition.Partition
	for src.HasNextPartition() {
		p, err := src.NextPartition()
		require.NoError(t, err)
		parts = append(parts, p)
	}
	return parts
}

func TestSortSource_Backpressure(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"}, nil, mem)
	defer src.Release()

	require.NoError(t, src.AddInput(makeBatch(t, mem, []string{"a"}, []int64{1})))

	// No partitions before NoMoreInput.
	assert.False(t, src.HasNextPartition())

	require.NoError(t, src.NoMoreInput())
	assert.True(t, src.HasNextPartition())
}

func TestSortSource_PartitionsAndOrder(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource(
		[]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}},
		mem,
	)
	defer src.Release()

	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"b", "a", "b"}, []int64{3, 10, 1})))
	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"a", "b"}, []int64{5, 2})))
	require.NoError(t, src.NoMoreInput())

	var got [][]int64
	for src.HasNextPartition() {
		p, err := src.NextPartition()
		require.NoError(t, err)
		vals := make([]int64, 0, p.NumRows())
		arr := p.Column(1).(*array.Int64)
		for i := 0; i < p.NumRows(); i++ {
			vals = append(vals, arr.Value(i))
		}
		got = append(got, vals)
	}

	// Partitions arrive in partition-key order, rows sorted within each.
	require.Len(t, got, 2)
	assert.Equal(t, []int64{5, 10}, got[0])
	assert.Equal(t, []int64{1, 2, 3}, got[1])
}

func TestSortSource_NoPartitionBy(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource(nil,
		[]partition.OrderKey{{Column: "v", Ascending: false}}, mem)
	defer src.Release()

	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"x", "y", "z"}, []int64{1, 3, 2})))
	require.NoError(t, src.NoMoreInput())

	parts := drainPartitions(t, src)
	require.Len(t, parts, 1)

	arr := parts[0].Column(1).(*array.Int64)
	assert.Equal(t, int64(3), arr.Value(0))
	assert.Equal(t, int64(2), arr.Value(1))
	assert.Equal(t, int64(1), arr.Value(2))
}

func TestSortSource_ColumnNotFound(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"missing"}, nil, mem)
	defer src.Release()

	err := src.AddInput(makeBatch(t, mem, []string{"a"}, []int64{1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestSortSource_EmptyInput(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"}, nil, mem)
	defer src.Release()

	require.NoError(t, src.NoMoreInput())
	assert.False(t, src.HasNextPartition())
}

func TestPartition_ExtractColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}}, mem)
	defer src.Release()

	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"a", "a", "a", "a"}, []int64{4, 2, 1, 3})))
	require.NoError(t, src.NoMoreInput())

	p, err := src.NextPartition()
	require.NoError(t, err)

	builder := array.NewInt64Builder(mem)
	defer builder.Release()

	// Extract the middle two rows.
	require.NoError(t, p.ExtractColumn(1, 1, 2, builder))
	arr := builder.NewInt64Array()
	defer arr.Release()

	assert.Equal(t, []int64{2, 3}, arr.Int64Values())
}

func TestPartition_ExtractColumn_OutOfRange(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"}, nil, mem)
	defer src.Release()

	require.NoError(t, src.AddInput(makeBatch(t, mem, []string{"a"}, []int64{1})))
	require.NoError(t, src.NoMoreInput())

	p, err := src.NextPartition()
	require.NoError(t, err)

	builder := array.NewInt64Builder(mem)
	defer builder.Release()

	assert.Error(t, p.ExtractColumn(1, 0, 5, builder))
}

func TestPartition_ComputePeerGroups(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}}, mem)
	defer src.Release()

	// Values 1, 2, 2, 2, 5: peer groups [0,0], [1,3], [4,4].
	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"a", "a", "a", "a", "a"}, []int64{2, 1, 2, 5, 2})))
	require.NoError(t, src.NoMoreInput())

	p, err := src.NextPartition()
	require.NoError(t, err)

	peerStarts := make([]int, 5)
	peerEnds := make([]int, 5)
	ps, pe, err := p.ComputePeerGroups(0, 5, 0, 0, peerStarts, peerEnds)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 1, 1, 4}, peerStarts)
	assert.Equal(t, []int{0, 3, 3, 3, 4}, peerEnds)
	assert.Equal(t, 4, ps)
	assert.Equal(t, 5, pe)
}

func TestPartition_ComputePeerGroups_AcrossCalls(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}}, mem)
	defer src.Release()

	// Values 1, 1, 1, 2: one peer group spanning the first sub-range split.
	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"a", "a", "a", "a"}, []int64{1, 1, 1, 2})))
	require.NoError(t, src.NoMoreInput())

	p, err := src.NextPartition()
	require.NoError(t, err)

	peerStarts := make([]int, 2)
	peerEnds := make([]int, 2)

	ps, pe, err := p.ComputePeerGroups(0, 2, 0, 0, peerStarts, peerEnds)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, peerStarts)
	assert.Equal(t, []int{2, 2}, peerEnds)

	ps, pe, err = p.ComputePeerGroups(2, 4, ps, pe, peerStarts, peerEnds)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, peerStarts)
	assert.Equal(t, []int{2, 3}, peerEnds)
	assert.Equal(t, 3, ps)
	assert.Equal(t, 4, pe)
}

func TestPartition_ComputePeerGroups_NoOrderKeys(t *testing.T) {
	mem := memory.NewGoAllocator()
	src := partition.NewSortSource([]string{"g"}, nil, mem)
	defer src.Release()

	require.NoError(t, src.AddInput(makeBatch(t, mem,
		[]string{"a", "a", "a"}, []int64{3, 1, 2})))
	require.NoError(t, src.NoMoreInput())

	p, err := src.NextPartition()
	require.NoError(t, err)

	peerStarts := make([]int, 3)
	peerEnds := make([]int, 3)
	_, _, err = p.ComputePeerGroups(0, 3, 0, 0, peerStarts, peerEnds)
	require.NoError(t, err)

	// The whole partition is one peer group.
	assert.Equal(t, []int{0, 0, 0}, peerStarts)
	assert.Equal(t, []int{2, 2, 2}, peerEnds)
}

func TestSortSource_NullsSortFirst(t *testing.T) {
	mem := memory.NewGoAllocator()

	g := series.New("g", []string{"a", "a", "a"}, mem)
	v := series.NewNullable("v", []int64{5, 0, 1}, []bool{true, false, true}, mem)
	b, err := batch.New(g, v)
	require.NoError(t, err)

	src := partition.NewSortSource([]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}}, mem)
	defer src.Release()

	require.NoError(t, src.AddInput(b))
	require.NoError(t, src.NoMoreInput())

	p, err := src.NextPartition()
	require.NoError(t, err)

	arr := p.Column(1).(*array.Int64)
	assert.True(t, arr.IsNull(0))
	assert.Equal(t, int64(1), arr.Value(1))
	assert.Equal(t, int64(5), arr.Value(2))
}
