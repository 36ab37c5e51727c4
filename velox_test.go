package velox_test

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	velox "github.com/jobbine-joseph/velox"
)

func TestWindowOperatorEndToEnd(t *testing.T) {
	input, err := velox.NewBatch(
		velox.NewSeries("region", []string{"west", "east", "west", "east"}, nil),
		velox.NewSeries("amount", []int64{40, 10, 20, 30}, nil),
	)
	require.NoError(t, err)

	op, err := velox.NewWindowOperator(input.Schema(),
		[]string{"region"},
		[]velox.OrderKey{{Column: "amount", Ascending: true}},
		[]velox.FunctionSpec{
			{Name: "row_number", OutputName: "rn"},
			{
				Name: "sum", ArgColumn: "amount", OutputName: "running",
				Frame: velox.Rows(velox.UnboundedPreceding(), velox.CurrentRow()),
			},
		},
		velox.Config{}, nil)
	require.NoError(t, err)
	defer op.Release()

	require.NoError(t, op.AddInput(input))
	require.NoError(t, op.NoMoreInput())

	out, err := op.GetOutput()
	require.NoError(t, err)
	require.NotNil(t, out)
	defer out.Release()

	assert.Equal(t, 4, out.NumRows())
	assert.Equal(t, []string{"region", "amount", "rn", "running"}, out.Columns())

	running, ok := out.Column("running")
	require.True(t, ok)
	arr := running.Array()
	defer arr.Release()
	// Partitions emit in key order: east {10, 30}, then west {20, 40}.
	assert.Equal(t, []int64{10, 40, 20, 60}, arr.(*array.Int64).Int64Values())

	end, err := op.GetOutput()
	require.NoError(t, err)
	assert.Nil(t, end)
}

func TestRunWindowSingleOperatorPath(t *testing.T) {
	input, err := velox.NewBatch(
		velox.NewSeries("g", []string{"a", "b", "a"}, nil),
		velox.NewSeries("v", []int64{2, 5, 1}, nil),
	)
	require.NoError(t, err)

	out, err := velox.RunWindow(context.Background(), input.Schema(),
		[]string{"g"},
		[]velox.OrderKey{{Column: "v", Ascending: true}},
		[]velox.FunctionSpec{{Name: "rank", OutputName: "r"}},
		velox.Config{}, nil, input)
	require.NoError(t, err)
	require.Len(t, out, 1)
	defer out[0].Release()

	r, ok := out[0].Column("r")
	require.True(t, ok)
	arr := r.Array()
	defer arr.Release()
	assert.Equal(t, []int64{1, 2, 1}, arr.(*array.Int64).Int64Values())
}

func TestRunWindowLanePath(t *testing.T) {
	const rows = 64
	groups := make([]string, rows)
	values := make([]int64, rows)
	for i := range groups {
		groups[i] = string(rune('a' + i%4))
		values[i] = int64(i)
	}

	input, err := velox.NewBatch(
		velox.NewSeries("g", groups, nil),
		velox.NewSeries("v", values, nil),
	)
	require.NoError(t, err)

	// A low threshold forces the parallel lane path.
	cfg := velox.Config{LaneCount: 2, LaneThreshold: 1}
	out, err := velox.RunWindow(context.Background(), input.Schema(),
		[]string{"g"},
		[]velox.OrderKey{{Column: "v", Ascending: true}},
		[]velox.FunctionSpec{{Name: "count", ArgColumn: "v", OutputName: "c"}},
		cfg, nil, input)
	require.NoError(t, err)

	total := 0
	for _, b := range out {
		total += b.NumRows()
		b.Release()
	}
	assert.Equal(t, rows, total)
}

func TestRunWindowMemoryThresholdCapsBatchSize(t *testing.T) {
	const rows = 10
	values := make([]int64, rows)
	for i := range values {
		values[i] = int64(i)
	}

	input, err := velox.NewBatch(velox.NewSeries("v", values, nil))
	require.NoError(t, err)

	// Two columns (one input, one function output) at eight bytes per value
	// with a 64 byte threshold caps output batches at four rows.
	cfg := velox.Config{MemoryThreshold: 64}
	out, err := velox.RunWindow(context.Background(), input.Schema(),
		nil, nil,
		[]velox.FunctionSpec{{Name: "row_number", OutputName: "rn"}},
		cfg, nil, input)
	require.NoError(t, err)
	require.Len(t, out, 3)

	total := 0
	for _, b := range out {
		assert.LessOrEqual(t, b.NumRows(), 4)
		total += b.NumRows()
		b.Release()
	}
	assert.Equal(t, rows, total)
}

func TestNullableSeries(t *testing.T) {
	s := velox.NewNullableSeries("v", []int64{1, 2, 3}, []bool{true, false, true}, nil)
	defer s.Release()

	assert.False(t, s.IsNull(0))
	assert.True(t, s.IsNull(1))
}

func TestFunctionNames(t *testing.T) {
	names := velox.FunctionNames()
	assert.Contains(t, names, "row_number")
	assert.Contains(t, names, "rank")
	assert.Contains(t, names, "sum")
	assert.Contains(t, names, "avg")
}

func TestErrorClassification(t *testing.T) {
	input, err := velox.NewBatch(
		velox.NewSeries("g", []string{"a"}, nil),
		velox.NewSeries("v", []int64{1}, nil),
	)
	require.NoError(t, err)
	defer input.Release()

	_, err = velox.NewWindowOperator(input.Schema(), []string{"g"}, nil,
		[]velox.FunctionSpec{{
			Name: "sum", ArgColumn: "v",
			Frame: velox.Range(velox.Preceding(2), velox.CurrentRow()),
		}},
		velox.Config{}, nil)
	require.Error(t, err)
	assert.True(t, velox.IsSpecificationError(err))
	assert.False(t, velox.IsDataError(err))
}
