package parallel

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/config"
	"github.com/jobbine-joseph/velox/internal/partition"
	"github.com/jobbine-joseph/velox/internal/series"
	"github.com/jobbine-joseph/velox/internal/window"
)

func laneSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "g", Type: arrow.BinaryTypes.String},
		{Name: "v", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
}

func laneBatch(t *testing.T, mem memory.Allocator, groups []string, values []int64) *batch.Batch {
	t.Helper()
	b, err := batch.New(
		series.New("g", groups, mem),
		series.New("v", values, mem),
	)
	require.NoError(t, err)
	return b
}

type outputRow struct {
	group string
	value int64
	rn    int64
}

func collectRows(t *testing.T, batches []*batch.Batch) []outputRow {
	t.Helper()
	var rows []outputRow
	for _, b := range batches {
		gCol, ok := b.Column("g")
		require.True(t, ok)
		vCol, ok := b.Column("v")
		require.True(t, ok)
		rnCol, ok := b.Column("rn")
		require.True(t, ok)

		g := gCol.Array()
		v := vCol.Array()
		rn := rnCol.Array()
		for i := 0; i < b.NumRows(); i++ {
			rows = append(rows, outputRow{
				group: g.(*array.String).Value(i),
				value: v.(*array.Int64).Value(i),
				rn:    rn.(*array.Int64).Value(i),
			})
		}
		g.Release()
		v.Release()
		rn.Release()
		b.Release()
	}
	return rows
}

func TestLaneRunnerMatchesSingleOperator(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := laneSchema()

	groups := []string{"a", "b", "c", "d", "a", "b", "c", "d", "a", "b"}
	values := []int64{3, 10, 100, 7, 1, 30, 200, 9, 2, 20}

	runner, err := NewLaneRunner(schema,
		[]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}},
		[]window.FunctionSpec{{Name: "row_number", OutputName: "rn"}},
		config.Config{LaneCount: 3}, mem)
	require.NoError(t, err)
	defer runner.Release()

	assert.Equal(t, 3, runner.NumLanes())

	require.NoError(t, runner.AddInput(laneBatch(t, mem, groups, values)))
	batches, err := runner.Run(context.Background())
	require.NoError(t, err)

	rows := collectRows(t, batches)
	require.Len(t, rows, len(groups))

	// Every partition must carry a full 1..n row_number sequence ordered
	// by value, regardless of which lane it ran on.
	byGroup := map[string][]outputRow{}
	for _, row := range rows {
		byGroup[row.group] = append(byGroup[row.group], row)
	}
	require.Len(t, byGroup, 4)

	for group, groupRows := range byGroup {
		seen := map[int64]int64{}
		for _, row := range groupRows {
			seen[row.rn] = row.value
		}
		require.Len(t, seen, len(groupRows), "group %s has duplicate row numbers", group)
		for rn := int64(2); rn <= int64(len(groupRows)); rn++ {
			assert.Less(t, seen[rn-1], seen[rn],
				"group %s row numbers must follow value order", group)
		}
	}
}

func TestLaneRunnerSingleLaneWithoutPartitionBy(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := laneSchema()

	runner, err := NewLaneRunner(schema, nil,
		[]partition.OrderKey{{Column: "v", Ascending: true}},
		[]window.FunctionSpec{{Name: "row_number", OutputName: "rn"}},
		config.Config{LaneCount: 4}, mem)
	require.NoError(t, err)
	defer runner.Release()

	// All rows share one partition, so lanes would serialize anyway.
	assert.Equal(t, 1, runner.NumLanes())

	require.NoError(t, runner.AddInput(laneBatch(t, mem,
		[]string{"x", "y", "z"}, []int64{3, 1, 2})))

	batches, err := runner.Run(context.Background())
	require.NoError(t, err)

	rows := collectRows(t, batches)
	require.Len(t, rows, 3)
	assert.Equal(t, []outputRow{
		{group: "y", value: 1, rn: 1},
		{group: "z", value: 2, rn: 2},
		{group: "x", value: 3, rn: 3},
	}, rows)
}

func TestLaneRunnerMultipleInputBatches(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := laneSchema()

	runner, err := NewLaneRunner(schema,
		[]string{"g"},
		[]partition.OrderKey{{Column: "v", Ascending: true}},
		[]window.FunctionSpec{{Name: "row_number", OutputName: "rn"}},
		config.Config{LaneCount: 2}, mem)
	require.NoError(t, err)
	defer runner.Release()

	// A partition split across input batches must still land whole on one
	// lane.
	require.NoError(t, runner.AddInput(laneBatch(t, mem, []string{"a", "b"}, []int64{2, 5})))
	require.NoError(t, runner.AddInput(laneBatch(t, mem, []string{"b", "a"}, []int64{4, 1})))

	batches, err := runner.Run(context.Background())
	require.NoError(t, err)

	rows := collectRows(t, batches)
	require.Len(t, rows, 4)

	want := map[outputRow]bool{
		{group: "a", value: 1, rn: 1}: true,
		{group: "a", value: 2, rn: 2}: true,
		{group: "b", value: 4, rn: 1}: true,
		{group: "b", value: 5, rn: 2}: true,
	}
	for _, row := range rows {
		assert.True(t, want[row], "unexpected output row %+v", row)
	}
}

func TestLaneRunnerCanceledContext(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := laneSchema()

	runner, err := NewLaneRunner(schema,
		[]string{"g"}, nil,
		[]window.FunctionSpec{{Name: "count", ArgColumn: "v", OutputName: "c"}},
		config.Config{LaneCount: 2}, mem)
	require.NoError(t, err)
	defer runner.Release()

	require.NoError(t, runner.AddInput(laneBatch(t, mem, []string{"a", "b"}, []int64{1, 2})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = runner.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLaneRunnerRoutingIsDeterministic(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := laneSchema()

	runner, err := NewLaneRunner(schema, []string{"g"}, nil,
		[]window.FunctionSpec{{Name: "count", ArgColumn: "v", OutputName: "c"}},
		config.Config{LaneCount: 4}, mem)
	require.NoError(t, err)
	defer runner.Release()

	b := laneBatch(t, mem, []string{"a", "b", "a", "b"}, []int64{1, 2, 3, 4})
	defer b.Release()

	first, err := runner.routeRows(b)
	require.NoError(t, err)
	second, err := runner.routeRows(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Rows of one key always land on the same lane.
	laneOf := map[int]int{}
	for lane, rows := range first {
		for _, row := range rows {
			laneOf[row] = lane
		}
	}
	assert.Equal(t, laneOf[0], laneOf[2])
	assert.Equal(t, laneOf[1], laneOf[3])
}
