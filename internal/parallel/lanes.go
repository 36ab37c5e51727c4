// Package parallel provides a multi-lane runner for window evaluation.
//
// The window operator itself is single threaded. The lane runner keeps it
// that way and moves parallelism outside the operator: input rows are routed
// to N independent operator lanes by a hash of their partition key, so every
// partition lands whole on exactly one lane and the lanes share no mutable
// state. Each lane is drained by its own goroutine using a fan-out/fan-in
// pattern.
package parallel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"

	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/config"
	"github.com/jobbine-joseph/velox/internal/errors"
	"github.com/jobbine-joseph/velox/internal/partition"
	"github.com/jobbine-joseph/velox/internal/series"
	"github.com/jobbine-joseph/velox/internal/window"
)

// LaneRunner fans input batches out over independent window operator lanes.
type LaneRunner struct {
	mem         memory.Allocator
	schema      *arrow.Schema
	partitionBy []string
	lanes       []*window.Operator
}

// NewLaneRunner creates a runner with cfg.EffectiveLaneCount() lanes, each
// holding its own operator built from the same window definition. With no
// partitioning columns every row shares one partition key, so a single lane
// is used regardless of the configured count.
func NewLaneRunner(
	schema *arrow.Schema,
	partitionBy []string,
	orderBy []partition.OrderKey,
	specs []window.FunctionSpec,
	cfg config.Config,
	mem memory.Allocator,
) (*LaneRunner, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	cfg = cfg.WithDefaults()

	laneCount := cfg.EffectiveLaneCount()
	if len(partitionBy) == 0 {
		laneCount = 1
	}

	r := &LaneRunner{
		mem:         mem,
		schema:      schema,
		partitionBy: partitionBy,
	}
	for i := 0; i < laneCount; i++ {
		op, err := window.NewOperator(schema, partitionBy, orderBy, specs, cfg, mem)
		if err != nil {
			r.Release()
			return nil, fmt.Errorf("creating lane %d: %w", i, err)
		}
		r.lanes = append(r.lanes, op)
	}
	return r, nil
}

// NumLanes returns the number of operator lanes.
func (r *LaneRunner) NumLanes() int {
	return len(r.lanes)
}

// AddInput routes the rows of b to their lanes by partition key hash. The
// runner takes ownership of b.
func (r *LaneRunner) AddInput(b *batch.Batch) error {
	if len(r.lanes) == 1 {
		return r.lanes[0].AddInput(b)
	}

	laneRows, err := r.routeRows(b)
	if err != nil {
		b.Release()
		return err
	}

	for lane, rows := range laneRows {
		if len(rows) == 0 {
			continue
		}
		sub, err := r.gatherRows(b, rows)
		if err != nil {
			b.Release()
			return err
		}
		if err := r.lanes[lane].AddInput(sub); err != nil {
			b.Release()
			return err
		}
	}
	b.Release()
	return nil
}

// Run finishes the input stream and drains every lane concurrently. It
// returns each lane's output batches concatenated in lane order; ordering
// across lanes is not defined beyond that. The caller owns the returned
// batches.
func (r *LaneRunner) Run(ctx context.Context) ([]*batch.Batch, error) {
	perLane := make([][]*batch.Batch, len(r.lanes))
	laneErrs := make([]error, len(r.lanes))

	var wg sync.WaitGroup
	for i, lane := range r.lanes {
		wg.Add(1)
		go func(i int, op *window.Operator) {
			defer wg.Done()
			laneErrs[i] = drainLane(ctx, op, &perLane[i])
		}(i, lane)
	}
	wg.Wait()

	var firstErr error
	for _, err := range laneErrs {
		if err != nil {
			firstErr = err
			break
		}
	}
	if firstErr != nil {
		for _, batches := range perLane {
			for _, b := range batches {
				b.Release()
			}
		}
		return nil, firstErr
	}

	var out []*batch.Batch
	for _, batches := range perLane {
		out = append(out, batches...)
	}
	return out, nil
}

// Release frees every lane's operator.
func (r *LaneRunner) Release() {
	for _, lane := range r.lanes {
		lane.Release()
	}
	r.lanes = nil
}

func drainLane(ctx context.Context, op *window.Operator, out *[]*batch.Batch) error {
	if err := op.NoMoreInput(); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := op.GetOutput()
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		*out = append(*out, b)
	}
}

// routeRows computes the destination lane for every row of b.
func (r *LaneRunner) routeRows(b *batch.Batch) ([][]int, error) {
	keyArrays := make([]arrow.Array, len(r.partitionBy))
	for i, name := range r.partitionBy {
		col, ok := b.Column(name)
		if !ok {
			for _, arr := range keyArrays[:i] {
				arr.Release()
			}
			return nil, errors.NewColumnNotFoundError("AddInput", name)
		}
		keyArrays[i] = col.Array()
	}
	defer func() {
		for _, arr := range keyArrays {
			arr.Release()
		}
	}()

	laneRows := make([][]int, len(r.lanes))
	var key strings.Builder
	for row := 0; row < b.NumRows(); row++ {
		key.Reset()
		for i, arr := range keyArrays {
			if i > 0 {
				key.WriteByte('|')
			}
			key.WriteString(keyValueAt(arr, row))
		}
		lane := int(xxhash.Sum64String(key.String()) % uint64(len(r.lanes)))
		laneRows[lane] = append(laneRows[lane], row)
	}
	return laneRows, nil
}

// gatherRows builds a new batch holding the given rows of b, in order.
func (r *LaneRunner) gatherRows(b *batch.Batch, rows []int) (*batch.Batch, error) {
	columns := make([]series.ISeries, 0, b.Width())
	release := func() {
		for _, col := range columns {
			col.Release()
		}
	}

	for c := 0; c < b.Width(); c++ {
		src := b.ColumnAt(c)
		arr := src.Array()

		builder, err := newLaneBuilder(arr.DataType(), r.mem)
		if err != nil {
			arr.Release()
			release()
			return nil, err
		}
		builder.Reserve(len(rows))
		for _, row := range rows {
			if err := appendRowValue(builder, arr, row); err != nil {
				arr.Release()
				builder.Release()
				release()
				return nil, err
			}
		}
		arr.Release()

		columns = append(columns, series.FromArray(src.Name(), builder.NewArray()))
		builder.Release()
	}

	sub, err := batch.New(columns...)
	if err != nil {
		release()
		return nil, err
	}
	return sub, nil
}

func newLaneBuilder(dt arrow.DataType, mem memory.Allocator) (array.Builder, error) {
	switch dt.ID() {
	case arrow.STRING:
		return array.NewStringBuilder(mem), nil
	case arrow.INT64:
		return array.NewInt64Builder(mem), nil
	case arrow.INT32:
		return array.NewInt32Builder(mem), nil
	case arrow.FLOAT64:
		return array.NewFloat64Builder(mem), nil
	case arrow.BOOL:
		return array.NewBooleanBuilder(mem), nil
	default:
		return nil, errors.NewUnsupportedTypeError("AddInput", dt.String())
	}
}

func appendRowValue(dest array.Builder, arr arrow.Array, row int) error {
	if arr.IsNull(row) {
		dest.AppendNull()
		return nil
	}

	switch a := arr.(type) {
	case *array.String:
		dest.(*array.StringBuilder).Append(a.Value(row))
	case *array.Int64:
		dest.(*array.Int64Builder).Append(a.Value(row))
	case *array.Int32:
		dest.(*array.Int32Builder).Append(a.Value(row))
	case *array.Float64:
		dest.(*array.Float64Builder).Append(a.Value(row))
	case *array.Boolean:
		dest.(*array.BooleanBuilder).Append(a.Value(row))
	default:
		return errors.NewUnsupportedTypeError("AddInput", arr.DataType().String())
	}
	return nil
}

// keyValueAt renders one partition key cell; nulls share a sentinel so null
// keys group together.
func keyValueAt(arr arrow.Array, row int) string {
	if arr.IsNull(row) {
		return "NULL"
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(row)
	case *array.Int64:
		return fmt.Sprintf("%d", a.Value(row))
	case *array.Int32:
		return fmt.Sprintf("%d", a.Value(row))
	case *array.Float64:
		return fmt.Sprintf("%g", a.Value(row))
	case *array.Boolean:
		return fmt.Sprintf("%t", a.Value(row))
	default:
		return arr.ValueStr(row)
	}
}
