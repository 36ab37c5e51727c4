package window

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/config"
	"github.com/jobbine-joseph/velox/internal/errors"
	"github.com/jobbine-joseph/velox/internal/partition"
	"github.com/jobbine-joseph/velox/internal/series"
	"github.com/jobbine-joseph/velox/internal/winfunc"
)

// Operator evaluates window functions over partitioned, ordered input rows.
//
// Input is pushed with AddInput and finished with NoMoreInput; output is
// pulled with GetOutput, which emits batches of up to the configured row
// count. A single Operator is not safe for concurrent use; independent
// instances may run concurrently on a thread-safe allocator.
type Operator struct {
	mem       memory.Allocator
	schema    *arrow.Schema
	source    partition.Source
	batchRows int

	funcs       []winfunc.WindowFunction
	frames      []*resolvedFrame
	outputNames []string

	// Streaming state, mutated only by GetOutput.
	currentPartition *partition.Partition
	partitionOffset  int
	peerStartRow     int
	peerEndRow       int
	numProcessedRows int
	numTotalRows     int

	scratch *scratchBuffers
}

// NewOperator constructs a window operator over the given input schema. Rows
// are partitioned by partitionBy, ordered within each partition by orderBy,
// and every FunctionSpec contributes one output column appended after the
// pass-through input columns.
func NewOperator(
	schema *arrow.Schema,
	partitionBy []string,
	orderBy []partition.OrderKey,
	specs []FunctionSpec,
	cfg config.Config,
	mem memory.Allocator,
) (*Operator, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if len(specs) == 0 {
		return nil, errors.NewSpecificationError("NewOperator", "at least one window function is required")
	}

	for _, name := range partitionBy {
		if len(schema.FieldIndices(name)) == 0 {
			return nil, errors.NewColumnNotFoundError("NewOperator", name)
		}
	}
	for _, key := range orderBy {
		if len(schema.FieldIndices(key.Column)) == 0 {
			return nil, errors.NewColumnNotFoundError("NewOperator", key.Column)
		}
	}

	op := &Operator{
		mem:       mem,
		schema:    schema,
		source:    partition.NewSortSource(partitionBy, orderBy, mem),
		batchRows: cfg.OutputBatchRows,
	}

	for _, spec := range specs {
		args := winfunc.Args{ArgChannel: -1}
		if spec.ArgColumn != "" {
			indices := schema.FieldIndices(spec.ArgColumn)
			if len(indices) == 0 {
				return nil, errors.NewColumnNotFoundError("NewOperator", spec.ArgColumn)
			}
			args.ArgChannel = indices[0]
			args.ArgType = schema.Field(indices[0]).Type
		}

		fn, err := winfunc.Create(spec.Name, args)
		if err != nil {
			return nil, fmt.Errorf("creating window function %s: %w", spec.Name, err)
		}

		frame, err := resolveFrame(spec.Frame, schema, cfg.OutputBatchRows)
		if err != nil {
			return nil, fmt.Errorf("resolving frame of %s: %w", spec.Name, err)
		}

		op.funcs = append(op.funcs, fn)
		op.frames = append(op.frames, frame)
		op.outputNames = append(op.outputNames, spec.outputName())
	}

	op.scratch = newScratchBuffers(cfg.OutputBatchRows, len(op.funcs))
	return op, nil
}

// AddInput buffers a batch of input rows. The operator takes ownership of the
// batch.
func (op *Operator) AddInput(b *batch.Batch) error {
	if err := op.checkInput(b); err != nil {
		b.Release()
		return err
	}

	numRows := b.NumRows()
	if err := op.source.AddInput(b); err != nil {
		return err
	}
	op.numTotalRows += numRows
	return nil
}

// checkInput verifies that the batch's column layout matches the operator's
// declared input schema.
func (op *Operator) checkInput(b *batch.Batch) error {
	if b.Width() != op.schema.NumFields() {
		return errors.NewSpecificationError("AddInput",
			fmt.Sprintf("batch has %d columns, schema declares %d", b.Width(), op.schema.NumFields()))
	}
	for i := 0; i < b.Width(); i++ {
		col := b.ColumnAt(i)
		field := op.schema.Field(i)
		if col.Name() != field.Name {
			return errors.NewSpecificationError("AddInput",
				fmt.Sprintf("batch column %d is named %q, schema declares %q", i, col.Name(), field.Name))
		}
		if !arrow.TypeEqual(col.DataType(), field.Type) {
			return &errors.OperatorError{
				Op:      "AddInput",
				Column:  col.Name(),
				Message: fmt.Sprintf("batch column type %s does not match schema type %s", col.DataType(), field.Type),
				Kind:    errors.KindSpecification,
			}
		}
	}
	return nil
}

// NoMoreInput signals the end of input, allowing the partition source to
// finalize partitions.
func (op *Operator) NoMoreInput() error {
	if op.numTotalRows == 0 {
		return nil
	}
	return op.source.NoMoreInput()
}

// GetOutput produces the next output batch, or nil when no output is
// currently available. A nil batch before all rows are emitted means the
// partition source has no partition ready yet (the caller must supply more
// input); a nil batch afterwards means end of stream.
func (op *Operator) GetOutput() (*batch.Batch, error) {
	if op.numTotalRows == 0 {
		return nil, nil
	}

	numRowsLeft := op.numTotalRows - op.numProcessedRows
	if numRowsLeft == 0 {
		return nil, nil
	}

	if op.currentPartition == nil {
		if err := op.resetPartition(); err != nil {
			return nil, err
		}
		if op.currentPartition == nil {
			// The source has no partition to output yet.
			return nil, nil
		}
	}

	numOutputRows := min(op.batchRows, numRowsLeft)

	inputBuilders, funcBuilders, err := op.newOutputBuilders()
	if err != nil {
		return nil, err
	}
	releaseBuilders := func() {
		for _, b := range inputBuilders {
			b.Release()
		}
		for _, b := range funcBuilders {
			b.Release()
		}
	}

	produced, err := op.applyLoop(numOutputRows, inputBuilders, funcBuilders)
	if err != nil {
		releaseBuilders()
		return nil, err
	}
	if produced == 0 {
		releaseBuilders()
		return nil, nil
	}

	return op.assembleBatch(inputBuilders, funcBuilders)
}

// Release frees the operator's partition source.
func (op *Operator) Release() {
	op.source.Release()
}

// newOutputBuilders creates one builder per pass-through input column and one
// per window function output column.
func (op *Operator) newOutputBuilders() ([]array.Builder, []array.Builder, error) {
	inputBuilders := make([]array.Builder, 0, op.schema.NumFields())
	funcBuilders := make([]array.Builder, 0, len(op.funcs))
	release := func() {
		for _, b := range inputBuilders {
			b.Release()
		}
		for _, b := range funcBuilders {
			b.Release()
		}
	}

	for i := 0; i < op.schema.NumFields(); i++ {
		b, err := newBuilder(op.schema.Field(i).Type, op.mem)
		if err != nil {
			release()
			return nil, nil, err
		}
		inputBuilders = append(inputBuilders, b)
	}
	for _, fn := range op.funcs {
		b, err := newBuilder(fn.OutputType(), op.mem)
		if err != nil {
			release()
			return nil, nil, err
		}
		funcBuilders = append(funcBuilders, b)
	}
	return inputBuilders, funcBuilders, nil
}

// newBuilder creates an array builder for the supported column types.
func newBuilder(dt arrow.DataType, mem memory.Allocator) (array.Builder, error) {
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
		return nil, errors.NewUnsupportedTypeError("GetOutput", dt.String())
	}
}

// assembleBatch turns the filled builders into the output batch.
func (op *Operator) assembleBatch(inputBuilders, funcBuilders []array.Builder) (*batch.Batch, error) {
	columns := make([]series.ISeries, 0, len(inputBuilders)+len(funcBuilders))
	for i, b := range inputBuilders {
		columns = append(columns, series.FromArray(op.schema.Field(i).Name, b.NewArray()))
		b.Release()
	}
	for w, b := range funcBuilders {
		columns = append(columns, series.FromArray(op.outputNames[w], b.NewArray()))
		b.Release()
	}

	out, err := batch.New(columns...)
	if err != nil {
		for _, col := range columns {
			col.Release()
		}
		return nil, err
	}
	return out, nil
}

// resetPartition advances to the next partition, if one is ready, and resets
// the per-partition cursor state and every function's partition state.
func (op *Operator) resetPartition() error {
	op.partitionOffset = 0
	op.peerStartRow = 0
	op.peerEndRow = 0
	op.currentPartition = nil

	if !op.source.HasNextPartition() {
		return nil
	}

	p, err := op.source.NextPartition()
	if err != nil {
		return err
	}
	op.currentPartition = p
	for _, fn := range op.funcs {
		fn.ResetPartition(p)
	}
	return nil
}

// applyLoop fills the output builders by traversing as many partitions as
// needed, handling partial partition output in both directions: a partition
// may span several output batches and a batch may span several partitions.
// It returns the number of rows produced.
func (op *Operator) applyLoop(numOutputRows int, inputBuilders, funcBuilders []array.Builder) (int, error) {
	if op.currentPartition == nil {
		panic(errors.NewInternalError("GetOutput", fmt.Errorf("apply loop entered without a partition")))
	}

	resultOffset := 0
	numOutputRowsLeft := numOutputRows
	for numOutputRowsLeft > 0 {
		rowsForCurrentPartition := op.currentPartition.NumRows() - op.partitionOffset
		if rowsForCurrentPartition <= numOutputRowsLeft {
			// The rest of the current partition fits in the output batch.
			end := op.partitionOffset + rowsForCurrentPartition
			if err := op.applyForPartitionRows(op.partitionOffset, end, resultOffset, inputBuilders, funcBuilders); err != nil {
				return 0, err
			}
			resultOffset += rowsForCurrentPartition
			numOutputRowsLeft -= rowsForCurrentPartition

			if err := op.resetPartition(); err != nil {
				return 0, err
			}
			if op.currentPartition == nil {
				// No more partitions ready; resume on the next GetOutput.
				break
			}
		} else {
			// Only part of the partition fits; emit that much and stop.
			end := op.partitionOffset + numOutputRowsLeft
			if err := op.applyForPartitionRows(op.partitionOffset, end, resultOffset, inputBuilders, funcBuilders); err != nil {
				return 0, err
			}
			resultOffset += numOutputRowsLeft
			numOutputRowsLeft = 0
		}
	}
	return resultOffset, nil
}

// applyForPartitionRows emits rows [startRow, endRow) of the current
// partition: pass-through input columns, then every window function over its
// computed (peer, frame, validity) buffers.
func (op *Operator) applyForPartitionRows(startRow, endRow, resultOffset int, inputBuilders, funcBuilders []array.Builder) error {
	numRows := endRow - startRow

	for i, b := range inputBuilders {
		if b.Len() != resultOffset {
			panic(errors.NewInternalError("GetOutput",
				fmt.Errorf("builder length %d does not match result offset %d", b.Len(), resultOffset)))
		}
		if err := op.currentPartition.ExtractColumn(i, op.partitionOffset, numRows, b); err != nil {
			return err
		}
	}

	if err := op.computePeerAndFrameBuffers(startRow, endRow); err != nil {
		return err
	}

	for w, fn := range op.funcs {
		err := fn.Apply(
			op.scratch.peerStarts[:numRows],
			op.scratch.peerEnds[:numRows],
			op.scratch.frameStarts[w][:numRows],
			op.scratch.frameEnds[w][:numRows],
			op.scratch.validity[w],
			resultOffset,
			funcBuilders[w],
		)
		if err != nil {
			return fmt.Errorf("applying %s: %w", op.outputNames[w], err)
		}
	}

	op.numProcessedRows += numRows
	op.partitionOffset += numRows
	return nil
}

// computePeerAndFrameBuffers fills the scratch buffers for rows
// [startRow, endRow) of the current partition.
func (op *Operator) computePeerAndFrameBuffers(startRow, endRow int) error {
	if op.currentPartition == nil {
		panic(errors.NewInternalError("GetOutput", fmt.Errorf("frame computation without a partition")))
	}
	numRows := endRow - startRow
	if numRows > op.scratch.capacity {
		panic(errors.NewInternalError("GetOutput",
			fmt.Errorf("row range %d exceeds scratch capacity %d", numRows, op.scratch.capacity)))
	}

	peerStart, peerEnd, err := op.currentPartition.ComputePeerGroups(
		startRow, endRow,
		op.peerStartRow, op.peerEndRow,
		op.scratch.peerStarts, op.scratch.peerEnds,
	)
	if err != nil {
		return err
	}
	op.peerStartRow = peerStart
	op.peerEndRow = peerEnd

	lastRow := op.currentPartition.NumRows() - 1
	for w := range op.funcs {
		frame := op.frames[w]
		op.scratch.markAllValid(w)

		if err := op.updateFrameBounds(frame, true, startRow, numRows,
			op.scratch.peerStarts, op.scratch.peerEnds, op.scratch.frameStarts[w]); err != nil {
			return err
		}
		if err := op.updateFrameBounds(frame, false, startRow, numRows,
			op.scratch.peerStarts, op.scratch.peerEnds, op.scratch.frameEnds[w]); err != nil {
			return err
		}

		if frame.hasOffsetBound() {
			// k offsets can cross the partition limits or produce empty
			// frames; fix the boundaries and mark the unusable rows.
			computeValidFrames(lastRow, numRows,
				op.scratch.frameStarts[w], op.scratch.frameEnds[w], op.scratch.validity[w])
		}
	}
	return nil
}
