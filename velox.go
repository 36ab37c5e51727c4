// Package velox provides a partitioned-frame evaluation engine for SQL window
// functions over Arrow-backed columnar batches. This package is the sole
// public API of the engine.
//
// Input rows are pushed as batches, partitioned and ordered by the configured
// keys, and each declared window function produces one output column appended
// after the pass-through input columns:
//
//	op, err := velox.NewWindowOperator(schema,
//		[]string{"region"},
//		[]velox.OrderKey{{Column: "amount", Ascending: true}},
//		[]velox.FunctionSpec{{Name: "rank", OutputName: "r"}},
//		velox.Config{}, nil)
package velox

import (
	"context"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/config"
	"github.com/jobbine-joseph/velox/internal/errors"
	"github.com/jobbine-joseph/velox/internal/parallel"
	"github.com/jobbine-joseph/velox/internal/partition"
	"github.com/jobbine-joseph/velox/internal/series"
	"github.com/jobbine-joseph/velox/internal/version"
	"github.com/jobbine-joseph/velox/internal/window"
	"github.com/jobbine-joseph/velox/internal/winfunc"
)

// ISeries provides a type-erased interface for Series of any type
type ISeries interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	String() string
	Array() arrow.Array
	Release()
}

// Config configures the engine. The zero value selects defaults.
type Config = config.Config

// OrderKey names one ordering column within each partition.
type OrderKey = partition.OrderKey

// FunctionSpec declares one window function over the operator's window.
type FunctionSpec = window.FunctionSpec

// FrameSpec is the declarative frame description of one window function.
type FrameSpec = window.FrameSpec

// Bound is one frame boundary.
type Bound = window.Bound

// Frame and boundary builders.
var (
	Rows               = window.Rows
	Range              = window.Range
	DefaultFrame       = window.DefaultFrame
	UnboundedPreceding = window.UnboundedPreceding
	Preceding          = window.Preceding
	PrecedingColumn    = window.PrecedingColumn
	CurrentRow         = window.CurrentRow
	Following          = window.Following
	FollowingColumn    = window.FollowingColumn
	UnboundedFollowing = window.UnboundedFollowing
)

// bytesPerValue is the estimated in-memory size of one columnar value, used
// to translate the memory threshold into an output batch row cap.
const bytesPerValue = 8

// Error classification helpers.
var (
	IsSpecificationError = errors.IsSpecification
	IsDataError          = errors.IsData
)

// Batch is the public type for a row batch. It wraps the internal batch to
// hide implementation details.
type Batch struct {
	b *batch.Batch
}

// NewBatch creates a batch from equally sized, distinctly named columns.
func NewBatch(columns ...ISeries) (*Batch, error) {
	internalColumns := make([]series.ISeries, len(columns))
	for i, col := range columns {
		internalColumns[i] = col
	}
	b, err := batch.New(internalColumns...)
	if err != nil {
		return nil, err
	}
	return &Batch{b: b}, nil
}

// NewSeries creates a new typed Series from values.
func NewSeries[T any](name string, values []T, mem memory.Allocator) ISeries {
	return series.New(name, values, mem)
}

// NewNullableSeries creates a new typed Series with a validity mask; valid[i]
// false marks row i null.
func NewNullableSeries[T any](name string, values []T, valid []bool, mem memory.Allocator) ISeries {
	return series.NewNullable(name, values, valid, mem)
}

// NumRows returns the number of rows.
func (b *Batch) NumRows() int {
	return b.b.NumRows()
}

// Width returns the number of columns.
func (b *Batch) Width() int {
	return b.b.Width()
}

// Columns returns the column names in order.
func (b *Batch) Columns() []string {
	return b.b.Columns()
}

// Column returns the column with the given name.
func (b *Batch) Column(name string) (ISeries, bool) {
	col, ok := b.b.Column(name)
	return col, ok
}

// Schema returns the Arrow schema of the batch's columns.
func (b *Batch) Schema() *arrow.Schema {
	return b.b.Schema()
}

// String returns a string representation of the batch.
func (b *Batch) String() string {
	return b.b.String()
}

// Release frees the batch's columns.
func (b *Batch) Release() {
	b.b.Release()
}

// WindowOperator is the public type for the window evaluation operator.
//
// Usage follows a push/pull cycle: push batches with AddInput, signal the end
// of input with NoMoreInput, then pull output batches with GetOutput until it
// returns nil.
type WindowOperator struct {
	op *window.Operator
}

// NewWindowOperator constructs a window operator over the given input schema.
func NewWindowOperator(
	schema *arrow.Schema,
	partitionBy []string,
	orderBy []OrderKey,
	specs []FunctionSpec,
	cfg Config,
	mem memory.Allocator,
) (*WindowOperator, error) {
	op, err := window.NewOperator(schema, partitionBy, orderBy, specs, cfg, mem)
	if err != nil {
		return nil, err
	}
	return &WindowOperator{op: op}, nil
}

// AddInput buffers a batch of input rows. The operator takes ownership.
func (w *WindowOperator) AddInput(b *Batch) error {
	return w.op.AddInput(b.b)
}

// NoMoreInput signals the end of input.
func (w *WindowOperator) NoMoreInput() error {
	return w.op.NoMoreInput()
}

// GetOutput produces the next output batch, or nil when none is available.
func (w *WindowOperator) GetOutput() (*Batch, error) {
	b, err := w.op.GetOutput()
	if err != nil || b == nil {
		return nil, err
	}
	return &Batch{b: b}, nil
}

// Release frees the operator's buffered state.
func (w *WindowOperator) Release() {
	w.op.Release()
}

// FunctionNames returns the registered window function names in sorted order.
func FunctionNames() []string {
	return winfunc.Names()
}

// Version returns the engine version string.
func Version() string {
	return version.Version
}

// RunWindow evaluates the window definition over the given batches and
// returns all output batches. Inputs above the configured lane threshold run
// on parallel operator lanes, one whole partition per lane; smaller inputs
// run on a single operator. RunWindow takes ownership of the input batches;
// the caller owns the returned ones.
func RunWindow(
	ctx context.Context,
	schema *arrow.Schema,
	partitionBy []string,
	orderBy []OrderKey,
	specs []FunctionSpec,
	cfg Config,
	mem memory.Allocator,
	batches ...*Batch,
) ([]*Batch, error) {
	cfg = cfg.WithDefaults()

	totalRows := 0
	for _, b := range batches {
		totalRows += b.NumRows()
	}

	// Keep each output batch under the memory threshold, estimating eight
	// bytes per value.
	if cfg.MemoryThreshold > 0 {
		maxRows := int(cfg.MemoryThreshold / int64((schema.NumFields()+len(specs))*bytesPerValue))
		if maxRows < 1 {
			maxRows = 1
		}
		if maxRows < cfg.OutputBatchRows {
			cfg.OutputBatchRows = maxRows
		}
	}

	if totalRows >= cfg.LaneThreshold && cfg.EffectiveLaneCount() > 1 && len(partitionBy) > 0 {
		if cfg.VerboseLogging {
			log.Printf("velox: running %d rows on %d lanes (batch rows %d)",
				totalRows, cfg.EffectiveLaneCount(), cfg.OutputBatchRows)
		}
		return runLanes(ctx, schema, partitionBy, orderBy, specs, cfg, mem, batches)
	}
	if cfg.VerboseLogging {
		log.Printf("velox: running %d rows on a single operator (batch rows %d)",
			totalRows, cfg.OutputBatchRows)
	}
	return runSingle(ctx, schema, partitionBy, orderBy, specs, cfg, mem, batches)
}

func runSingle(
	ctx context.Context,
	schema *arrow.Schema,
	partitionBy []string,
	orderBy []OrderKey,
	specs []FunctionSpec,
	cfg Config,
	mem memory.Allocator,
	batches []*Batch,
) ([]*Batch, error) {
	op, err := NewWindowOperator(schema, partitionBy, orderBy, specs, cfg, mem)
	if err != nil {
		return nil, err
	}
	defer op.Release()

	for _, b := range batches {
		if err := op.AddInput(b); err != nil {
			return nil, err
		}
	}
	if err := op.NoMoreInput(); err != nil {
		return nil, err
	}

	var out []*Batch
	for {
		if err := ctx.Err(); err != nil {
			releaseAll(out)
			return nil, err
		}
		b, err := op.GetOutput()
		if err != nil {
			releaseAll(out)
			return nil, err
		}
		if b == nil {
			return out, nil
		}
		out = append(out, b)
	}
}

func runLanes(
	ctx context.Context,
	schema *arrow.Schema,
	partitionBy []string,
	orderBy []OrderKey,
	specs []FunctionSpec,
	cfg Config,
	mem memory.Allocator,
	batches []*Batch,
) ([]*Batch, error) {
	runner, err := parallel.NewLaneRunner(schema, partitionBy, orderBy, specs, cfg, mem)
	if err != nil {
		return nil, err
	}
	defer runner.Release()

	for _, b := range batches {
		if err := runner.AddInput(b.b); err != nil {
			return nil, err
		}
	}

	internalOut, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Batch, len(internalOut))
	for i, b := range internalOut {
		out[i] = &Batch{b: b}
	}
	return out, nil
}

func releaseAll(batches []*Batch) {
	for _, b := range batches {
		b.Release()
	}
}
