package winfunc

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/jobbine-joseph/velox/internal/errors"
	"github.com/jobbine-joseph/velox/internal/partition"
	"golang.org/x/exp/constraints"
)

// Aggregate functions reduce each output row's frame to a single value. Null
// argument values are skipped; rows with an unusable frame produce null
// (count produces zero).

// aggKind selects the reduction.
type aggKind int

const (
	aggSum aggKind = iota
	aggCount
	aggAvg
	aggMin
	aggMax
)

func init() {
	for name, kind := range map[string]aggKind{
		"sum":   aggSum,
		"count": aggCount,
		"avg":   aggAvg,
		"min":   aggMin,
		"max":   aggMax,
	} {
		name, kind := name, kind
		Register(name, func(args Args) (WindowFunction, error) {
			if err := requireArg(name, args); err != nil {
				return nil, err
			}
			switch args.ArgType.ID() {
			case arrow.INT64, arrow.FLOAT64:
			default:
				return nil, errors.NewUnsupportedTypeError("CreateFunction", args.ArgType.String())
			}
			return &frameAggregate{kind: kind, channel: args.ArgChannel, argType: args.ArgType}, nil
		})
	}
}

// frameAggregate implements SUM, COUNT, AVG, MIN and MAX over frames.
type frameAggregate struct {
	kind    aggKind
	channel int
	argType arrow.DataType

	current *partition.Partition
}

func (f *frameAggregate) OutputType() arrow.DataType {
	switch f.kind {
	case aggCount:
		return arrow.PrimitiveTypes.Int64
	case aggAvg:
		return arrow.PrimitiveTypes.Float64
	default:
		return f.argType
	}
}

func (f *frameAggregate) ResetPartition(p *partition.Partition) {
	f.current = p
}

func (f *frameAggregate) Apply(
	peerStarts, _ []int,
	frameStarts, frameEnds []int,
	validity []byte,
	_ int,
	dest array.Builder,
) error {
	switch arr := f.current.Column(f.channel).(type) {
	case *array.Int64:
		applyAggregate(f, arr.IsNull, arr.Value, len(peerStarts), frameStarts, frameEnds, validity, dest)
	case *array.Float64:
		applyAggregate(f, arr.IsNull, arr.Value, len(peerStarts), frameStarts, frameEnds, validity, dest)
	default:
		return errors.NewUnsupportedTypeError("Apply", arr.DataType().String())
	}
	return nil
}

// applyAggregate runs the reduction for every row of the sub-range.
func applyAggregate[T constraints.Integer | constraints.Float](
	f *frameAggregate,
	isNull func(int) bool,
	value func(int) T,
	numRows int,
	frameStarts, frameEnds []int,
	validity []byte,
	dest array.Builder,
) {
	for i := 0; i < numRows; i++ {
		if !bitutil.BitIsSet(validity, i) {
			if f.kind == aggCount {
				dest.(*array.Int64Builder).Append(0)
			} else {
				dest.AppendNull()
			}
			continue
		}

		acc, count := reduceRange(isNull, value, frameStarts[i], frameEnds[i], f.kind)
		switch f.kind {
		case aggCount:
			dest.(*array.Int64Builder).Append(count)
		case aggAvg:
			if count == 0 {
				dest.AppendNull()
			} else {
				dest.(*array.Float64Builder).Append(float64(acc) / float64(count))
			}
		default:
			if count == 0 {
				dest.AppendNull()
			} else {
				appendNumeric(dest, acc)
			}
		}
	}
}

// reduceRange folds the non-null values of the inclusive row range [start, end].
func reduceRange[T constraints.Integer | constraints.Float](
	isNull func(int) bool,
	value func(int) T,
	start, end int,
	kind aggKind,
) (T, int64) {
	var acc T
	var count int64
	for row := start; row <= end; row++ {
		if isNull(row) {
			continue
		}
		val := value(row)
		switch kind {
		case aggSum, aggAvg:
			acc += val
		case aggMin:
			if count == 0 || val < acc {
				acc = val
			}
		case aggMax:
			if count == 0 || val > acc {
				acc = val
			}
		case aggCount:
		}
		count++
	}
	return acc, count
}

// appendNumeric appends a numeric value to the matching typed builder.
func appendNumeric[T constraints.Integer | constraints.Float](dest array.Builder, val T) {
	switch b := dest.(type) {
	case *array.Int64Builder:
		b.Append(int64(val))
	case *array.Float64Builder:
		b.Append(float64(val))
	default:
		panic(errors.NewInternalError("Apply", nil))
	}
}
