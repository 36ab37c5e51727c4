package window

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/jobbine-joseph/velox/internal/errors"
)

// boundArg is the runtime form of a k-offset frame boundary: either a
// constant validated at resolution time, or an input column channel with a
// reusable scratch buffer that materializes the per-row offsets of the active
// row range.
type boundArg struct {
	// channel is the input column index, or constantChannel for constants.
	channel int
	// column is the referenced column name, kept for error messages.
	column string
	// constant holds the offset when channel == constantChannel.
	constant int64
	// scratch receives the extracted per-row offsets; sized to the
	// operator's output batch capacity and overwritten every batch.
	scratch []int64
}

const constantChannel = -1

// resolvedFrame is the immutable runtime frame of one window function.
// start/end are nil for bound kinds that carry no offset.
type resolvedFrame struct {
	frameType FrameType
	startKind BoundKind
	endKind   BoundKind
	start     *boundArg
	end       *boundArg
}

// resolveFrame translates a declarative FrameSpec into its runtime form
// against the input schema. capacity is the operator's output batch row
// count, sizing the scratch buffers of column-valued offsets.
func resolveFrame(spec *FrameSpec, schema *arrow.Schema, capacity int) (*resolvedFrame, error) {
	if spec == nil {
		spec = DefaultFrame()
	}

	start, err := resolveBound(spec.start, spec.frameType, schema, capacity)
	if err != nil {
		return nil, err
	}
	end, err := resolveBound(spec.end, spec.frameType, schema, capacity)
	if err != nil {
		return nil, err
	}

	return &resolvedFrame{
		frameType: spec.frameType,
		startKind: spec.start.kind,
		endKind:   spec.end.kind,
		start:     start,
		end:       end,
	}, nil
}

// resolveBound produces the boundArg for one boundary, or nil when the kind
// carries no offset.
func resolveBound(b *Bound, frameType FrameType, schema *arrow.Schema, capacity int) (*boundArg, error) {
	if b.kind != BoundPreceding && b.kind != BoundFollowing {
		return nil, nil
	}

	if frameType == FrameRange {
		// The original engine leaves RANGE k-offset semantics undefined;
		// reject rather than invent them.
		return nil, errors.NewSpecificationError("ResolveFrame",
			fmt.Sprintf("k %s frame is only supported in ROWS mode", precedingOrFollowing(b.kind)))
	}

	if b.hasConstant {
		if b.constant < 0 {
			return nil, errors.NewSpecificationError("ResolveFrame",
				fmt.Sprintf("window frame %d offset must not be negative", b.constant))
		}
		return &boundArg{channel: constantChannel, constant: b.constant}, nil
	}

	if b.column == "" {
		return nil, errors.NewSpecificationError("ResolveFrame",
			fmt.Sprintf("%s bound requires an offset", precedingOrFollowing(b.kind)))
	}

	indices := schema.FieldIndices(b.column)
	if len(indices) == 0 {
		return nil, errors.NewColumnNotFoundError("ResolveFrame", b.column)
	}
	channel := indices[0]

	switch schema.Field(channel).Type.ID() {
	case arrow.INT32, arrow.INT64:
	default:
		return nil, &errors.OperatorError{
			Op:      "ResolveFrame",
			Column:  b.column,
			Message: "k frame bound must be an integer type",
			Kind:    errors.KindSpecification,
		}
	}

	return &boundArg{
		channel: channel,
		column:  b.column,
		scratch: make([]int64, capacity),
	}, nil
}

// hasOffsetBound reports whether either boundary carries a k offset, which is
// the only case that can produce invalid frames.
func (f *resolvedFrame) hasOffsetBound() bool {
	return f.start != nil || f.end != nil
}

func precedingOrFollowing(kind BoundKind) string {
	if kind == BoundPreceding {
		return "preceding"
	}
	return "following"
}
