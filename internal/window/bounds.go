package window

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/jobbine-joseph/velox/internal/errors"
)

// updateFrameBounds fills out with the raw frame start (or end) row index of
// every row in [startRow, startRow+numRows) of the current partition. Raw
// bounds from k offsets may fall outside the partition; computeValidFrames
// corrects them afterwards.
func (op *Operator) updateFrameBounds(
	frame *resolvedFrame,
	isStartBound bool,
	startRow, numRows int,
	peerStarts, peerEnds []int,
	out []int,
) error {
	kind := frame.endKind
	arg := frame.end
	if isStartBound {
		kind = frame.startKind
		arg = frame.start
	}

	switch kind {
	case BoundUnboundedPreceding:
		for i := 0; i < numRows; i++ {
			out[i] = 0
		}
	case BoundUnboundedFollowing:
		lastRow := op.currentPartition.NumRows() - 1
		for i := 0; i < numRows; i++ {
			out[i] = lastRow
		}
	case BoundCurrentRow:
		if frame.frameType == FrameRange {
			peers := peerEnds
			if isStartBound {
				peers = peerStarts
			}
			copy(out[:numRows], peers[:numRows])
		} else {
			// In ROWS mode the current row is its own frame edge.
			for i := 0; i < numRows; i++ {
				out[i] = startRow + i
			}
		}
	case BoundPreceding:
		return op.updateKRowsFrameBounds(true, arg, startRow, numRows, out)
	case BoundFollowing:
		return op.updateKRowsFrameBounds(false, arg, startRow, numRows, out)
	default:
		panic(errors.NewInternalError("GetOutput", fmt.Errorf("invalid frame bound kind %d", kind)))
	}
	return nil
}

// updateKRowsFrameBounds computes k PRECEDING / k FOLLOWING ROWS bounds.
// Preceding subtracts from the current position, following moves ahead.
func (op *Operator) updateKRowsFrameBounds(
	isPreceding bool,
	arg *boundArg,
	startRow, numRows int,
	out []int,
) error {
	if arg.channel == constantChannel {
		offset := int(arg.constant)
		if isPreceding {
			offset = -offset
		}
		for i := 0; i < numRows; i++ {
			out[i] = startRow + i + offset
		}
		return nil
	}

	if err := op.extractOffsets(arg, numRows); err != nil {
		return err
	}
	for i := 0; i < numRows; i++ {
		offset := int(arg.scratch[i])
		if isPreceding {
			offset = -offset
		}
		out[i] = startRow + i + offset
	}
	return nil
}

// extractOffsets materializes numRows per-row offsets of a column-valued
// bound into the bound's scratch buffer, starting at the operator's current
// partition offset, validating each one.
func (op *Operator) extractOffsets(arg *boundArg, numRows int) error {
	col := op.currentPartition.Column(arg.channel)

	for i := 0; i < numRows; i++ {
		row := op.partitionOffset + i
		if col.IsNull(row) {
			return errors.NewDataError("GetOutput", arg.column, "window frame offset must not be null")
		}

		var offset int64
		switch a := col.(type) {
		case *array.Int64:
			offset = a.Value(row)
		case *array.Int32:
			offset = int64(a.Value(row))
		default:
			panic(errors.NewInternalError("GetOutput",
				fmt.Errorf("offset column %q resolved to non-integer array %T", arg.column, col)))
		}

		if offset < 0 {
			return errors.NewDataError("GetOutput", arg.column,
				fmt.Sprintf("window frame %d offset must not be negative", offset))
		}
		arg.scratch[i] = offset
	}
	return nil
}

// computeValidFrames identifies rows whose raw frame violates the framing
// requirements and clears their bits in the validity bitmap. Valid frames are
// clamped to the partition: a frame is usable iff frameStart <= frameEnd, its
// end does not fall before the partition and its start does not fall after
// lastRow. Frame bound contents of invalid rows are unspecified.
func computeValidFrames(lastRow, numRows int, frameStarts, frameEnds []int, validity []byte) {
	for i := 0; i < numRows; i++ {
		frameStart := frameStarts[i]
		frameEnd := frameEnds[i]
		if frameStart <= frameEnd && frameEnd >= 0 && frameStart <= lastRow {
			frameStarts[i] = max(frameStart, 0)
			frameEnds[i] = min(frameEnd, lastRow)
		} else {
			bitutil.ClearBit(validity, i)
		}
	}
}
