// Package window implements the partitioned-frame evaluation engine for SQL
// window functions.
//
// The Operator consumes ordered partitions from a partition.Source, computes
// each output row's frame of peer and neighboring rows per window function,
// and invokes the functions over those frames to produce one new output
// column per function, passing input columns through unchanged.
package window

import (
	"fmt"
	"strings"
)

// FrameType selects between physical row offsets and peer-group framing.
type FrameType int

const (
	FrameRows FrameType = iota
	FrameRange
)

// BoundKind identifies a frame boundary kind.
type BoundKind int

const (
	BoundUnboundedPreceding BoundKind = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// Bound is one frame boundary. Preceding and Following bounds carry an offset
// that is either a constant or a per-row value read from an input column.
type Bound struct {
	kind        BoundKind
	constant    int64
	hasConstant bool
	column      string
}

// UnboundedPreceding creates an UNBOUNDED PRECEDING boundary.
func UnboundedPreceding() *Bound {
	return &Bound{kind: BoundUnboundedPreceding}
}

// Preceding creates a k PRECEDING boundary with a constant offset.
func Preceding(offset int64) *Bound {
	return &Bound{kind: BoundPreceding, constant: offset, hasConstant: true}
}

// PrecedingColumn creates a k PRECEDING boundary reading its offset per row
// from the named input column.
func PrecedingColumn(column string) *Bound {
	return &Bound{kind: BoundPreceding, column: column}
}

// CurrentRow creates a CURRENT ROW boundary.
func CurrentRow() *Bound {
	return &Bound{kind: BoundCurrentRow}
}

// Following creates a k FOLLOWING boundary with a constant offset.
func Following(offset int64) *Bound {
	return &Bound{kind: BoundFollowing, constant: offset, hasConstant: true}
}

// FollowingColumn creates a k FOLLOWING boundary reading its offset per row
// from the named input column.
func FollowingColumn(column string) *Bound {
	return &Bound{kind: BoundFollowing, column: column}
}

// UnboundedFollowing creates an UNBOUNDED FOLLOWING boundary.
func UnboundedFollowing() *Bound {
	return &Bound{kind: BoundUnboundedFollowing}
}

// String returns the SQL rendering of the boundary.
func (b *Bound) String() string {
	switch b.kind {
	case BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case BoundPreceding:
		if b.column != "" {
			return b.column + " PRECEDING"
		}
		return fmt.Sprintf("%d PRECEDING", b.constant)
	case BoundCurrentRow:
		return "CURRENT ROW"
	case BoundFollowing:
		if b.column != "" {
			return b.column + " FOLLOWING"
		}
		return fmt.Sprintf("%d FOLLOWING", b.constant)
	case BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING"
	default:
		return "UNKNOWN"
	}
}

// FrameSpec is the declarative frame description of one window function.
type FrameSpec struct {
	frameType FrameType
	start     *Bound
	end       *Bound
}

// Rows creates a ROWS frame between the two boundaries.
func Rows(start, end *Bound) *FrameSpec {
	return &FrameSpec{frameType: FrameRows, start: start, end: end}
}

// Range creates a RANGE frame between the two boundaries.
func Range(start, end *Bound) *FrameSpec {
	return &FrameSpec{frameType: FrameRange, start: start, end: end}
}

// DefaultFrame returns the SQL default frame,
// RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW.
func DefaultFrame() *FrameSpec {
	return Range(UnboundedPreceding(), CurrentRow())
}

// Type returns the frame type.
func (f *FrameSpec) Type() FrameType {
	return f.frameType
}

// String returns the SQL rendering of the frame.
func (f *FrameSpec) String() string {
	frameTypeName := "ROWS"
	if f.frameType == FrameRange {
		frameTypeName = "RANGE"
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", frameTypeName, f.start.String(), f.end.String())
}

// FunctionSpec declares one window function over the operator's window.
type FunctionSpec struct {
	// Name is the registry name of the function (e.g. "row_number", "sum").
	Name string
	// ArgColumn names the input column passed to the function; empty for
	// functions that take no argument.
	ArgColumn string
	// OutputName names the produced output column; defaults to Name.
	OutputName string
	// Frame describes the function's frame; nil selects DefaultFrame.
	Frame *FrameSpec
}

// outputName returns the effective output column name.
func (s FunctionSpec) outputName() string {
	if s.OutputName != "" {
		return s.OutputName
	}
	return s.Name
}

// String returns the SQL-ish rendering of the function spec.
func (s FunctionSpec) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	sb.WriteString(s.ArgColumn)
	sb.WriteByte(')')
	if s.Frame != nil {
		sb.WriteString(" OVER (")
		sb.WriteString(s.Frame.String())
		sb.WriteByte(')')
	}
	return sb.String()
}
