// Package partition supplies ordered row partitions to the window operator.
//
// A Partition is a maximal run of rows sharing equal PARTITION BY key values,
// already sorted by the ORDER BY keys. The SortSource builds partitions from
// buffered input batches and hands them to the operator one at a time.
package partition

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/jobbine-joseph/velox/internal/errors"
)

// Partition is one ordered partition of rows. It owns its column arrays and is
// immutable once built. Row indices in all methods are partition-relative and
// zero-based.
type Partition struct {
	columns      []arrow.Array
	orderColumns []int
	numRows      int
}

// NumRows returns the number of rows in the partition.
func (p *Partition) NumRows() int {
	return p.numRows
}

// Column returns the partition's column at the given input channel index. The
// returned array is borrowed; it stays valid until the partition is released.
func (p *Partition) Column(index int) arrow.Array {
	return p.columns[index]
}

// ExtractColumn appends numRows values of the given column, starting at the
// partition-relative offset, to dest. The destination builder's current length
// is the destination offset.
func (p *Partition) ExtractColumn(column, offset, numRows int, dest array.Builder) error {
	if offset < 0 || offset+numRows > p.numRows {
		return errors.NewInternalError("ExtractColumn",
			fmt.Errorf("row range [%d, %d) outside partition of %d rows", offset, offset+numRows, p.numRows))
	}

	arr := p.columns[column]
	for i := offset; i < offset+numRows; i++ {
		if err := appendValue(dest, arr, i); err != nil {
			return err
		}
	}
	return nil
}

// ComputePeerGroups fills peerStarts and peerEnds with the inclusive peer
// group bounds for rows [startRow, endRow). Peers are rows with equal ORDER BY
// key values. prevPeerStart and prevPeerEnd carry the bounds computed by the
// previous call within this partition (prevPeerEnd exclusive); the returned
// pair must be passed to the next call. Peer bounds are monotonically
// non-decreasing across successive calls.
//
// Without ORDER BY keys the whole partition is a single peer group.
func (p *Partition) ComputePeerGroups(
	startRow, endRow, prevPeerStart, prevPeerEnd int,
	peerStarts, peerEnds []int,
) (int, int, error) {
	if len(p.orderColumns) == 0 {
		for j := range peerStarts[:endRow-startRow] {
			peerStarts[j] = 0
			peerEnds[j] = p.numRows - 1
		}
		return 0, p.numRows, nil
	}

	peerStart := prevPeerStart
	peerEnd := prevPeerEnd
	for i, j := startRow, 0; i < endRow; i, j = i+1, j+1 {
		if i == 0 || i >= peerEnd {
			peerStart = i
			peerEnd = i + 1
			for peerEnd < p.numRows {
				equal, err := p.peersEqual(peerStart, peerEnd)
				if err != nil {
					return 0, 0, err
				}
				if !equal {
					break
				}
				peerEnd++
			}
		}
		peerStarts[j] = peerStart
		peerEnds[j] = peerEnd - 1
	}
	return peerStart, peerEnd, nil
}

// peersEqual reports whether two rows share equal ORDER BY key values.
func (p *Partition) peersEqual(row1, row2 int) (bool, error) {
	for _, col := range p.orderColumns {
		cmp, err := compareValues(p.columns[col], row1, row2)
		if err != nil {
			return false, fmt.Errorf("comparing peer rows: %w", err)
		}
		if cmp != 0 {
			return false, nil
		}
	}
	return true, nil
}

// Release frees the partition's column arrays.
func (p *Partition) Release() {
	for _, col := range p.columns {
		col.Release()
	}
	p.columns = nil
}

// appendValue appends the value at a row index of arr to the builder,
// preserving nulls.
func appendValue(dest array.Builder, arr arrow.Array, row int) error {
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
		return errors.NewUnsupportedTypeError("ExtractColumn", arr.DataType().String())
	}
	return nil
}
