// Package batch provides the row batch flowing into and out of the window
// operator: an ordered set of equally sized, named columnar series.
package batch

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/jobbine-joseph/velox/internal/errors"
	"github.com/jobbine-joseph/velox/internal/series"
)

// Batch is an immutable set of named columns of equal length. Column order is
// significant: the window operator passes input columns through in order and
// appends one column per window function.
type Batch struct {
	columns []series.ISeries
	byName  map[string]int
}

// New creates a Batch from the given columns. All columns must have distinct
// names and the same length.
func New(columns ...series.ISeries) (*Batch, error) {
	if len(columns) == 0 {
		return nil, errors.ErrEmptyBatch
	}

	byName := make(map[string]int, len(columns))
	numRows := columns[0].Len()
	for i, col := range columns {
		if _, exists := byName[col.Name()]; exists {
			return nil, errors.NewSpecificationError("NewBatch", fmt.Sprintf("duplicate column name: %s", col.Name()))
		}
		if col.Len() != numRows {
			return nil, errors.ErrMismatchedLength
		}
		byName[col.Name()] = i
	}

	return &Batch{columns: columns, byName: byName}, nil
}

// NumRows returns the number of rows in the batch.
func (b *Batch) NumRows() int {
	if len(b.columns) == 0 {
		return 0
	}
	return b.columns[0].Len()
}

// Width returns the number of columns.
func (b *Batch) Width() int {
	return len(b.columns)
}

// Columns returns the column names in order.
func (b *Batch) Columns() []string {
	names := make([]string, len(b.columns))
	for i, col := range b.columns {
		names[i] = col.Name()
	}
	return names
}

// Column returns the column with the given name.
func (b *Batch) Column(name string) (series.ISeries, bool) {
	idx, ok := b.byName[name]
	if !ok {
		return nil, false
	}
	return b.columns[idx], true
}

// ColumnAt returns the column at the given position.
func (b *Batch) ColumnAt(index int) series.ISeries {
	return b.columns[index]
}

// ColumnIndex returns the position of the named column, or -1 when absent.
func (b *Batch) ColumnIndex(name string) int {
	idx, ok := b.byName[name]
	if !ok {
		return -1
	}
	return idx
}

// Schema returns the Arrow schema of the batch's columns.
func (b *Batch) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(b.columns))
	for i, col := range b.columns {
		fields[i] = arrow.Field{Name: col.Name(), Type: col.DataType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// String returns a short description of the batch shape.
func (b *Batch) String() string {
	return fmt.Sprintf("Batch[%dx%d](%s)", b.NumRows(), b.Width(), strings.Join(b.Columns(), ", "))
}

// Release frees the memory of all columns.
func (b *Batch) Release() {
	for _, col := range b.columns {
		col.Release()
	}
	b.columns = nil
	b.byName = nil
}
