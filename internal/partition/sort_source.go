package partition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	xxhash "github.com/cespare/xxhash/v2"
	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/errors"
)

// OrderKey specifies one ORDER BY key column.
type OrderKey struct {
	Column    string
	Ascending bool
}

// Source produces ordered partitions for the window operator. A partition
// obtained from NextPartition stays valid until the next NextPartition call.
type Source interface {
	AddInput(b *batch.Batch) error
	NoMoreInput() error
	HasNextPartition() bool
	NextPartition() (*Partition, error)
	Release()
}

// SortSource is an in-memory Source. It buffers input batches until
// NoMoreInput, then sorts all rows by (partition keys, order keys) and groups
// them into partitions. Until NoMoreInput is called HasNextPartition reports
// false, which the operator surfaces as backpressure.
type SortSource struct {
	mem         memory.Allocator
	partitionBy []string
	orderBy     []OrderKey

	buffered    []*batch.Batch
	columnNames []string
	partIdx     []int
	orderIdx    []int

	partitions []*Partition
	next       int
	current    *Partition
	built      bool
}

// NewSortSource creates a SortSource partitioning by the given key columns and
// ordering rows within each partition by the given order keys.
func NewSortSource(partitionBy []string, orderBy []OrderKey, mem memory.Allocator) *SortSource {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &SortSource{
		mem:         mem,
		partitionBy: partitionBy,
		orderBy:     orderBy,
	}
}

// AddInput buffers a batch. The source takes ownership of the batch and
// releases it after sorting. All batches must share the same column layout.
func (s *SortSource) AddInput(b *batch.Batch) error {
	if s.built {
		return errors.NewInternalError("AddInput", fmt.Errorf("input after NoMoreInput"))
	}

	if s.columnNames == nil {
		if err := s.resolveKeys(b); err != nil {
			return err
		}
	} else if !sameColumns(s.columnNames, b.Columns()) {
		return errors.NewSpecificationError("AddInput", "batch column layout differs from previous batches")
	}

	s.buffered = append(s.buffered, b)
	return nil
}

// resolveKeys resolves partition and order key names against the first batch.
func (s *SortSource) resolveKeys(b *batch.Batch) error {
	s.columnNames = b.Columns()

	s.partIdx = make([]int, 0, len(s.partitionBy))
	for _, name := range s.partitionBy {
		idx := b.ColumnIndex(name)
		if idx < 0 {
			return errors.NewColumnNotFoundError("AddInput", name)
		}
		s.partIdx = append(s.partIdx, idx)
	}

	s.orderIdx = make([]int, 0, len(s.orderBy))
	for _, key := range s.orderBy {
		idx := b.ColumnIndex(key.Column)
		if idx < 0 {
			return errors.NewColumnNotFoundError("AddInput", key.Column)
		}
		s.orderIdx = append(s.orderIdx, idx)
	}

	return nil
}

// NoMoreInput sorts the buffered rows and builds the partitions.
func (s *SortSource) NoMoreInput() error {
	if s.built {
		return nil
	}
	s.built = true

	totalRows := 0
	for _, b := range s.buffered {
		totalRows += b.NumRows()
	}
	if totalRows == 0 {
		s.releaseBuffered()
		return nil
	}

	combined, err := s.combineBatches(totalRows)
	if err != nil {
		s.releaseBuffered()
		return err
	}
	defer func() {
		for _, arr := range combined {
			arr.Release()
		}
	}()
	s.releaseBuffered()

	indices, err := s.sortRows(combined, totalRows)
	if err != nil {
		return err
	}

	return s.buildPartitions(combined, indices)
}

// combineBatches concatenates the buffered batches column-wise.
func (s *SortSource) combineBatches(totalRows int) ([]arrow.Array, error) {
	combined := make([]arrow.Array, 0, len(s.columnNames))
	for c := range s.columnNames {
		builder, err := newBuilderFor(s.buffered[0].ColumnAt(c).DataType(), s.mem)
		if err != nil {
			for _, arr := range combined {
				arr.Release()
			}
			return nil, err
		}
		builder.Reserve(totalRows)
		for _, b := range s.buffered {
			arr := b.ColumnAt(c).Array()
			for i := 0; i < arr.Len(); i++ {
				if appendErr := appendValue(builder, arr, i); appendErr != nil {
					arr.Release()
					builder.Release()
					for _, a := range combined {
						a.Release()
					}
					return nil, appendErr
				}
			}
			arr.Release()
		}
		combined = append(combined, builder.NewArray())
		builder.Release()
	}
	return combined, nil
}

// sortRows returns row indices sorted by (partition keys, order keys).
func (s *SortSource) sortRows(combined []arrow.Array, totalRows int) ([]int, error) {
	indices := make([]int, totalRows)
	for i := range indices {
		indices[i] = i
	}

	var sortErr error
	sort.SliceStable(indices, func(x, y int) bool {
		ri, rj := indices[x], indices[y]
		for _, col := range s.partIdx {
			cmp, err := compareValues(combined[col], ri, rj)
			if err != nil {
				sortErr = err
				return false
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		for k, col := range s.orderIdx {
			cmp, err := compareValues(combined[col], ri, rj)
			if err != nil {
				sortErr = err
				return false
			}
			if cmp != 0 {
				if s.orderBy[k].Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		return false
	})
	if sortErr != nil {
		return nil, fmt.Errorf("sorting rows: %w", sortErr)
	}
	return indices, nil
}

// buildPartitions walks the sorted rows, detects partition boundaries and
// gathers each group into an owned Partition. Boundary detection hashes the
// partition key string and only falls back to a full key comparison when the
// digests collide.
func (s *SortSource) buildPartitions(combined []arrow.Array, indices []int) error {
	digests := make([]uint64, len(indices))
	for i, row := range indices {
		digests[i] = xxhash.Sum64String(s.partitionKey(combined, row))
	}

	groupStart := 0
	for i := 1; i <= len(indices); i++ {
		boundary := i == len(indices)
		if !boundary && digests[i] != digests[groupStart] {
			boundary = true
		} else if !boundary {
			equal, err := s.partitionKeysEqual(combined, indices[groupStart], indices[i])
			if err != nil {
				return err
			}
			boundary = !equal
		}
		if boundary {
			p, err := s.gatherPartition(combined, indices[groupStart:i])
			if err != nil {
				return err
			}
			s.partitions = append(s.partitions, p)
			groupStart = i
		}
	}
	return nil
}

// partitionKey renders a row's partition key values as a single string.
func (s *SortSource) partitionKey(combined []arrow.Array, row int) string {
	var key strings.Builder
	for i, col := range s.partIdx {
		if i > 0 {
			key.WriteByte('|')
		}
		key.WriteString(keyValueString(combined[col], row))
	}
	return key.String()
}

// partitionKeysEqual compares the partition key values of two rows.
func (s *SortSource) partitionKeysEqual(combined []arrow.Array, row1, row2 int) (bool, error) {
	for _, col := range s.partIdx {
		cmp, err := compareValues(combined[col], row1, row2)
		if err != nil {
			return false, fmt.Errorf("comparing partition keys: %w", err)
		}
		if cmp != 0 {
			return false, nil
		}
	}
	return true, nil
}

// gatherPartition copies the given sorted rows into a new Partition.
func (s *SortSource) gatherPartition(combined []arrow.Array, rows []int) (*Partition, error) {
	columns := make([]arrow.Array, 0, len(combined))
	for _, arr := range combined {
		builder, err := newBuilderFor(arr.DataType(), s.mem)
		if err != nil {
			for _, col := range columns {
				col.Release()
			}
			return nil, err
		}
		builder.Reserve(len(rows))
		for _, row := range rows {
			if appendErr := appendValue(builder, arr, row); appendErr != nil {
				builder.Release()
				for _, col := range columns {
					col.Release()
				}
				return nil, appendErr
			}
		}
		columns = append(columns, builder.NewArray())
		builder.Release()
	}

	return &Partition{
		columns:      columns,
		orderColumns: s.orderIdx,
		numRows:      len(rows),
	}, nil
}

// HasNextPartition reports whether another partition is ready.
func (s *SortSource) HasNextPartition() bool {
	return s.built && s.next < len(s.partitions)
}

// NextPartition returns the next partition. The previously returned partition
// is released; callers must not use it afterwards.
func (s *SortSource) NextPartition() (*Partition, error) {
	if !s.HasNextPartition() {
		return nil, errors.NewInternalError("NextPartition", fmt.Errorf("no partition available"))
	}
	if s.current != nil {
		s.current.Release()
	}
	s.current = s.partitions[s.next]
	s.next++
	return s.current, nil
}

// Release frees the current and all undelivered partitions and any buffered
// input.
func (s *SortSource) Release() {
	if s.current != nil {
		s.current.Release()
		s.current = nil
	}
	for i := s.next; i < len(s.partitions); i++ {
		s.partitions[i].Release()
	}
	s.partitions = nil
	s.releaseBuffered()
}

func (s *SortSource) releaseBuffered() {
	for _, b := range s.buffered {
		b.Release()
	}
	s.buffered = nil
}

// sameColumns reports whether two column name lists are identical.
func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newBuilderFor creates an Arrow builder for the given data type.
func newBuilderFor(dt arrow.DataType, mem memory.Allocator) (array.Builder, error) {
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
		return nil, errors.NewUnsupportedTypeError("NewBuilder", dt.String())
	}
}
