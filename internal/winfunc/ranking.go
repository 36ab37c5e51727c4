package winfunc

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/jobbine-joseph/velox/internal/partition"
)

// Ranking functions number the rows of a partition from its peer structure.
// They ignore frames and the validity bitmap entirely.

func init() {
	Register("row_number", func(args Args) (WindowFunction, error) {
		if err := requireNoArg("row_number", args); err != nil {
			return nil, err
		}
		return &rowNumber{}, nil
	})
	Register("rank", func(args Args) (WindowFunction, error) {
		if err := requireNoArg("rank", args); err != nil {
			return nil, err
		}
		return &rank{}, nil
	})
	Register("dense_rank", func(args Args) (WindowFunction, error) {
		if err := requireNoArg("dense_rank", args); err != nil {
			return nil, err
		}
		return &denseRank{}, nil
	})
}

// rowNumber numbers partition rows 1..N in order.
type rowNumber struct {
	next int64
}

func (f *rowNumber) OutputType() arrow.DataType {
	return arrow.PrimitiveTypes.Int64
}

func (f *rowNumber) ResetPartition(*partition.Partition) {
	f.next = 0
}

func (f *rowNumber) Apply(
	peerStarts, _ []int,
	_, _ []int,
	_ []byte,
	_ int,
	dest array.Builder,
) error {
	builder := dest.(*array.Int64Builder)
	for range peerStarts {
		f.next++
		builder.Append(f.next)
	}
	return nil
}

// rank assigns every row of a peer group the group's first row number, with
// gaps after larger groups. A row's rank is its peer-start index plus one.
type rank struct{}

func (rank) OutputType() arrow.DataType {
	return arrow.PrimitiveTypes.Int64
}

func (rank) ResetPartition(*partition.Partition) {}

func (rank) Apply(
	peerStarts, _ []int,
	_, _ []int,
	_ []byte,
	_ int,
	dest array.Builder,
) error {
	builder := dest.(*array.Int64Builder)
	for _, peerStart := range peerStarts {
		builder.Append(int64(peerStart) + 1)
	}
	return nil
}

// denseRank counts distinct peer groups without gaps.
type denseRank struct {
	rank          int64
	lastPeerStart int
}

func (f *denseRank) OutputType() arrow.DataType {
	return arrow.PrimitiveTypes.Int64
}

func (f *denseRank) ResetPartition(*partition.Partition) {
	f.rank = 0
	f.lastPeerStart = -1
}

func (f *denseRank) Apply(
	peerStarts, _ []int,
	_, _ []int,
	_ []byte,
	_ int,
	dest array.Builder,
) error {
	builder := dest.(*array.Int64Builder)
	for _, peerStart := range peerStarts {
		if peerStart != f.lastPeerStart {
			f.rank++
			f.lastPeerStart = peerStart
		}
		builder.Append(f.rank)
	}
	return nil
}
