package winfunc

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/jobbine-joseph/velox/internal/partition"
)

// Value functions pick a single row out of each output row's frame. Rows with
// an unusable frame produce null.

func init() {
	Register("first_value", func(args Args) (WindowFunction, error) {
		if err := requireArg("first_value", args); err != nil {
			return nil, err
		}
		return &frameValue{channel: args.ArgChannel, argType: args.ArgType, fromStart: true}, nil
	})
	Register("last_value", func(args Args) (WindowFunction, error) {
		if err := requireArg("last_value", args); err != nil {
			return nil, err
		}
		return &frameValue{channel: args.ArgChannel, argType: args.ArgType, fromStart: false}, nil
	})
}

// frameValue implements FIRST_VALUE and LAST_VALUE.
type frameValue struct {
	channel   int
	argType   arrow.DataType
	fromStart bool

	current *partition.Partition
}

func (f *frameValue) OutputType() arrow.DataType {
	return f.argType
}

func (f *frameValue) ResetPartition(p *partition.Partition) {
	f.current = p
}

func (f *frameValue) Apply(
	peerStarts, _ []int,
	frameStarts, frameEnds []int,
	validity []byte,
	_ int,
	dest array.Builder,
) error {
	for i := range peerStarts {
		if !bitutil.BitIsSet(validity, i) {
			dest.AppendNull()
			continue
		}
		row := frameStarts[i]
		if !f.fromStart {
			row = frameEnds[i]
		}
		if err := f.current.ExtractColumn(f.channel, row, 1, dest); err != nil {
			return err
		}
	}
	return nil
}
