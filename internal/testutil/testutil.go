// Package testutil provides common testing utilities shared across the window
// engine's test files: memory allocator setup and canonical input batches.
package testutil

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/jobbine-joseph/velox/internal/batch"
	"github.com/jobbine-joseph/velox/internal/series"
)

const defaultRowCount = 8

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator with automatic cleanup for tests.
// Returns a TestMemoryContext that should be released with defer.
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	allocator := memory.NewGoAllocator()

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup:   func() {},
	}
}

// TestBatchOption configures test batch creation.
type TestBatchOption func(*testBatchConfig)

type testBatchConfig struct {
	includeNulls bool
	rowCount     int
}

// WithNulls includes null amounts in test data.
func WithNulls() TestBatchOption {
	return func(cfg *testBatchConfig) {
		cfg.includeNulls = true
	}
}

// WithRowCount sets the number of rows in test data.
func WithRowCount(count int) TestBatchOption {
	return func(cfg *testBatchConfig) {
		cfg.rowCount = count
	}
}

// CreateTestBatch creates a canonical sales input batch:
//   - region (string): cycles through "east", "west", "north", "south"
//   - seq (int64): 0, 1, 2, ...
//   - amount (int64): 100, 210, 320, ... (every third row null with WithNulls)
func CreateTestBatch(allocator memory.Allocator, opts ...TestBatchOption) *batch.Batch {
	cfg := &testBatchConfig{rowCount: defaultRowCount}
	for _, opt := range opts {
		opt(cfg)
	}

	regions := []string{"east", "west", "north", "south"}

	region := make([]string, cfg.rowCount)
	seq := make([]int64, cfg.rowCount)
	amount := make([]int64, cfg.rowCount)
	valid := make([]bool, cfg.rowCount)
	for i := 0; i < cfg.rowCount; i++ {
		region[i] = regions[i%len(regions)]
		seq[i] = int64(i)
		amount[i] = int64(100 + i*110)
		valid[i] = !cfg.includeNulls || i%3 != 0
	}

	b, err := batch.New(
		series.New("region", region, allocator),
		series.New("seq", seq, allocator),
		series.NewNullable("amount", amount, valid, allocator),
	)
	if err != nil {
		panic(err)
	}
	return b
}
