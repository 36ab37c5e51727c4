package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMemoryTest(t *testing.T) {
	mem := SetupMemoryTest(t)
	defer mem.Release()

	require.NotNil(t, mem.Allocator)
}

func TestCreateTestBatch(t *testing.T) {
	mem := SetupMemoryTest(t)
	defer mem.Release()

	b := CreateTestBatch(mem.Allocator)
	defer b.Release()

	assert.Equal(t, 8, b.NumRows())
	assert.Equal(t, []string{"region", "seq", "amount"}, b.Columns())

	amount, ok := b.Column("amount")
	require.True(t, ok)
	for i := 0; i < b.NumRows(); i++ {
		assert.False(t, amount.IsNull(i))
	}
}

func TestCreateTestBatchOptions(t *testing.T) {
	mem := SetupMemoryTest(t)
	defer mem.Release()

	b := CreateTestBatch(mem.Allocator, WithRowCount(5), WithNulls())
	defer b.Release()

	assert.Equal(t, 5, b.NumRows())

	amount, ok := b.Column("amount")
	require.True(t, ok)
	assert.True(t, amount.IsNull(0))
	assert.False(t, amount.IsNull(1))
	assert.True(t, amount.IsNull(3))
}
