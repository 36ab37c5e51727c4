package partition

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/exp/constraints"
)

// compareValues compares the values at two indices of an array. Nulls sort
// before non-nulls and compare equal to each other.
func compareValues(arr arrow.Array, idx1, idx2 int) (int, error) {
	if nullCmp, done := compareNullValues(arr, idx1, idx2); done {
		return nullCmp, nil
	}

	switch a := arr.(type) {
	case *array.String:
		return compareOrdered(a.Value(idx1), a.Value(idx2)), nil
	case *array.Int64:
		return compareOrdered(a.Value(idx1), a.Value(idx2)), nil
	case *array.Int32:
		return compareOrdered(a.Value(idx1), a.Value(idx2)), nil
	case *array.Float64:
		return compareOrdered(a.Value(idx1), a.Value(idx2)), nil
	case *array.Boolean:
		return compareBooleanValues(a.Value(idx1), a.Value(idx2)), nil
	default:
		return 0, fmt.Errorf("unsupported type for comparison: %T", arr)
	}
}

// compareNullValues handles null value comparison. The second return value
// reports whether the comparison was decided by nullness alone.
func compareNullValues(arr arrow.Array, idx1, idx2 int) (int, bool) {
	isNull1, isNull2 := arr.IsNull(idx1), arr.IsNull(idx2)
	switch {
	case isNull1 && isNull2:
		return 0, true
	case isNull1:
		return -1, true
	case isNull2:
		return 1, true
	default:
		return 0, false
	}
}

// compareOrdered compares two values of any ordered type.
func compareOrdered[T constraints.Ordered](v1, v2 T) int {
	if v1 < v2 {
		return -1
	} else if v1 > v2 {
		return 1
	}
	return 0
}

// compareBooleanValues orders false before true.
func compareBooleanValues(v1, v2 bool) int {
	if !v1 && v2 {
		return -1
	} else if v1 && !v2 {
		return 1
	}
	return 0
}

// keyValueString renders the value at a row index for use in a partition key
// string. Nulls render as a fixed sentinel so that null keys group together.
func keyValueString(arr arrow.Array, rowIndex int) string {
	if arr.IsNull(rowIndex) {
		return "NULL"
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(rowIndex)
	case *array.Int64:
		return fmt.Sprintf("%d", a.Value(rowIndex))
	case *array.Int32:
		return fmt.Sprintf("%d", a.Value(rowIndex))
	case *array.Float64:
		return fmt.Sprintf("%g", a.Value(rowIndex))
	case *array.Boolean:
		return fmt.Sprintf("%t", a.Value(rowIndex))
	default:
		return arr.ValueStr(rowIndex)
	}
}
