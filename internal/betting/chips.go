package betting

import (
	"fmt"
	"math"
)

// AddChips adds two non-negative chip amounts, failing instead of wrapping.
func AddChips(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: negative operand %d + %d", ErrChipOverflow, a, b)
	}
	if a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrChipOverflow, a, b)
	}
	return a + b, nil
}

// SumChips adds all amounts with AddChips.
func SumChips(amounts ...int64) (int64, error) {
	var total int64
	for _, v := range amounts {
		var err error
		if total, err = AddChips(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
