package token

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount 把最小单位换算成带小数位的显示金额，例如 1500000 / 6 位 -> "1.500000"
func FormatAmount(amount uint64, decimals uint8) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
	return d.StringFixed(int32(decimals))
}

// ParseAmount 把显示金额换算成最小单位；多余的小数位视为错误
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("parse amount %q: more than %d decimal places", s, decimals)
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	return bi.Uint64(), nil
}
