package vm

import (
	"errors"
	"math"
)

// safe_math.go 提供带溢出检查的 uint64 运算
// 用于余额、存入额度、租金等资产相关的安全运算

var (
	// ErrOverflow 加法溢出错误
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow 减法下溢错误（结果为负数）
	ErrUnderflow = errors.New("arithmetic underflow")
)

// CheckedAdd 安全加法：a + b
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedSub 安全减法：a - b，a < b 时返回 ErrUnderflow
func CheckedSub(a, b uint64) (uint64, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// CheckedMul 安全乘法：a * b
func CheckedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}
