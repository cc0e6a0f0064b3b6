// Package safemath provides overflow-aware arithmetic on unsigned
// 64-bit integers, mirroring the checked/saturating operations used
// throughout the runtime.
package safemath

import (
	"errors"
	"math"
	"math/bits"
)

var (
	ErrOverflow  = errors.New("arithmetic overflow")
	ErrUnderflow = errors.New("arithmetic underflow")
	ErrDivByZero = errors.New("division by zero")
)

func CheckedAddU64(a uint64, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func CheckedSubU64(a uint64, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

func CheckedMulU64(a uint64, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

func CheckedDivU64(a uint64, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivByZero
	}
	return a / b, nil
}

func SaturatingAddU64(a uint64, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func SaturatingSubU64(a uint64, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func SaturatingMulU64(a uint64, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
