// Package cu implements the compute-unit meter charged by program
// execution.
package cu

import (
	"errors"

	"go.alpenglow.io/votor/pkg/safemath"
)

var ErrComputeExceeded = errors.New("compute budget exceeded")

const DefaultComputeBudget = 200000

type ComputeMeter struct {
	remaining       uint64
	startingBalance uint64
	exceeded        bool
}

func NewComputeMeter(budget uint64) ComputeMeter {
	return ComputeMeter{remaining: budget, startingBalance: budget}
}

func NewComputeMeterDefault() ComputeMeter {
	return NewComputeMeter(DefaultComputeBudget)
}

func (cm *ComputeMeter) Consume(cost uint64) error {
	cm.exceeded = cm.remaining < cost
	cm.remaining = safemath.SaturatingSubU64(cm.remaining, cost)

	if cm.exceeded {
		return ErrComputeExceeded
	}
	return nil
}

func (cm *ComputeMeter) Used() uint64 {
	return cm.startingBalance - cm.remaining
}

func (cm *ComputeMeter) Exceeded() bool {
	return cm.exceeded
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.remaining
}
