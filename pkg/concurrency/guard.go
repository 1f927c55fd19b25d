package concurrency

import (
	"errors"
	"sync/atomic"
)

var ErrBusy = errors.New("a transfer is already in progress")

// ConcurrencyGuard admits one task at a time and rejects the rest instead of
// queueing them.
type ConcurrencyGuard struct {
	busy atomic.Bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// Execute runs task unless another task is running, in which case it returns
// ErrBusy without calling task.
func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer g.busy.Store(false)
	return task()
}

// Busy reports whether a task is running.
func (g *ConcurrencyGuard) Busy() bool {
	return g.busy.Load()
}
