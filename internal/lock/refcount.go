package locking

import (
	"fmt"
	"sync/atomic"
)

// RefCount tracks how many holders share an entry; the entry is dropped
// when the count reaches zero.
type RefCount struct {
	count int32
}

func NewRefCount() *RefCount {
	return &RefCount{count: 1}
}

func (r *RefCount) Inc() {
	atomic.AddInt32(&r.count, 1)
}

func (r *RefCount) Dec() bool {
	newCount := atomic.AddInt32(&r.count, -1)
	if newCount < 0 {
		panic("refcount dropped below zero")
	}
	return newCount == 0
}

func (r *RefCount) Get() int32 {
	return atomic.LoadInt32(&r.count)
}

func (r *RefCount) String() string {
	return fmt.Sprintf("RefCount: %d", r.Get())
}
