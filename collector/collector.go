// File: collector/collector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package collector

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-dispatch/api"
)

// Collector is a single-use countdown latch. Init must complete before any
// other method is called; the zero value is not ready for use.
type Collector struct {
	mu   sync.Mutex
	cond *sync.Cond

	// GUARDED_BY(mu)
	count int

	// Count at Init or the last SetCount; Settle measures completions from here.
	//
	// GUARDED_BY(mu)
	origin int

	data any
}

// New returns an initialised Collector.
func New(count int, data any) *Collector {
	c := &Collector{}
	c.Init(count, data)
	return c
}

// Init sets the expected completion count and an opaque payload the latch
// never inspects.
func (c *Collector) Init(count int, data any) {
	c.cond = sync.NewCond(&c.mu)
	c.count = count
	c.origin = count
	c.data = data
}

// Data returns the payload passed to Init.
func (c *Collector) Data() any { return c.data }

// Count returns the current count.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Wait blocks until the count is zero or below. It returns immediately for any
// waiter arriving after that point.
func (c *Collector) Wait() {
	c.mu.Lock()
	for c.count > 0 {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// SetCount overwrites the count and releases waiters if it is not positive.
func (c *Collector) SetCount(count int) {
	c.mu.Lock()
	c.count = count
	c.origin = count
	if c.count <= 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// Settle re-pegs the latch to expect total completions in all, counting the
// ones that already landed since Init or the last SetCount. It is the atomic
// form of reading the sentinel and calling SetCount with the remainder.
func (c *Collector) Settle(total int) {
	c.mu.Lock()
	landed := c.origin - c.count
	c.count = total - landed
	c.origin = c.count
	if c.count <= 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// Decrement records one completion. Calling it on a latch that already
// reached exactly zero is a caller bug and panics.
func (c *Collector) Decrement() {
	c.mu.Lock()
	if c.count == 0 {
		c.mu.Unlock()
		panic(fmt.Errorf("%w: collector decremented past zero", api.ErrContractViolation))
	}
	c.count--
	if c.count <= 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}
