// File: pool/slab.go
// Package pool implements slab allocation of fixed-type objects addressed by index.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Slab storage grows in fixed chunks that are never reallocated, so a *T
// handed out by Alloc stays valid until the slot is freed. Free slots form an
// intrusive singly-linked list of indices threaded through the slots.

package pool

import (
	"fmt"

	"github.com/momentics/hioload-dispatch/api"
)

const (
	chunkShift = 6
	chunkSize  = 1 << chunkShift
	chunkMask  = chunkSize - 1

	// nilIndex terminates the free list.
	nilIndex int32 = -1
)

type slot[T any] struct {
	val      T
	nextFree int32
	used     bool
}

// Slab is an index-addressed object pool. It is not safe for concurrent use;
// callers guard it with their own lock.
type Slab[T any] struct {
	chunks   []*[chunkSize]slot[T]
	freeHead int32
	limit    int
	inUse    int

	totalAlloc uint64
	totalFree  uint64
}

// SlabStats is a point-in-time view of slab usage.
type SlabStats struct {
	InUse      int
	Capacity   int
	TotalAlloc uint64
	TotalFree  uint64
}

// NewSlab creates a slab holding at most limit live objects. A limit <= 0
// means the slab grows without bound.
func NewSlab[T any](limit int) *Slab[T] {
	if limit < 0 {
		limit = 0
	}
	return &Slab[T]{freeHead: nilIndex, limit: limit}
}

// Alloc takes a slot off the free list, growing by one chunk when the list is
// empty. ok is false when the limit is reached.
func (s *Slab[T]) Alloc() (idx int32, val *T, ok bool) {
	if s.freeHead == nilIndex && !s.grow() {
		return nilIndex, nil, false
	}
	idx = s.freeHead
	sl := s.slot(idx)
	s.freeHead = sl.nextFree
	sl.nextFree = nilIndex
	sl.used = true
	s.inUse++
	s.totalAlloc++
	return idx, &sl.val, true
}

// Free zeroes the object at idx and pushes the slot back on the free list.
// Freeing a slot twice panics.
func (s *Slab[T]) Free(idx int32) {
	sl := s.slot(idx)
	if !sl.used {
		panic(fmt.Errorf("%w: double free of slab slot %d", api.ErrContractViolation, idx))
	}
	var zero T
	sl.val = zero
	sl.used = false
	sl.nextFree = s.freeHead
	s.freeHead = idx
	s.inUse--
	s.totalFree++
}

// Len returns the number of live objects.
func (s *Slab[T]) Len() int { return s.inUse }

// Cap returns the number of slots currently backed by memory.
func (s *Slab[T]) Cap() int {
	c := len(s.chunks) * chunkSize
	if s.limit > 0 && c > s.limit {
		c = s.limit
	}
	return c
}

// Stats returns usage counters.
func (s *Slab[T]) Stats() SlabStats {
	return SlabStats{
		InUse:      s.inUse,
		Capacity:   s.Cap(),
		TotalAlloc: s.totalAlloc,
		TotalFree:  s.totalFree,
	}
}

func (s *Slab[T]) slot(idx int32) *slot[T] {
	if idx < 0 || int(idx) >= len(s.chunks)*chunkSize {
		panic(fmt.Errorf("%w: slab index %d out of range", api.ErrContractViolation, idx))
	}
	return &s.chunks[idx>>chunkShift][idx&chunkMask]
}

// grow appends one chunk and threads its slots onto the free list in index
// order, stopping at the limit.
func (s *Slab[T]) grow() bool {
	base := len(s.chunks) * chunkSize
	n := chunkSize
	if s.limit > 0 {
		if base >= s.limit {
			return false
		}
		if rem := s.limit - base; rem < n {
			n = rem
		}
	}
	c := new([chunkSize]slot[T])
	s.chunks = append(s.chunks, c)
	for i := n - 1; i >= 0; i-- {
		c[i].nextFree = s.freeHead
		s.freeHead = int32(base + i)
	}
	return true
}
