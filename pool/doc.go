// Package pool
// Author: momentics <momentics@gmail.com>
//
// Allocation layer for dispatch queues. Slab hands out fixed-type objects by
// index from chunked storage and recycles them through an intrusive free list,
// so steady-state send/drain cycles allocate nothing.
package pool
