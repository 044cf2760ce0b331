// Package workqueue
// Author: momentics <momentics@gmail.com>
//
// Cross-thread work dispatch onto a single reactor thread. Any goroutine may
// Send a callback with two opaque arguments; the reactor thread that owns the
// queue's wakeup channel drains the pending FIFO in batches and runs every
// callback inline.
package workqueue
