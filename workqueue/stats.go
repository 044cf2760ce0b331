// File: workqueue/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package workqueue

// Stats is a snapshot of the queue's monitoring counters.
type Stats struct {
	Name string `yaml:"name"`

	// Items linked but not yet finished, including the batch being drained.
	Queued int `yaml:"queued"`

	Sends        uint64 `yaml:"sends"`
	Recvs        uint64 `yaml:"recvs"`
	SendFailures uint64 `yaml:"send_failures"`

	// Callbacks that panicked; they still count as received.
	Panics uint64 `yaml:"panics"`

	// Items discarded by Close or by an aborted drain pass.
	Dropped uint64 `yaml:"dropped"`

	SlabInUse    int `yaml:"slab_in_use"`
	SlabCapacity int `yaml:"slab_capacity"`
}
