// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity of the calling OS thread. Callers must
// hold runtime.LockOSThread for the pin to stay with their goroutine.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-dispatch/api"
)

// SetAffinity pins the calling OS thread to logical CPU cpuID.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	return setAffinityPlatform(cpuID)
}

// Current returns the CPUs the calling thread may run on.
func Current() ([]int, error) {
	return currentPlatform()
}
