//go:build !linux

package wakeup

import (
	"fmt"

	"github.com/momentics/hioload-dispatch/api"
)

func newEventfd() (api.Waker, error) {
	return nil, fmt.Errorf("wakeup: eventfd: %w", api.ErrNotSupported)
}
