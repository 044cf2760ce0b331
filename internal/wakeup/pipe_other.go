//go:build !unix

package wakeup

import (
	"fmt"

	"github.com/momentics/hioload-dispatch/api"
)

func newPipe() (api.Waker, error) {
	return nil, fmt.Errorf("wakeup: self-pipe: %w", api.ErrNotSupported)
}
