// File: internal/wakeup/wakeup.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wakeup

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-dispatch/api"
)

// Kind selects a wakeup channel implementation.
type Kind string

const (
	KindPipe    Kind = "pipe"
	KindEventfd Kind = "eventfd"
)

// ParseKind maps a config string onto a Kind. The empty string selects the
// self-pipe.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindPipe:
		return KindPipe, nil
	case KindEventfd:
		return KindEventfd, nil
	}
	return "", fmt.Errorf("wakeup: unknown kind %q: %w", s, api.ErrInvalidArgument)
}

// New creates a wakeup channel of the given kind.
func New(kind Kind) (api.Waker, error) {
	switch kind {
	case "", KindPipe:
		return newPipe()
	case KindEventfd:
		return newEventfd()
	}
	return nil, fmt.Errorf("wakeup: unknown kind %q: %w", kind, api.ErrInvalidArgument)
}

// Factory binds kind into an api.WakerFactory.
func Factory(kind Kind) api.WakerFactory {
	return func() (api.Waker, error) { return New(kind) }
}
