// File: internal/wakeup/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-thread wakeup channels for reactor-owned queues. A producer writes one
// marker per notification; the reactor sees the receive endpoint readable until
// every marker is consumed. Linux offers eventfd in semaphore mode; every unix
// platform gets the classic self-pipe.
package wakeup
