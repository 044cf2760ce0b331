// File: collector/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package collector implements a countdown latch for scatter/gather over a
// dispatch queue: a producer fans N units of work out, each unit calls
// Decrement when it finishes, and the producer blocks in Wait until the count
// drops to zero or below.
//
// The count is signed. A producer that cannot know up front how many units it
// will manage to dispatch initialises the latch to a negative sentinel, lets
// completions drive it further negative, then re-pegs it with SetCount or
// Settle once the number of successful dispatches is known.
package collector
