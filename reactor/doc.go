// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the poll-mode event reactor that owns the dispatch
// thread: epoll on Linux, poll(2) on other unix platforms. Interest is
// level-triggered, so a descriptor keeps firing while data remains buffered.
package reactor
