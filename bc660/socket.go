// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660

import (
	"time"

	"github.com/smallnest/ringbuffer"
	"go.uber.org/atomic"
)

// MuxCount is the number of sockets the modem can multiplex.
const MuxCount = 5

// socket is the host side state of one of the modem sockets.
type socket struct {
	mux    int
	secure bool

	// the only mutable state, written by the lifecycle and URC paths
	connected *atomic.Bool

	// filled by the URC path, drained by Client.Read
	rx *ringbuffer.RingBuffer

	// when Client.Poll last polled the stream for this socket
	lastChecked *atomic.Time
}

func newSocket(mux int, secure bool, rxSize int) *socket {
	return &socket{
		mux:         mux,
		secure:      secure,
		connected:   atomic.NewBool(false),
		rx:          ringbuffer.New(rxSize),
		lastChecked: atomic.NewTime(time.Time{}),
	}
}

// socketTable maps muxes to sockets.
type socketTable [MuxCount]*socket

// foldMux maps any mux onto the range of the table.
func foldMux(mux int) int {
	return ((mux % MuxCount) + MuxCount) % MuxCount
}

// bind stores the socket in the slot for the mux, replacing any socket
// already bound there, and returns the effective mux.
func (t *socketTable) bind(mux int, s *socket) int {
	mux = foldMux(mux)
	t[mux] = s
	return mux
}

// lookup returns the socket bound to the mux, or nil if the mux is out of
// range or unbound.
func (t *socketTable) lookup(mux int) *socket {
	if mux < 0 || mux >= MuxCount {
		return nil
	}
	return t[mux]
}
