// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package bc660 provides a driver for the Quectel BC660 NB-IoT modem that
// multiplexes up to five TCP connections, one of which may be TLS, over the
// single AT command stream of the modem.
package bc660

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/bc660/at"
	"go.uber.org/zap"
)

// Transport is the AT command stream the Modem drives.
//
// It is satisfied by *at.AT.
type Transport interface {
	SendAT(cmd string) error
	Write(p []byte) (int, error)
	WaitResponse(timeout time.Duration, patterns ...string) (int, error)
	WaitOK(timeout time.Duration) error
	Poll(timeout time.Duration) error
	Command(ctx context.Context, cmd string) ([]string, error)
	ReadByte() (byte, error)
	PeekByte() (byte, error)
	ReadStringUntil(delim byte) (string, error)
	SkipUntil(delim byte) error
	GetIntBefore(delim byte) (int, error)
	SetURCHandler(h at.URCHandler)
}

// Modem represents a BC660 modem and the sockets multiplexed over it.
//
// The Modem is driven by a single owner and its methods, and those of its
// Clients, are not safe for concurrent use, with the exception of the Client
// Connected, Available and Read methods.
type Modem struct {
	t       Transport
	sockets socketTable
	log     *zap.Logger
	obs     Observer

	// the time allowed for command acknowledgements and send confirmations
	cmdTimeout time.Duration

	// capacity of each socket receive buffer
	rxSize int

	// minimum period between stream polls triggered by Client.Poll
	pollInterval time.Duration

	// the quiet period that ends a poll of the stream
	quiet time.Duration

	verbose bool
}

const (
	// DefaultConnectTimeout is the time allowed for a connection to open if
	// the caller does not specify one.
	DefaultConnectTimeout = 150 * time.Second

	// DefaultCloseTimeout is the time allowed by Client.Close for the modem
	// to confirm a close.
	DefaultCloseTimeout = 15 * time.Second

	// DefaultRxBufferSize is the default capacity of each socket receive
	// buffer.
	DefaultRxBufferSize = 1024

	// MaxSendChunk is the largest payload Client.Write passes to a single
	// send command.
	MaxSendChunk = 1024
)

// Option is a construction option for a Modem.
type Option func(*Modem)

// New creates a new Modem on the transport.
//
// The Modem installs itself as the URC handler of the transport.
func New(t Transport, options ...Option) *Modem {
	m := &Modem{
		t:            t,
		log:          zap.NewNop(),
		cmdTimeout:   time.Second,
		rxSize:       DefaultRxBufferSize,
		pollInterval: 500 * time.Millisecond,
		quiet:        15 * time.Millisecond,
	}
	for _, option := range options {
		option(m)
	}
	if m.obs == nil {
		m.obs = NewLogObserver(m.log)
	}
	t.SetURCHandler(m.HandleURC)
	return m
}

// WithLogger sets the logger for the Modem.
//
// The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Modem) {
		m.log = l
	}
}

// WithObserver sets the observer notified of receive path anomalies.
//
// The default observer logs them to the Modem logger.
func WithObserver(o Observer) Option {
	return func(m *Modem) {
		m.obs = o
	}
}

// WithCommandTimeout sets the time allowed for the modem to acknowledge a
// command or confirm a send.
//
// The default is 1 second.
func WithCommandTimeout(d time.Duration) Option {
	return func(m *Modem) {
		m.cmdTimeout = d
	}
}

// WithRxBufferSize sets the capacity of the receive buffer of each socket
// subsequently created.
func WithRxBufferSize(size int) Option {
	return func(m *Modem) {
		m.rxSize = size
	}
}

// WithPollInterval sets the minimum period between stream polls triggered
// by Client.Poll.
//
// The default is 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(m *Modem) {
		m.pollInterval = d
	}
}

// WithVerboseErrors has Init configure the modem to report errors in
// verbose, textual, form rather than a bare ERROR.
func WithVerboseErrors() Option {
	return func(m *Modem) {
		m.verbose = true
	}
}

// Maintain polls the stream, passing any URCs received to the socket
// buffers, until the stream has been quiet for the timeout period.
func (m *Modem) Maintain(timeout time.Duration) error {
	return m.t.Poll(timeout)
}

// command issues a command with a timeout specific to that command.
func (m *Modem) command(ctx context.Context, timeout time.Duration, cmd string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.t.Command(ctx, cmd)
}

var (
	// ErrMuxMismatch indicates the modem reported a connection id that
	// differs from the one requested.
	ErrMuxMismatch = errors.New("connection id mismatch")

	// ErrMalformedResponse indicates the modem returned a response that
	// could not be parsed.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrSecureMux indicates a secure connection was requested on a mux
	// other than 0.
	ErrSecureMux = errors.New("secure connections are only supported on mux 0")

	// ErrNotConnected indicates an operation requires a connected socket.
	ErrNotConnected = errors.New("not connected")
)

// StatusError indicates the modem reported a non-zero status for an
// operation.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}
