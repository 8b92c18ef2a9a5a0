// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660

import (
	"io"
	"time"

	"github.com/smallnest/ringbuffer"
	"go.uber.org/zap"
)

// Client is a TCP connection multiplexed over the modem.
//
// A Client refers to its socket by mux, so a Client subsequently created on
// the same mux takes over the socket.
type Client struct {
	m   *Modem
	mux int
}

// NewClient creates a plain TCP client on the mux.
//
// The mux is folded into the range [0, MuxCount).
func (m *Modem) NewClient(mux int) *Client {
	return m.newClient(mux, false)
}

// NewSecureClient creates a TLS client on the mux.
//
// The modem only supports TLS on mux 0, and Connect on any other mux fails
// with ErrSecureMux.
func (m *Modem) NewSecureClient(mux int) *Client {
	c := m.newClient(mux, true)
	if c.mux != 0 {
		m.log.Warn("secure connections are only supported on mux 0", zap.Int("mux", c.mux))
	}
	return c
}

func (m *Modem) newClient(mux int, secure bool) *Client {
	mux = foldMux(mux)
	m.sockets.bind(mux, newSocket(mux, secure, m.rxSize))
	return &Client{m: m, mux: mux}
}

// Mux returns the modem socket the client is bound to.
func (c *Client) Mux() int {
	return c.mux
}

// Secure returns true if the client uses TLS.
func (c *Client) Secure() bool {
	return c.socket().secure
}

func (c *Client) socket() *socket {
	return c.m.sockets.lookup(c.mux)
}

// Connect opens a connection to the host and port.
//
// Any existing connection is closed first and the receive buffer is
// cleared. A timeout of zero selects DefaultConnectTimeout.
func (c *Client) Connect(host string, port int, timeout time.Duration) error {
	s := c.socket()
	if s.secure && s.mux != 0 {
		return ErrSecureMux
	}
	if s.connected.Load() {
		c.m.stop(s, DefaultCloseTimeout)
	}
	s.rx.Reset()
	err := c.m.open(s, host, port, timeout)
	s.connected.Store(err == nil)
	if err != nil {
		c.m.log.Info("connect failed",
			zap.Int("mux", s.mux),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Error(err))
	}
	return err
}

// Send writes the payload to the connection in a single send command.
//
// Returns len(b) if the modem accepted the payload, else 0 and an error.
func (c *Client) Send(b []byte) (int, error) {
	s := c.socket()
	if !s.connected.Load() {
		return 0, ErrNotConnected
	}
	if err := c.m.send(s, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Write writes the payload to the connection, split into chunks of at most
// MaxSendChunk bytes.
func (c *Client) Write(p []byte) (int, error) {
	var n int
	for len(p) > 0 {
		chunk := p[:min(len(p), MaxSendChunk)]
		if _, err := c.Send(chunk); err != nil {
			return n, err
		}
		n += len(chunk)
		p = p[len(chunk):]
	}
	return n, nil
}

// Read reads data received on the connection.
//
// Read does not block. It returns 0 and a nil error if no data is buffered
// but the connection is still open, and io.EOF if it has closed.
func (c *Client) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s := c.socket()
	n, err := s.rx.Read(p)
	if err == ringbuffer.ErrIsEmpty {
		if !s.connected.Load() {
			return 0, io.EOF
		}
		return 0, nil
	}
	return n, err
}

// Available returns the number of bytes buffered for reading.
func (c *Client) Available() int {
	return c.socket().rx.Length()
}

// Poll returns the number of bytes buffered for reading, first polling the
// stream for URCs if nothing is buffered and the stream has not been polled
// recently.
func (c *Client) Poll() int {
	s := c.socket()
	if s.rx.IsEmpty() && s.connected.Load() &&
		time.Since(s.lastChecked.Load()) >= c.m.pollInterval {
		s.lastChecked.Store(time.Now())
		if err := c.m.Maintain(c.m.quiet); err != nil {
			c.m.log.Debug("poll failed", zap.Int("mux", s.mux), zap.Error(err))
		}
	}
	return s.rx.Length()
}

// Connected returns true if the connection is open.
//
// This reflects the last state reported by the modem and does not query the
// modem.
func (c *Client) Connected() bool {
	return c.socket().connected.Load()
}

// Stop closes the connection, allowing the modem up to maxWait to confirm.
//
// The client is disconnected on return regardless of the error, which
// indicates only that the modem did not confirm the close.
func (c *Client) Stop(maxWait time.Duration) error {
	return c.m.stop(c.socket(), maxWait)
}

// Close closes the connection, allowing the modem DefaultCloseTimeout to
// confirm.
func (c *Client) Close() error {
	return c.Stop(DefaultCloseTimeout)
}
