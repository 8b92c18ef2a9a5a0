// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660

import (
	"strings"

	"go.uber.org/zap"
)

// HandleURC handles the socket URCs, +QIURC for plain sockets and +QSSLURC
// for the secure socket, which carry received data and close events.
//
// It is installed as the URC handler of the transport by New, and is called
// with the text accumulated by the transport whenever that text ends with a
// colon. Returns false if the text does not end with a socket URC prefix.
//
//	+QIURC: "recv",<mux>,<len>,"<data>"
//	+QIURC: "closed",<mux>
//	+QSSLURC: "recv",<ctx>,<mux>,<len>,"<data>"
//	+QSSLURC: "closed",<ctx>,<mux>
func (m *Modem) HandleURC(data string) bool {
	var hasCtx bool
	switch {
	case strings.HasSuffix(data, "+QSSLURC:"):
		hasCtx = true
	case strings.HasSuffix(data, "+QIURC:"):
	default:
		return false
	}
	kind, err := m.urcKind()
	if err == nil {
		switch kind {
		case "recv":
			err = m.handleRecv(hasCtx)
		case "closed":
			err = m.handleClosed(hasCtx)
		default:
			m.log.Debug("ignored URC", zap.String("urc", kind))
			err = m.t.SkipUntil('\n')
		}
	}
	if err != nil {
		m.log.Warn("malformed URC", zap.String("urc", kind), zap.Error(err))
	}
	return true
}

// urcKind reads the quoted URC sub-type.
func (m *Modem) urcKind() (string, error) {
	if err := m.t.SkipUntil('"'); err != nil {
		return "", err
	}
	return m.t.ReadStringUntil('"')
}

// handleRecv moves the payload of a recv URC into the socket buffer.
//
// The full declared payload is always consumed from the stream, even if the
// socket is unbound or its buffer is full, so the stream stays aligned.
func (m *Modem) handleRecv(hasCtx bool) error {
	mux, err := m.urcMux(hasCtx, ',')
	if err != nil {
		return err
	}
	n, err := m.t.GetIntBefore(',')
	if err != nil {
		return err
	}
	if err = m.t.SkipUntil('"'); err != nil {
		return err
	}
	s := m.sockets.lookup(mux)
	if s == nil {
		if err = m.drain(n); err != nil {
			return err
		}
		m.obs.Discarded(mux, n)
		return m.skipQuote()
	}
	stored := min(n, s.rx.Free())
	for i := 0; i < stored; i++ {
		b, err := m.t.ReadByte()
		if err != nil {
			return err
		}
		s.rx.WriteByte(b)
	}
	if n > stored {
		if err = m.drain(n - stored); err != nil {
			return err
		}
		m.obs.Overflow(mux, n, stored)
	}
	if l := s.rx.Length(); l != n {
		m.obs.LengthMismatch(mux, n, l)
	}
	m.log.Debug("received", zap.Int("mux", mux), zap.Int("len", n))
	return m.skipQuote()
}

// handleClosed marks the socket named by a closed URC as disconnected.
func (m *Modem) handleClosed(hasCtx bool) error {
	mux, err := m.urcMux(hasCtx, '\n')
	if err != nil {
		return err
	}
	s := m.sockets.lookup(mux)
	if s != nil {
		s.connected.Store(false)
	}
	m.obs.Closed(mux, s != nil)
	return nil
}

// urcMux reads the mux from the fields following the URC sub-type,
// skipping the context id if present.
func (m *Modem) urcMux(hasCtx bool, delim byte) (int, error) {
	if err := m.t.SkipUntil(','); err != nil {
		return 0, err
	}
	if hasCtx {
		if _, err := m.t.GetIntBefore(','); err != nil {
			return 0, err
		}
	}
	return m.t.GetIntBefore(delim)
}

// drain discards n bytes from the stream.
func (m *Modem) drain(n int) error {
	for i := 0; i < n; i++ {
		if _, err := m.t.ReadByte(); err != nil {
			return err
		}
	}
	return nil
}

// skipQuote consumes the quote closing a payload, if present.
func (m *Modem) skipQuote() error {
	if b, err := m.t.PeekByte(); err != nil || b != '"' {
		return nil
	}
	_, err := m.t.ReadByte()
	return err
}
