// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package trace provides a decorator for io.ReadWriter that logs all reads
// and writes.
package trace

import (
	"encoding/hex"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Trace is a trace log on an io.ReadWriter.
//
// All reads and writes are written to the logger.
type Trace struct {
	rw    io.ReadWriter
	l     *zap.Logger
	level zapcore.Level
	rmsg  string
	wmsg  string
	hex   bool
}

// Option modifies a Trace object created by New.
type Option func(*Trace)

// New creates a new trace on the io.ReadWriter.
func New(rw io.ReadWriter, options ...Option) *Trace {
	t := &Trace{
		rw:    rw,
		level: zapcore.DebugLevel,
		rmsg:  "r",
		wmsg:  "w",
	}
	for _, option := range options {
		option(t)
	}
	if t.l == nil {
		t.l = zap.L()
	}
	return t
}

// WithReadMessage sets the message used for read logs.
func WithReadMessage(msg string) Option {
	return func(t *Trace) {
		t.rmsg = msg
	}
}

// WithWriteMessage sets the message used for write logs.
func WithWriteMessage(msg string) Option {
	return func(t *Trace) {
		t.wmsg = msg
	}
}

// WithLogger specifies the logger to be used to log trace messages.
//
// By default traces are logged to the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Trace) {
		t.l = l
	}
}

// WithLevel sets the level trace messages are logged at.
//
// The default level is Debug.
func WithLevel(level zapcore.Level) Option {
	return func(t *Trace) {
		t.level = level
	}
}

// WithHexDump logs the data hex encoded rather than quoted, which is easier
// on the eye for binary socket payloads.
func WithHexDump() Option {
	return func(t *Trace) {
		t.hex = true
	}
}

func (t *Trace) Read(p []byte) (n int, err error) {
	n, err = t.rw.Read(p)
	if n > 0 {
		t.log(t.rmsg, p[:n])
	}
	return n, err
}

func (t *Trace) Write(p []byte) (n int, err error) {
	n, err = t.rw.Write(p)
	if n > 0 {
		t.log(t.wmsg, p[:n])
	}
	return n, err
}

func (t *Trace) log(msg string, data []byte) {
	ce := t.l.Check(t.level, msg)
	if ce == nil {
		return
	}
	if t.hex {
		ce.Write(zap.String("data", hex.EncodeToString(data)))
		return
	}
	ce.Write(zap.ByteString("data", data))
}
