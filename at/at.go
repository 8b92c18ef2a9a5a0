// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package at provides a low level driver for AT modems which interleave
// unsolicited result codes, and the binary payloads they carry, with command
// responses on a single stream.
package at

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AT represents a modem that can be managed using AT commands.
//
// A background goroutine copies everything read from the modem into a
// buffer. All parsing of that buffer is performed by the caller, within the
// blocking methods below, and any unsolicited result code (URC) encountered
// while waiting for something else is passed to the URC handler inline.
//
// The AT closes the closed channel when the connection to the underlying
// modem is broken (Read returns an error).
//
// Other than Closed, the methods of AT are not safe for concurrent use.
// Exactly one owner drives the stream.
type AT struct {
	// the underlying modem
	modem io.ReadWriter

	// covers rx and rxErr
	rxMu sync.Mutex

	// bytes read from the modem that are yet to be parsed
	rx bytes.Buffer

	// the error that terminated the reader, if any
	rxErr error

	// signalled when rx is extended
	rxReady chan struct{}

	// closed when modem is closed
	closed chan struct{}

	// the time allowed for a Command to complete if the context has no deadline
	timeout time.Duration

	// the time allowed for each byte read by the stream token methods
	readTimeout time.Duration

	urc URCHandler

	log *zap.Logger
}

// URCHandler is offered the text accumulated while waiting for a response.
//
// The handler is called each time the text ends with a colon, as URC
// prefixes do. If the handler recognises the URC it consumes the remainder
// from the stream, using the AT stream methods, and returns true, after which
// the accumulated text is discarded.
type URCHandler func(data string) bool

// Option is a construction option for an AT.
type Option func(*AT)

// New creates a new AT modem.
func New(modem io.ReadWriter, options ...Option) *AT {
	a := &AT{
		modem:       modem,
		rxReady:     make(chan struct{}, 1),
		closed:      make(chan struct{}),
		timeout:     time.Second,
		readTimeout: time.Second,
		log:         zap.NewNop(),
	}
	for _, option := range options {
		option(a)
	}
	go a.reader()
	return a
}

// WithTimeout sets the default timeout for commands issued by Command.
//
// The default timeout is 1 second.
func WithTimeout(d time.Duration) Option {
	return func(a *AT) {
		a.timeout = d
	}
}

// WithReadTimeout sets the time allowed for each byte read from the stream by
// ReadByte, PeekByte, ReadStringUntil, SkipUntil and GetIntBefore.
//
// The default read timeout is 1 second.
func WithReadTimeout(d time.Duration) Option {
	return func(a *AT) {
		a.readTimeout = d
	}
}

// WithURCHandler sets the handler for unsolicited result codes.
func WithURCHandler(h URCHandler) Option {
	return func(a *AT) {
		a.urc = h
	}
}

// WithLogger sets the logger used to report stream failures.
func WithLogger(l *zap.Logger) Option {
	return func(a *AT) {
		a.log = l
	}
}

// SetURCHandler replaces the handler for unsolicited result codes.
func (a *AT) SetURCHandler(h URCHandler) {
	a.urc = h
}

// Closed returns a channel which will block while the modem is not closed.
func (a *AT) Closed() <-chan struct{} {
	return a.closed
}

// SendAT writes a command line to the modem.
//
// The command should NOT include the AT prefix, nor <CR><LF> suffix which is
// automatically added.
func (a *AT) SendAT(cmd string) error {
	_, err := a.Write([]byte("AT" + cmd + "\r\n"))
	return err
}

// Write writes raw bytes, such as a socket payload following a ">" prompt,
// to the modem.
func (a *AT) Write(p []byte) (int, error) {
	select {
	case <-a.closed:
		return 0, ErrClosed
	default:
	}
	return a.modem.Write(p)
}

// WaitResponse reads the modem until the received text ends with one of the
// patterns, returning the index of the matched pattern.
//
// Error status lines (ERROR, +CME ERROR and +CMS ERROR) terminate the wait
// with the corresponding error, and ErrTimeout is returned if no pattern is
// matched within the timeout.
func (a *AT) WaitResponse(timeout time.Duration, patterns ...string) (int, error) {
	ctx := context.Background()
	deadline := time.Now().Add(timeout)
	pp := make([][]byte, len(patterns))
	for i, p := range patterns {
		pp[i] = []byte(p)
	}
	var data []byte
	for {
		b, err := a.fetch(ctx, deadline, true)
		if err != nil {
			return -1, err
		}
		data = append(data, b)
		for i, p := range pp {
			if bytes.HasSuffix(data, p) {
				return i, nil
			}
		}
		if err = a.statusError(data); err != nil {
			return -1, err
		}
		if a.dispatch(data) {
			data = data[:0]
		}
	}
}

// WaitOK waits for the OK status line that completes most commands.
func (a *AT) WaitOK(timeout time.Duration) error {
	_, err := a.WaitResponse(timeout, "OK\r\n")
	return err
}

// Poll reads the modem until it has been quiet for the timeout period,
// passing URCs to the URC handler and discarding any other lines.
func (a *AT) Poll(timeout time.Duration) error {
	ctx := context.Background()
	var data []byte
	for {
		b, err := a.fetch(ctx, time.Now().Add(timeout), true)
		if err == ErrTimeout {
			return nil
		}
		if err != nil {
			return err
		}
		if b == '\n' {
			data = data[:0]
			continue
		}
		data = append(data, b)
		if a.dispatch(data) {
			data = data[:0]
		}
	}
}

// ReadByte reads the next byte from the modem.
func (a *AT) ReadByte() (byte, error) {
	return a.fetch(context.Background(), time.Now().Add(a.readTimeout), true)
}

// PeekByte returns the next byte from the modem without consuming it.
func (a *AT) PeekByte() (byte, error) {
	return a.fetch(context.Background(), time.Now().Add(a.readTimeout), false)
}

// ReadStringUntil reads up to and including the delimiter, returning the text
// prior to the delimiter.
func (a *AT) ReadStringUntil(delim byte) (string, error) {
	var sb strings.Builder
	for {
		b, err := a.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		if b == delim {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// SkipUntil discards everything up to and including the delimiter.
func (a *AT) SkipUntil(delim byte) error {
	for {
		b, err := a.ReadByte()
		if err != nil {
			return err
		}
		if b == delim {
			return nil
		}
	}
}

// GetIntBefore reads a decimal integer terminated by the delimiter.
//
// Surrounding whitespace, such as the space after a URC prefix or the <CR>
// before a <LF> delimiter, is ignored.
func (a *AT) GetIntBefore(delim byte) (int, error) {
	s, err := a.ReadStringUntil(delim)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "integer %q", s)
	}
	return n, nil
}

// Command issues the command to the modem and returns the result.
//
// The command should NOT include the AT prefix, nor <CR><LF> suffix which is
// automatically added.
//
// The return value includes the info (the lines returned by the modem between
// the command and the status line), or an error if the command did not
// complete successfully.
//
// If the context has no deadline the default command timeout applies.
func (a *AT) Command(ctx context.Context, cmd string) ([]string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.SendAT(cmd); err != nil {
		return nil, err
	}
	cmdID := parseCmdID(cmd)
	var info []string
	var line []byte
	for {
		b, err := a.fetch(ctx, time.Time{}, true)
		if err != nil {
			return info, err
		}
		if b != '\n' {
			line = append(line, b)
			if a.dispatch(line) {
				line = line[:0]
			}
			continue
		}
		l := strings.TrimSpace(string(line))
		line = line[:0]
		if l == "" {
			continue
		}
		switch parseRxLine(l, cmdID) {
		case rxlStatusOK:
			return info, nil
		case rxlStatusError:
			return info, newError(l)
		case rxlEchoCmdLine:
		default:
			info = append(info, l)
		}
	}
}

// reader copies everything read from the modem into the rx buffer.
//
// reader exits when the modem read fails, which closes the AT.
func (a *AT) reader() {
	buf := make([]byte, 512)
	for {
		n, err := a.modem.Read(buf)
		a.rxMu.Lock()
		a.rx.Write(buf[:n])
		if err != nil {
			a.rxErr = err
		}
		a.rxMu.Unlock()
		if n > 0 {
			select {
			case a.rxReady <- struct{}{}:
			default:
			}
		}
		if err != nil {
			a.log.Debug("modem read terminated", zap.Error(err))
			close(a.closed)
			return
		}
	}
}

// fetch returns the next unparsed byte, waiting for the reader if necessary.
//
// Buffered bytes are returned even after the modem has closed or the
// deadline has passed. A zero deadline waits until the context is done.
func (a *AT) fetch(ctx context.Context, deadline time.Time, consume bool) (byte, error) {
	for {
		a.rxMu.Lock()
		if a.rx.Len() > 0 {
			var b byte
			if consume {
				b, _ = a.rx.ReadByte()
			} else {
				b = a.rx.Bytes()[0]
			}
			a.rxMu.Unlock()
			return b, nil
		}
		closed := a.rxErr != nil
		a.rxMu.Unlock()
		if closed {
			return 0, ErrClosed
		}
		var t *time.Timer
		var expired <-chan time.Time
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return 0, ErrTimeout
			}
			t = time.NewTimer(d)
			expired = t.C
		}
		select {
		case <-a.rxReady:
		case <-a.closed:
		case <-expired:
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return 0, ctx.Err()
		}
		if t != nil {
			t.Stop()
		}
	}
}

// dispatch offers the accumulated text to the URC handler.
func (a *AT) dispatch(data []byte) bool {
	if a.urc == nil || len(data) == 0 || data[len(data)-1] != ':' {
		return false
	}
	return a.urc(string(data))
}

// statusError checks if the accumulated text ends with an error status line,
// reading the remainder of the line for CME and CMS errors.
func (a *AT) statusError(data []byte) error {
	switch {
	case bytes.HasSuffix(data, []byte("\nERROR\r\n")), string(data) == "ERROR\r\n":
		return ErrError
	case bytes.HasSuffix(data, []byte("+CME ERROR:")):
		s, _ := a.ReadStringUntil('\n')
		return CMEError(strings.TrimSpace(s))
	case bytes.HasSuffix(data, []byte("+CMS ERROR:")):
		s, _ := a.ReadStringUntil('\n')
		return CMSError(strings.TrimSpace(s))
	}
	return nil
}

// CMEError indicates a CME Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMEError string

// CMSError indicates a CMS Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMSError string

func (e CMEError) Error() string {
	return string("CME Error: " + e)
}

func (e CMSError) Error() string {
	return string("CMS Error: " + e)
}

var (
	// ErrClosed indicates an operation cannot be performed as the modem has
	// been closed.
	ErrClosed = errors.New("closed")

	// ErrError indicates the modem returned a generic AT ERROR in response to
	// an operation.
	ErrError = errors.New("ERROR")

	// ErrTimeout indicates the modem did not provide the expected response
	// within the time allowed.
	ErrTimeout = errors.New("timeout")

	// ErrMalformed indicates a token read from the stream could not be parsed.
	ErrMalformed = errors.New("malformed token")
)

// newError parses a line and creates an error corresponding to the content.
func newError(line string) error {
	var err error
	switch {
	case strings.HasPrefix(line, "ERROR"):
		err = ErrError
	case strings.HasPrefix(line, "+CMS ERROR:"):
		err = CMSError(strings.TrimSpace(line[11:]))
	case strings.HasPrefix(line, "+CME ERROR:"):
		err = CMEError(strings.TrimSpace(line[11:]))
	}
	return err
}

// Received line types.
type rxl int

const (
	rxlUnknown rxl = iota
	rxlEchoCmdLine
	rxlInfo
	rxlStatusOK
	rxlStatusError
)

// parseCmdID returns the identifier component of the command.
//
// This is the section prior to any '=' or '?' and is generally, but not
// always, used to prefix info lines corresponding to the command.
func parseCmdID(cmdLine string) string {
	if idx := strings.IndexAny(cmdLine, "=?"); idx != -1 {
		return cmdLine[0:idx]
	}
	return cmdLine
}

// parseRxLine parses a received line and identifies the line type.
func parseRxLine(line string, cmdID string) rxl {
	switch {
	case line == "OK":
		return rxlStatusOK
	case strings.HasPrefix(line, "ERROR"),
		strings.HasPrefix(line, "+CME ERROR:"),
		strings.HasPrefix(line, "+CMS ERROR:"):
		return rxlStatusError
	case strings.HasPrefix(line, "AT"+cmdID):
		return rxlEchoCmdLine
	case len(cmdID) > 0 && strings.HasPrefix(line, cmdID+":"):
		return rxlInfo
	default:
		return rxlUnknown
	}
}
