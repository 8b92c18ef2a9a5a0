// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660

import "go.uber.org/zap"

// Observer is notified of anomalies on the receive path.
//
// None of these are errors. The stream remains aligned in every case.
type Observer interface {
	// Overflow is called when a recv URC declares more data than the socket
	// buffer can hold. The excess is discarded.
	Overflow(mux, declared, stored int)

	// LengthMismatch is called when, after a recv URC, the number of bytes
	// buffered for the socket differs from the length declared by the URC.
	LengthMismatch(mux, declared, buffered int)

	// Discarded is called when a recv URC names a mux with no socket.
	Discarded(mux, n int)

	// Closed is called when the modem reports a socket closed.
	Closed(mux int, bound bool)
}

// LogObserver is an Observer that logs anomalies.
type LogObserver struct {
	log *zap.Logger
}

// NewLogObserver creates an Observer that logs to the logger.
func NewLogObserver(l *zap.Logger) *LogObserver {
	return &LogObserver{log: l}
}

func (o *LogObserver) Overflow(mux, declared, stored int) {
	o.log.Warn("receive buffer overflow",
		zap.Int("mux", mux),
		zap.Int("declared", declared),
		zap.Int("stored", stored))
}

func (o *LogObserver) LengthMismatch(mux, declared, buffered int) {
	o.log.Debug("buffered length differs from declared",
		zap.Int("mux", mux),
		zap.Int("declared", declared),
		zap.Int("buffered", buffered))
}

func (o *LogObserver) Discarded(mux, n int) {
	o.log.Warn("data for unbound socket discarded",
		zap.Int("mux", mux),
		zap.Int("len", n))
}

func (o *LogObserver) Closed(mux int, bound bool) {
	o.log.Info("socket closed by modem",
		zap.Int("mux", mux),
		zap.Bool("bound", bound))
}
