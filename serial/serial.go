// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package serial provides a serial port, which provides the io.ReadWriter
// interface, that provides the connection between the at or bc660 packages
// and the physical modem.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

// New creates a serial port.
//
// This is currently a simple wrapper around tarm serial.
func New(options ...Option) (*serial.Port, error) {
	cfg := defaultConfig
	for _, option := range options {
		option(&cfg)
	}
	config := &serial.Config{
		Name:        cfg.port,
		Baud:        cfg.baud,
		ReadTimeout: cfg.readTimeout,
	}
	p, err := serial.OpenPort(config)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Config contains the configuration parameters for the serial port.
type Config struct {
	port        string
	baud        int
	readTimeout time.Duration
}

// Option is a construction option that modifies the behaviour of the serial port.
type Option func(*Config)

// WithPort sets the port for the serial port.
func WithPort(port string) Option {
	return func(cfg *Config) {
		cfg.port = port
	}
}

// WithBaud sets the baud rate for the serial port.
func WithBaud(baud int) Option {
	return func(cfg *Config) {
		cfg.baud = baud
	}
}

// WithReadTimeout sets the read timeout for the serial port.
//
// The default of zero means reads block until data is available, which is
// what the at reader goroutine expects.  A non-zero timeout causes reads to
// return io.EOF on timeout, which the at package treats as a closed modem.
func WithReadTimeout(period time.Duration) Option {
	return func(cfg *Config) {
		cfg.readTimeout = period
	}
}
