// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package config provides the TOML configuration shared by the command line
// tools.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultBaud           = 9600
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 150 * time.Second
	DefaultRxBufferSize   = 1024
	DefaultAPN            = ""
)

// Config is the configuration of the modem and the socket used by the tools.
type Config struct {
	Debug  bool         `toml:"debug"`
	Modem  ModemConfig  `toml:"modem"`
	Socket SocketConfig `toml:"socket"`
}

// ModemConfig describes the serial connection to the modem and its network
// attachment.
type ModemConfig struct {
	// Port is the serial device. If empty the platform default is used.
	Port    string   `toml:"port,omitempty"`
	Baud    int      `toml:"baud"`
	Timeout Duration `toml:"timeout"`
	Trace   bool     `toml:"trace"`
	Pin     string   `toml:"pin,omitempty"`
	APN     string   `toml:"apn,omitempty"`
	User    string   `toml:"user,omitempty"`
	Pwd     string   `toml:"pwd,omitempty"`
}

// SocketConfig describes the connection opened by the tools.
type SocketConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Mux            int      `toml:"mux"`
	Secure         bool     `toml:"secure"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	RxBufferSize   int      `toml:"rx_buffer_size"`
}

// Duration is a time.Duration that is represented in TOML as a string,
// e.g. "1m30s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// New returns a Config populated with the defaults.
func New() *Config {
	return &Config{
		Modem: ModemConfig{
			Baud:    DefaultBaud,
			Timeout: Duration(DefaultTimeout),
			APN:     DefaultAPN,
		},
		Socket: SocketConfig{
			ConnectTimeout: Duration(DefaultConnectTimeout),
			RxBufferSize:   DefaultRxBufferSize,
		},
	}
}

// Load reads the config file at path over the defaults.
func Load(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	if err = cfg.Verify(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Verify checks the config contains usable values.
func (c *Config) Verify() error {
	switch {
	case c.Modem.Baud <= 0:
		return errors.Errorf("invalid baud %d", c.Modem.Baud)
	case c.Modem.Timeout <= 0:
		return errors.New("modem timeout must be positive")
	case c.Socket.RxBufferSize <= 0:
		return errors.Errorf("invalid rx buffer size %d", c.Socket.RxBufferSize)
	case c.Socket.Port < 0 || c.Socket.Port > 65535:
		return errors.Errorf("invalid port %d", c.Socket.Port)
	}
	return nil
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// NewLogger builds the logger for the tools, human readable if debug, else
// JSON.
func NewLogger(debug bool) (*zap.Logger, error) {
	var config zap.Config
	var encoderConf zapcore.EncoderConfig
	if debug {
		config = zap.NewDevelopmentConfig()
		encoderConf = zap.NewDevelopmentEncoderConfig()
		encoderConf.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewProductionConfig()
		encoderConf = zap.NewProductionEncoderConfig()
		encoderConf.EncodeTime = zapcore.EpochMillisTimeEncoder
	}
	config.EncoderConfig = encoderConf
	return config.Build()
}
