// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// tcprecv opens a TCP connection through the modem and dumps everything
// received to stdout until the peer closes the connection or the period
// expires.
//
// This provides an example of receiving data delivered by URCs, as well as
// a test that the library works with the modem.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/warthog618/bc660/at"
	"github.com/warthog618/bc660/bc660"
	"github.com/warthog618/bc660/config"
	"github.com/warthog618/bc660/serial"
	"github.com/warthog618/bc660/trace"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("c", "", "path to config file")
	dev := flag.String("d", "", "path to modem device")
	baud := flag.Int("b", config.DefaultBaud, "baud rate")
	host := flag.String("h", "", "host to connect to")
	port := flag.Int("p", 0, "port to connect to")
	period := flag.Duration("P", 10*time.Minute, "period to wait")
	verbose := flag.Bool("v", false, "log modem interactions")
	hexdump := flag.Bool("x", false, "hex dump received data")
	flag.Parse()

	cfg := config.New()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.Modem.Port = *dev
		case "b":
			cfg.Modem.Baud = *baud
		case "h":
			cfg.Socket.Host = *host
		case "p":
			cfg.Socket.Port = *port
		case "v":
			cfg.Modem.Trace = *verbose
		}
	})
	log, err := config.NewLogger(cfg.Debug || cfg.Modem.Trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	if cfg.Socket.Host == "" || cfg.Socket.Port == 0 {
		log.Error("host and port are required")
		return
	}

	sopts := []serial.Option{serial.WithBaud(cfg.Modem.Baud)}
	if cfg.Modem.Port != "" {
		sopts = append(sopts, serial.WithPort(cfg.Modem.Port))
	}
	sp, err := serial.New(sopts...)
	if err != nil {
		log.Error("open modem failed", zap.Error(err))
		return
	}
	defer sp.Close()
	var mio io.ReadWriter = sp
	if cfg.Modem.Trace {
		topts := []trace.Option{trace.WithLogger(log)}
		if *hexdump {
			topts = append(topts, trace.WithHexDump())
		}
		mio = trace.New(sp, topts...)
	}
	a := at.New(mio, at.WithTimeout(time.Duration(cfg.Modem.Timeout)), at.WithLogger(log))
	m := bc660.New(a,
		bc660.WithLogger(log),
		bc660.WithRxBufferSize(cfg.Socket.RxBufferSize))
	ctx := context.Background()
	if err = m.Init(ctx, cfg.Modem.Pin); err != nil {
		log.Error("init failed", zap.Error(err))
		return
	}
	c := m.NewClient(cfg.Socket.Mux)
	if cfg.Socket.Secure {
		c = m.NewSecureClient(cfg.Socket.Mux)
	}
	err = c.Connect(cfg.Socket.Host, cfg.Socket.Port, time.Duration(cfg.Socket.ConnectTimeout))
	if err != nil {
		log.Error("connect failed", zap.Error(err))
		return
	}
	defer c.Close()
	dumpData(c, m, log, *period, *hexdump)
}

// dumpData prints data received on the client, and periodically logs the
// registration status, until the period expires or the client is closed.
func dumpData(c *bc660.Client, m *bc660.Modem, log *zap.Logger, period time.Duration, hexdump bool) {
	done := time.After(period)
	status := time.NewTicker(time.Minute)
	defer status.Stop()
	buf := make([]byte, 512)
	for {
		select {
		case <-done:
			log.Info("exiting...")
			return
		case <-status.C:
			s, err := m.RegistrationStatus(context.Background())
			log.Info("registration", zap.Int("status", int(s)), zap.Error(err))
			continue
		case <-time.After(100 * time.Millisecond):
		}
		c.Poll()
		n, err := c.Read(buf)
		if err == io.EOF {
			log.Info("closed by peer")
			return
		}
		if n == 0 {
			continue
		}
		if hexdump {
			fmt.Print(hex.Dump(buf[:n]))
		} else {
			os.Stdout.Write(buf[:n])
		}
	}
}
