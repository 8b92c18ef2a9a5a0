// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// tcpsend opens a TCP, or TLS, connection through the modem, sends a
// message, and prints any reply received before the wait period expires or
// the peer closes the connection.
package main

import (
	"context"
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
	host := flag.String("h", "example.com", "host to connect to")
	port := flag.Int("p", 80, "port to connect to")
	mux := flag.Int("x", 0, "modem socket to use")
	secure := flag.Bool("s", false, "connect using TLS (socket 0 only)")
	msg := flag.String("m", "GET / HTTP/1.0\r\n\r\n", "the message to send")
	wait := flag.Duration("w", 30*time.Second, "period to wait for a reply")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()

	cfg := config.New()
	cfg.Socket.Host = *host
	cfg.Socket.Port = *port
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
		case "x":
			cfg.Socket.Mux = *mux
		case "s":
			cfg.Socket.Secure = *secure
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
		mio = trace.New(sp, trace.WithLogger(log))
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
	if cfg.Modem.APN != "" {
		if err = m.GPRSConnect(ctx, cfg.Modem.APN, cfg.Modem.User, cfg.Modem.Pwd); err != nil {
			log.Error("PDP activation failed", zap.Error(err))
			return
		}
	}
	if !m.IsNetworkConnected(ctx) {
		log.Error("not registered on a network")
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
	n, err := c.Write([]byte(*msg))
	if err != nil {
		log.Error("send failed", zap.Int("sent", n), zap.Error(err))
		return
	}
	log.Info("sent", zap.Int("len", n))

	buf := make([]byte, cfg.Socket.RxBufferSize)
	done := time.After(*wait)
	for {
		select {
		case <-done:
			return
		case <-time.After(100 * time.Millisecond):
		}
		if c.Poll() == 0 && !c.Connected() {
			return
		}
		n, err := c.Read(buf)
		if err == io.EOF {
			return
		}
		os.Stdout.Write(buf[:n])
	}
}
