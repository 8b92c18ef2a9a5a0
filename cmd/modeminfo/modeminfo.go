// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// modeminfo collects and displays information related to the modem and its
// current configuration.
//
// This serves as an example of how interact with a modem, as well as
// providing information which may be useful for debugging.
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

var version = "undefined"

func main() {
	cfgPath := flag.String("c", "", "path to config file")
	dev := flag.String("d", "", "path to modem device")
	baud := flag.Int("b", config.DefaultBaud, "baud rate")
	timeout := flag.Duration("t", config.DefaultTimeout, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}
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
		case "t":
			cfg.Modem.Timeout = config.Duration(*timeout)
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
	p, err := serial.New(sopts...)
	if err != nil {
		log.Error("open modem failed", zap.Error(err))
		return
	}
	defer p.Close()
	var mio io.ReadWriter = p
	if cfg.Modem.Trace {
		mio = trace.New(p, trace.WithLogger(log))
	}
	cmdTimeout := time.Duration(cfg.Modem.Timeout)
	a := at.New(mio, at.WithTimeout(cmdTimeout), at.WithLogger(log))
	m := bc660.New(a, bc660.WithLogger(log), bc660.WithVerboseErrors())
	ctx := context.Background()
	if err = m.Init(ctx, cfg.Modem.Pin); err != nil {
		log.Error("init failed", zap.Error(err))
		return
	}
	report(ctx, m)

	cmds := []string{
		"I",
		"+CGMI",
		"+CGMR",
		"+CSQ",
		"+CESQ",
		"+CIMI",
		"+COPS?",
		"+CGATT?",
		"+CGPADDR",
		"+CGDCONT?",
		"+QENG=0",
		"+QBAND?",
		"+CCLK?",
	}
	for _, cmd := range cmds {
		info, err := a.Command(ctx, cmd)
		fmt.Println("AT" + cmd)
		if err != nil {
			fmt.Printf(" %s\n", err)
			continue
		}
		for _, l := range info {
			fmt.Printf(" %s\n", l)
		}
	}
}

// report displays the identity and state of the modem.
func report(ctx context.Context, m *bc660.Modem) {
	show := func(name string, v interface{}, err error) {
		if err != nil {
			fmt.Printf("%-12s %s\n", name, err)
			return
		}
		fmt.Printf("%-12s %v\n", name, v)
	}
	name, err := m.ModemName(ctx)
	show("model", name, err)
	imei, err := m.IMEI(ctx)
	show("IMEI", imei, err)
	ccid, err := m.SimCCID(ctx)
	show("ICCID", ccid, err)
	sim, err := m.SimStatus(ctx)
	show("SIM", simStatus(sim), err)
	reg, err := m.RegistrationStatus(ctx)
	show("registration", regStatus(reg), err)
	mv, err := m.BattVoltage(ctx)
	show("supply (mV)", mv, err)
}

func simStatus(s bc660.SimStatus) string {
	switch s {
	case bc660.SimReady:
		return "ready"
	case bc660.SimLocked:
		return "locked"
	default:
		return "error"
	}
}

func regStatus(s bc660.RegStatus) string {
	switch s {
	case bc660.RegUnregistered:
		return "unregistered"
	case bc660.RegOKHome:
		return "home"
	case bc660.RegSearching:
		return "searching"
	case bc660.RegDenied:
		return "denied"
	case bc660.RegOKRoaming:
		return "roaming"
	case bc660.RegNoResult:
		return "no result"
	default:
		return "unknown"
	}
}
