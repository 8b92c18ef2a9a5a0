// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/bc660/at"
	"github.com/warthog618/bc660/bc660"
)

func initCmdSet(cpin ...string) map[string][]string {
	return map[string][]string{
		"AT\r\n":         {ok},
		"ATE0\r\n":       {ok},
		"AT+CMEE=0\r\n":  {ok},
		"AT+CGMM\r\n":    {"\r\nBC660K-GL\r\n", ok},
		"AT+QSCLK=0\r\n": {ok},
		"AT+CTZR=0\r\n":  {ok},
		"AT+CPIN?\r\n":   cpin,
	}
}

func TestInit(t *testing.T) {
	ready := []string{"\r\n+CPIN: READY\r\n", ok}
	locked := []string{"\r\n+CPIN: SIM PIN\r\n", ok}
	patterns := []struct {
		name    string
		cmdSet  map[string][]string
		key     string
		value   []string
		options []bc660.Option
		pin     string
		err     error
	}{
		{
			"ready",
			initCmdSet(ready...),
			"",
			nil,
			nil,
			"",
			nil,
		},
		{
			"verbose",
			initCmdSet(ready...),
			"AT+CMEE=2\r\n",
			[]string{ok},
			[]bc660.Option{bc660.WithVerboseErrors()},
			"",
			nil,
		},
		{
			"cmee error",
			initCmdSet(ready...),
			"AT+CMEE=0\r\n",
			[]string{"\r\nERROR\r\n"},
			nil,
			"",
			nil,
		},
		{
			"at error",
			initCmdSet(ready...),
			"AT\r\n",
			[]string{"\r\nERROR\r\n"},
			nil,
			"",
			at.ErrError,
		},
		{
			"echo error",
			initCmdSet(ready...),
			"ATE0\r\n",
			[]string{"\r\nERROR\r\n"},
			nil,
			"",
			at.ErrError,
		},
		{
			"sleep error",
			initCmdSet(ready...),
			"AT+QSCLK=0\r\n",
			[]string{"\r\nERROR\r\n"},
			nil,
			"",
			at.ErrError,
		},
		{
			"ctzr error",
			initCmdSet(ready...),
			"AT+CTZR=0\r\n",
			[]string{"\r\n+CME ERROR: 4\r\n"},
			nil,
			"",
			at.CMEError("4"),
		},
		{
			"locked",
			initCmdSet(locked...),
			"",
			nil,
			nil,
			"",
			nil,
		},
		{
			"unlock",
			initCmdSet(ready...),
			"",
			nil,
			nil,
			"1234",
			nil,
		},
		{
			"unlock error",
			initCmdSet(locked...),
			"",
			nil,
			nil,
			"1234",
			at.ErrError,
		},
		{
			"still locked",
			initCmdSet(locked...),
			"AT+CPIN=\"1234\"\r\n",
			[]string{ok},
			nil,
			"1234",
			bc660.ErrSimNotReady,
		},
		{
			"no sim",
			initCmdSet("\r\n+CME ERROR: 10\r\n"),
			"",
			nil,
			nil,
			"",
			bc660.ErrSimNotReady,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			if p.key != "" {
				p.cmdSet[p.key] = p.value
			}
			m, mm, _ := setupModem(t, p.cmdSet, p.options...)
			defer teardownModem(mm)
			err := m.Init(context.Background(), p.pin)
			checkError(t, p.err, err)
		}
		t.Run(p.name, f)
	}
}

func TestInitUnlock(t *testing.T) {
	cmdSet := initCmdSet("\r\n+CPIN: SIM PIN\r\n", ok)
	cmdSet["AT+CPIN=\"1234\"\r\n"] = []string{ok}
	m, mm, _ := setupModem(t, cmdSet)
	defer teardownModem(mm)
	err := m.Init(context.Background(), "1234")
	assert.ErrorIs(t, err, bc660.ErrSimNotReady)
	assert.Contains(t, mm.sent, "AT+CPIN=\"1234\"\r\n")
}

func TestRestart(t *testing.T) {
	cmdSet := initCmdSet("\r\n+CPIN: READY\r\n", ok)
	cmdSet["AT+QRST=1\r\n"] = []string{ok, "\r\nRDY\r\n"}
	m, mm, _ := setupModem(t, cmdSet)
	defer teardownModem(mm)
	err := m.Restart(context.Background(), "")
	assert.Nil(t, err)
	assert.Contains(t, mm.sent, "AT+QRST=1\r\n")
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	patterns := []struct {
		name   string
		cmdSet map[string][]string
		query  func(m *bc660.Modem) (interface{}, error)
		value  interface{}
		err    error
	}{
		{
			"modem name",
			map[string][]string{"AT+CGMM\r\n": {"\r\nBC660K-GL\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.ModemName(ctx) },
			"BC660K-GL",
			nil,
		},
		{
			"modem name empty",
			map[string][]string{"AT+CGMM\r\n": {ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.ModemName(ctx) },
			"",
			bc660.ErrMalformedResponse,
		},
		{
			"imei",
			map[string][]string{"AT+CGSN\r\n": {"\r\n+CGSN: 867730050000001\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.IMEI(ctx) },
			"867730050000001",
			nil,
		},
		{
			"imei bare",
			map[string][]string{"AT+CGSN\r\n": {"\r\n867730050000001\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.IMEI(ctx) },
			"867730050000001",
			nil,
		},
		{
			"ccid",
			map[string][]string{"AT+QCCID\r\n": {"\r\n+QCCID: 89860012345678901234F\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.SimCCID(ctx) },
			"89860012345678901234",
			nil,
		},
		{
			"ccid missing",
			map[string][]string{"AT+QCCID\r\n": {ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.SimCCID(ctx) },
			"",
			bc660.ErrMalformedResponse,
		},
		{
			"sim ready",
			map[string][]string{"AT+CPIN?\r\n": {"\r\n+CPIN: READY\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.SimStatus(ctx) },
			bc660.SimReady,
			nil,
		},
		{
			"sim puk",
			map[string][]string{"AT+CPIN?\r\n": {"\r\n+CPIN: SIM PUK\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.SimStatus(ctx) },
			bc660.SimLocked,
			nil,
		},
		{
			"sim not ready",
			map[string][]string{"AT+CPIN?\r\n": {"\r\n+CPIN: NOT READY\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.SimStatus(ctx) },
			bc660.SimError,
			nil,
		},
		{
			"sim error",
			map[string][]string{"AT+CPIN?\r\n": {"\r\n+CME ERROR: 10\r\n"}},
			func(m *bc660.Modem) (interface{}, error) { return m.SimStatus(ctx) },
			bc660.SimError,
			at.CMEError("10"),
		},
		{
			"eps registered",
			map[string][]string{"AT+CEREG?\r\n": {"\r\n+CEREG: 0,5\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.RegistrationStatus(ctx) },
			bc660.RegOKRoaming,
			nil,
		},
		{
			"creg fallback",
			map[string][]string{
				"AT+CEREG?\r\n": {"\r\n+CEREG: 0,2\r\n", ok},
				"AT+CREG?\r\n":  {"\r\n+CREG: 0,1\r\n", ok},
			},
			func(m *bc660.Modem) (interface{}, error) { return m.RegistrationStatus(ctx) },
			bc660.RegOKHome,
			nil,
		},
		{
			"creg unsupported",
			map[string][]string{"AT+CEREG?\r\n": {"\r\n+CEREG: 0,3\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.RegistrationStatus(ctx) },
			bc660.RegNoResult,
			at.ErrError,
		},
		{
			"creg malformed",
			map[string][]string{
				"AT+CEREG?\r\n": {"\r\n+CEREG: 0\r\n", ok},
				"AT+CREG?\r\n":  {ok},
			},
			func(m *bc660.Modem) (interface{}, error) { return m.RegistrationStatus(ctx) },
			bc660.RegNoResult,
			bc660.ErrMalformedResponse,
		},
		{
			"network connected",
			map[string][]string{"AT+CEREG?\r\n": {"\r\n+CEREG: 0,1\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.IsNetworkConnected(ctx), nil },
			true,
			nil,
		},
		{
			"network not connected",
			map[string][]string{
				"AT+CEREG?\r\n": {"\r\n+CEREG: 0,2\r\n", ok},
				"AT+CREG?\r\n":  {"\r\n+CREG: 0,2\r\n", ok},
			},
			func(m *bc660.Modem) (interface{}, error) { return m.IsNetworkConnected(ctx), nil },
			false,
			nil,
		},
		{
			"battery",
			map[string][]string{"AT+CBC\r\n": {"\r\n+CBC: 3300\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.BattVoltage(ctx) },
			3300,
			nil,
		},
		{
			"battery fields",
			map[string][]string{"AT+CBC\r\n": {"\r\n+CBC: 0,0,3600\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.BattVoltage(ctx) },
			3600,
			nil,
		},
		{
			"battery malformed",
			map[string][]string{"AT+CBC\r\n": {"\r\n+CBC: high\r\n", ok}},
			func(m *bc660.Modem) (interface{}, error) { return m.BattVoltage(ctx) },
			0,
			bc660.ErrMalformedResponse,
		},
		{
			"ntp",
			map[string][]string{
				"AT+QNTP=1,\"pool.ntp.org\"\r\n": {ok, "\r\n+QNTP: 0,\"24/05/01,10:00:00+00\"\r\n"},
			},
			func(m *bc660.Modem) (interface{}, error) { return m.NTPServerSync("pool.ntp.org") },
			0,
			nil,
		},
		{
			"ntp failed",
			map[string][]string{
				"AT+QNTP=1,\"pool.ntp.org\"\r\n": {ok, "\r\n+QNTP: 571\r\n"},
			},
			func(m *bc660.Modem) (interface{}, error) { return m.NTPServerSync("pool.ntp.org") },
			571,
			nil,
		},
		{
			"ntp malformed",
			map[string][]string{
				"AT+QNTP=1,\"pool.ntp.org\"\r\n": {ok, "\r\n+QNTP: busy\r\n"},
			},
			func(m *bc660.Modem) (interface{}, error) { return m.NTPServerSync("pool.ntp.org") },
			0,
			bc660.ErrMalformedResponse,
		},
		{
			"ntp error",
			nil,
			func(m *bc660.Modem) (interface{}, error) { return m.NTPServerSync("pool.ntp.org") },
			0,
			at.ErrError,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			m, mm, _ := setupModem(t, p.cmdSet)
			defer teardownModem(mm)
			v, err := p.query(m)
			checkError(t, p.err, err)
			assert.Equal(t, p.value, v)
		}
		t.Run(p.name, f)
	}
}

func TestControls(t *testing.T) {
	ctx := context.Background()
	patterns := []struct {
		name   string
		cmdSet map[string][]string
		op     func(m *bc660.Modem) error
		sent   []string
		err    error
	}{
		{
			"power off",
			map[string][]string{"AT+QPOWD=1\r\n": {ok}},
			func(m *bc660.Modem) error { return m.PowerOff(ctx) },
			[]string{"AT+QPOWD=1\r\n"},
			nil,
		},
		{
			"sleep enable",
			map[string][]string{"AT+QSCLK=1\r\n": {ok}},
			func(m *bc660.Modem) error { return m.SleepEnable(ctx, true) },
			[]string{"AT+QSCLK=1\r\n"},
			nil,
		},
		{
			"sleep disable",
			map[string][]string{"AT+QSCLK=0\r\n": {ok}},
			func(m *bc660.Modem) error { return m.SleepEnable(ctx, false) },
			[]string{"AT+QSCLK=0\r\n"},
			nil,
		},
		{
			"functionality",
			map[string][]string{"AT+CFUN=0\r\n": {ok}},
			func(m *bc660.Modem) error { return m.SetPhoneFunctionality(ctx, 0) },
			[]string{"AT+CFUN=0\r\n"},
			nil,
		},
		{
			"functionality error",
			nil,
			func(m *bc660.Modem) error { return m.SetPhoneFunctionality(ctx, 4) },
			[]string{"AT+CFUN=4\r\n"},
			at.ErrError,
		},
		{
			"unlock",
			map[string][]string{"AT+CPIN=\"1234\"\r\n": {ok}},
			func(m *bc660.Modem) error { return m.SimUnlock(ctx, "1234") },
			[]string{"AT+CPIN=\"1234\"\r\n"},
			nil,
		},
		{
			"gprs connect",
			map[string][]string{
				"AT+CGACT=0,1\r\n":                {ok},
				"AT+CGDCONT=1,\"IP\",\"iot\"\r\n": {ok},
				"AT+CGAUTH=1,0\r\n":               {ok},
				"AT+CGACT=1,1\r\n":                {ok},
			},
			func(m *bc660.Modem) error { return m.GPRSConnect(ctx, "iot", "", "") },
			[]string{
				"AT+CGACT=0,1\r\n",
				"AT+CGDCONT=1,\"IP\",\"iot\"\r\n",
				"AT+CGAUTH=1,0\r\n",
				"AT+CGACT=1,1\r\n",
			},
			nil,
		},
		{
			"gprs connect auth",
			map[string][]string{
				"AT+CGDCONT=1,\"IP\",\"iot\"\r\n":     {ok},
				"AT+CGAUTH=1,1,\"user\",\"pass\"\r\n": {ok},
				"AT+CGACT=1,1\r\n":                    {ok},
			},
			func(m *bc660.Modem) error { return m.GPRSConnect(ctx, "iot", "user", "pass") },
			[]string{
				"AT+CGACT=0,1\r\n",
				"AT+CGDCONT=1,\"IP\",\"iot\"\r\n",
				"AT+CGAUTH=1,1,\"user\",\"pass\"\r\n",
				"AT+CGACT=1,1\r\n",
			},
			nil,
		},
		{
			"gprs auth error",
			map[string][]string{
				"AT+CGACT=0,1\r\n": {ok},
			},
			func(m *bc660.Modem) error { return m.GPRSConnect(ctx, "iot", "", "") },
			[]string{
				"AT+CGACT=0,1\r\n",
				"AT+CGDCONT=1,\"IP\",\"iot\"\r\n",
				"AT+CGAUTH=1,0\r\n",
			},
			at.ErrError,
		},
		{
			"gprs disconnect",
			map[string][]string{"AT+CGACT=0,1\r\n": {ok}},
			func(m *bc660.Modem) error { return m.GPRSDisconnect(ctx) },
			[]string{"AT+CGACT=0,1\r\n"},
			nil,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			m, mm, _ := setupModem(t, p.cmdSet)
			defer teardownModem(mm)
			err := p.op(m)
			checkError(t, p.err, err)
			assert.Equal(t, p.sent, mm.sent)
		}
		t.Run(p.name, f)
	}
}

func TestMaintainClosed(t *testing.T) {
	m, mm, _ := setupModem(t, nil)
	teardownModem(mm)
	require.Eventually(t, func() bool {
		return m.Maintain(0) == at.ErrClosed
	}, time.Second, 10*time.Millisecond)
}
