// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/bc660/info"
	"go.uber.org/zap"
)

// SimStatus is the state of the SIM as reported by +CPIN.
type SimStatus int

const (
	// SimError indicates the SIM is missing or not usable.
	SimError SimStatus = iota
	// SimReady indicates the SIM is unlocked and usable.
	SimReady
	// SimLocked indicates the SIM requires a PIN or PUK.
	SimLocked
)

// RegStatus is the network registration state reported by +CEREG and +CREG.
type RegStatus int

const (
	RegNoResult     RegStatus = -1
	RegUnregistered RegStatus = 0
	RegOKHome       RegStatus = 1
	RegSearching    RegStatus = 2
	RegDenied       RegStatus = 3
	RegUnknown      RegStatus = 4
	RegOKRoaming    RegStatus = 5
)

// Registered returns true if the status indicates the modem is registered on
// a network, home or roaming.
func (s RegStatus) Registered() bool {
	return s == RegOKHome || s == RegOKRoaming
}

// ErrSimNotReady indicates Init could not make the SIM ready.
var ErrSimNotReady = errors.New("SIM not ready")

// Init initialises the modem.
//
// Echo is disabled, sleep is disabled and time zone URCs are suppressed.
// If the SIM is locked and a pin is provided the SIM is unlocked.
// A locked SIM is acceptable if no pin is provided.
func (m *Modem) Init(ctx context.Context, pin string) error {
	cmee := "+CMEE=0"
	if m.verbose {
		cmee = "+CMEE=2"
	}
	for _, cmd := range []string{"", "E0"} {
		if _, err := m.t.Command(ctx, cmd); err != nil {
			return errors.WithMessage(err, "AT"+cmd)
		}
	}
	// support for verbose errors is not critical
	if _, err := m.t.Command(ctx, cmee); err != nil {
		m.log.Debug("error reporting not configured", zap.Error(err))
	}
	if name, err := m.ModemName(ctx); err == nil {
		m.log.Info("modem", zap.String("model", name))
	}
	if err := m.SleepEnable(ctx, false); err != nil {
		return err
	}
	if _, err := m.command(ctx, 10*time.Second, "+CTZR=0"); err != nil {
		return errors.WithMessage(err, "CTZR")
	}
	status, err := m.SimStatus(ctx)
	if status != SimReady && pin != "" {
		if err = m.SimUnlock(ctx, pin); err != nil {
			return err
		}
		status, err = m.SimStatus(ctx)
	}
	switch {
	case status == SimReady:
		return nil
	case status == SimLocked && pin == "":
		return nil
	case err != nil:
		return errors.Wrap(ErrSimNotReady, err.Error())
	}
	return ErrSimNotReady
}

// ModemName returns the model of the modem.
func (m *Modem) ModemName(ctx context.Context) (string, error) {
	i, err := m.t.Command(ctx, "+CGMM")
	if err != nil {
		return "", err
	}
	if len(i) == 0 {
		return "", errors.WithMessage(ErrMalformedResponse, "CGMM")
	}
	return info.TrimPrefix(i[0], "+CGMM"), nil
}

// IMEI returns the IMEI of the modem.
func (m *Modem) IMEI(ctx context.Context) (string, error) {
	i, err := m.t.Command(ctx, "+CGSN")
	if err != nil {
		return "", err
	}
	if len(i) == 0 {
		return "", errors.WithMessage(ErrMalformedResponse, "CGSN")
	}
	return info.TrimPrefix(i[0], "+CGSN"), nil
}

// SimCCID returns the ICCID of the SIM, without the trailing check digit.
func (m *Modem) SimCCID(ctx context.Context) (string, error) {
	i, err := m.t.Command(ctx, "+QCCID")
	if err != nil {
		return "", err
	}
	l, ok := info.Find(i, "+QCCID")
	if !ok {
		return "", errors.WithMessage(ErrMalformedResponse, "QCCID")
	}
	ccid := info.TrimPrefix(l, "+QCCID")
	if len(ccid) == 0 {
		return "", errors.WithMessage(ErrMalformedResponse, "QCCID")
	}
	return ccid[:len(ccid)-1], nil
}

// SimStatus returns the state of the SIM.
func (m *Modem) SimStatus(ctx context.Context) (SimStatus, error) {
	i, err := m.t.Command(ctx, "+CPIN?")
	if err != nil {
		return SimError, err
	}
	l, ok := info.Find(i, "+CPIN")
	if !ok {
		return SimError, errors.WithMessage(ErrMalformedResponse, "CPIN")
	}
	switch s := info.TrimPrefix(l, "+CPIN"); {
	case s == "READY":
		return SimReady, nil
	case strings.Contains(s, "PIN"), strings.Contains(s, "PUK"):
		return SimLocked, nil
	default:
		return SimError, nil
	}
}

// SimUnlock unlocks the SIM with the pin.
func (m *Modem) SimUnlock(ctx context.Context, pin string) error {
	_, err := m.t.Command(ctx, fmt.Sprintf(`+CPIN="%s"`, pin))
	return errors.WithMessage(err, "CPIN")
}

// Restart resets the modem and then initialises it.
func (m *Modem) Restart(ctx context.Context, pin string) error {
	if _, err := m.t.Command(ctx, ""); err != nil {
		return err
	}
	// the modem may reset before acknowledging
	if _, err := m.command(ctx, 5*time.Second, "+QRST=1"); err != nil {
		m.log.Debug("reset not acknowledged", zap.Error(err))
	}
	return m.Init(ctx, pin)
}

// PowerOff powers down the modem.
func (m *Modem) PowerOff(ctx context.Context) error {
	_, err := m.command(ctx, 10*time.Second, "+QPOWD=1")
	return errors.WithMessage(err, "QPOWD")
}

// SleepEnable enables or disables the modem entering sleep mode.
//
// With sleep enabled the modem only sleeps while DTR and WAKEUP_IN are
// pulled up.
func (m *Modem) SleepEnable(ctx context.Context, enable bool) error {
	cmd := "+QSCLK=0"
	if enable {
		cmd = "+QSCLK=1"
	}
	_, err := m.t.Command(ctx, cmd)
	return errors.WithMessage(err, "QSCLK")
}

// SetPhoneFunctionality sets the functionality level of the modem, e.g. 0
// for minimum and 1 for full.
func (m *Modem) SetPhoneFunctionality(ctx context.Context, fun int) error {
	_, err := m.command(ctx, 10*time.Second, fmt.Sprintf("+CFUN=%d", fun))
	return errors.WithMessage(err, "CFUN")
}

// RegistrationStatus returns the network registration status, EPS if
// registered, else the generic network status.
func (m *Modem) RegistrationStatus(ctx context.Context) (RegStatus, error) {
	s, err := m.regStatus(ctx, "+CEREG")
	if err == nil && s.Registered() {
		return s, nil
	}
	return m.regStatus(ctx, "+CREG")
}

func (m *Modem) regStatus(ctx context.Context, cmd string) (RegStatus, error) {
	i, err := m.t.Command(ctx, cmd+"?")
	if err != nil {
		return RegNoResult, err
	}
	l, ok := info.Find(i, cmd)
	if !ok {
		return RegNoResult, errors.WithMessage(ErrMalformedResponse, cmd)
	}
	s, err := info.Int(l, cmd, 1)
	if err != nil {
		return RegNoResult, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return RegStatus(s), nil
}

// IsNetworkConnected returns true if the modem is registered on a network.
func (m *Modem) IsNetworkConnected(ctx context.Context) bool {
	s, _ := m.RegistrationStatus(ctx)
	return s.Registered()
}

// GPRSConnect configures and activates the PDP context.
//
// Authentication is only used if both user and pwd are provided.
func (m *Modem) GPRSConnect(ctx context.Context, apn, user, pwd string) error {
	if err := m.GPRSDisconnect(ctx); err != nil {
		m.log.Debug("PDP context not deactivated", zap.Error(err))
	}
	if _, err := m.t.Command(ctx, fmt.Sprintf(`+CGDCONT=1,"IP","%s"`, apn)); err != nil {
		m.log.Debug("PDP context not defined", zap.Error(err))
	}
	auth := "+CGAUTH=1,0"
	if user != "" && pwd != "" {
		auth = fmt.Sprintf(`+CGAUTH=1,1,"%s","%s"`, user, pwd)
	}
	if _, err := m.command(ctx, 60*time.Second, auth); err != nil {
		return errors.WithMessage(err, "CGAUTH")
	}
	_, err := m.command(ctx, 70*time.Second, "+CGACT=1,1")
	return errors.WithMessage(err, "CGACT")
}

// GPRSDisconnect deactivates the PDP context.
func (m *Modem) GPRSDisconnect(ctx context.Context) error {
	_, err := m.command(ctx, 40*time.Second, "+CGACT=0,1")
	return errors.WithMessage(err, "CGACT")
}

// BattVoltage returns the supply voltage of the modem in mV.
func (m *Modem) BattVoltage(ctx context.Context) (int, error) {
	i, err := m.t.Command(ctx, "+CBC")
	if err != nil {
		return 0, err
	}
	l, ok := info.Find(i, "+CBC")
	if !ok {
		return 0, errors.WithMessage(ErrMalformedResponse, "CBC")
	}
	// the voltage is the last field
	v, err := info.Int(l, "+CBC", len(info.Fields(l, "+CBC"))-1)
	if err != nil {
		return 0, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return v, nil
}

// NTPServerSync synchronises the modem clock with the NTP server.
//
// Returns the result code reported by the modem, 0 indicating success.
func (m *Modem) NTPServerSync(server string) (int, error) {
	if err := m.t.SendAT(fmt.Sprintf(`+QNTP=1,"%s"`, server)); err != nil {
		return 0, err
	}
	if _, err := m.t.WaitResponse(10*time.Second, "+QNTP:"); err != nil {
		return 0, errors.WithMessage(err, "QNTP")
	}
	l, err := m.t.ReadStringUntil('\n')
	if err != nil {
		return 0, errors.WithMessage(err, "QNTP")
	}
	// the time follows the result on success
	s, _, _ := strings.Cut(l, ",")
	res, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedResponse, "QNTP result %q", s)
	}
	return res, nil
}
