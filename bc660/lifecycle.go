// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package bc660

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/bc660/at"
	"go.uber.org/zap"
)

// open requests the modem open a connection on the socket and waits for the
// modem to report the result.
func (m *Modem) open(s *socket, host string, port int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	op := "QIOPEN"
	cmd := fmt.Sprintf(`+QIOPEN=0,%d,"TCP","%s",%d,0,1`, s.mux, host, port)
	if s.secure {
		op = "QSSLOPEN"
		cmd = fmt.Sprintf(`+QSSLOPEN=0,0,"%s",%d,0`, host, port)
		if _, err := m.ack(`+QSSLCFG=0,0,"timeout",300`, ""); err != nil {
			return err
		}
	}
	result := "\r\n+" + op + ":"
	seen, err := m.ack(cmd, result)
	if err != nil {
		return err
	}
	if !seen {
		if _, err = m.t.WaitResponse(timeout, result); err != nil {
			return errors.WithMessage(err, op)
		}
	}
	id, err := m.t.GetIntBefore(',')
	if err != nil {
		return errors.WithMessage(err, op)
	}
	if id != s.mux {
		return errors.Wrapf(ErrMuxMismatch, "%s requested %d, reported %d", op, s.mux, id)
	}
	status, err := m.t.GetIntBefore('\n')
	if err != nil {
		return errors.WithMessage(err, op)
	}
	if status != 0 {
		return &StatusError{Op: op, Status: status}
	}
	return nil
}

// ack sends a command and waits for it to be acknowledged.
//
// An explicit error from the modem is returned, but a missing
// acknowledgement is not. If the result code is seen in place of the
// acknowledgement then ack returns true, with the stream positioned after
// the result prefix.
func (m *Modem) ack(cmd, result string) (bool, error) {
	if err := m.t.SendAT(cmd); err != nil {
		return false, err
	}
	patterns := []string{"OK\r\n"}
	if result != "" {
		patterns = append(patterns, result)
	}
	idx, err := m.t.WaitResponse(m.cmdTimeout, patterns...)
	if err == at.ErrTimeout {
		m.log.Debug("no acknowledgement", zap.String("cmd", cmd))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, cmd)
	}
	return idx == 1, nil
}

// send writes the payload to the socket.
//
// Any failure is reported as an error and no partial count is returned.
func (m *Modem) send(s *socket, b []byte) error {
	op := "QISEND"
	cmd := fmt.Sprintf("+QISEND=%d,%d", s.mux, len(b))
	if s.secure {
		op = "QSSLSEND"
		cmd = fmt.Sprintf("+QSSLSEND=0,%d,%d", s.mux, len(b))
	}
	if err := m.t.SendAT(cmd); err != nil {
		return err
	}
	if _, err := m.t.WaitResponse(m.cmdTimeout, ">"); err != nil {
		return errors.WithMessage(err, op+" prompt")
	}
	if _, err := m.t.Write(b); err != nil {
		return err
	}
	if !s.secure {
		_, err := m.t.WaitResponse(m.cmdTimeout, "\r\nSEND OK")
		return errors.WithMessage(err, op)
	}
	if err := m.t.WaitOK(m.cmdTimeout); err != nil {
		return errors.WithMessage(err, op)
	}
	status, err := m.status(m.cmdTimeout, "+QSSLSEND:")
	if err != nil {
		return errors.WithMessage(err, op)
	}
	if status != 0 {
		return &StatusError{Op: op, Status: status}
	}
	return nil
}

// stop closes the socket, allowing the modem up to maxWait to confirm.
//
// The socket is always left disconnected, and any error is for diagnostics
// only.
func (m *Modem) stop(s *socket, maxWait time.Duration) error {
	defer s.connected.Store(false)
	start := time.Now()
	remaining := func() time.Duration {
		return maxWait - time.Since(start)
	}
	s.rx.Reset()
	if err := m.t.Poll(min(m.quiet, remaining())); err != nil {
		return err
	}
	if s.secure {
		if err := m.t.SendAT(fmt.Sprintf("+QSSLCLOSE=0,%d", s.mux)); err != nil {
			return err
		}
		if err := m.t.WaitOK(remaining()); err != nil {
			return errors.WithMessage(err, "QSSLCLOSE")
		}
		status, err := m.status(remaining(), "+QSSLCLOSE:")
		if err != nil {
			return errors.WithMessage(err, "QSSLCLOSE")
		}
		m.log.Debug("closed", zap.Int("mux", s.mux), zap.Int("status", status))
		return nil
	}
	if err := m.t.SendAT(fmt.Sprintf("+QICLOSE=%d", s.mux)); err != nil {
		return err
	}
	if err := m.t.WaitOK(remaining()); err != nil {
		return errors.WithMessage(err, "QICLOSE")
	}
	_, err := m.t.WaitResponse(remaining(), "CLOSE OK")
	return errors.WithMessage(err, "QICLOSE")
}

// status waits for a secure socket result code, of the form
// <prefix> <ctx>,<mux>,<status>, and returns the status.
func (m *Modem) status(timeout time.Duration, prefix string) (int, error) {
	if _, err := m.t.WaitResponse(timeout, prefix); err != nil {
		return 0, err
	}
	if err := m.t.SkipUntil(','); err != nil {
		return 0, err
	}
	if err := m.t.SkipUntil(','); err != nil {
		return 0, err
	}
	return m.t.GetIntBefore('\n')
}
