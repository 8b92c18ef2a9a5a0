// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package info provides utility functions for manipulating info lines returned
// by the modem in response to AT commands.
package info

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HasPrefix returns true if the line begins with the info prefix for the command.
func HasPrefix(line, cmd string) bool {
	return strings.HasPrefix(line, cmd+":")
}

// TrimPrefix removes the command  prefix, if any, and any intervening space
// from the info line.
func TrimPrefix(line, cmd string) string {
	return strings.TrimLeft(strings.TrimPrefix(line, cmd+":"), " ")
}

// Fields splits the info line into its comma separated fields, after
// trimming the command prefix.
//
// Surrounding quotes are stripped from each field.
// Commas within quoted fields do not split the field.
func Fields(line, cmd string) []string {
	l := TrimPrefix(line, cmd)
	if len(l) == 0 {
		return nil
	}
	var fields []string
	var f strings.Builder
	quoted := false
	for i := 0; i < len(l); i++ {
		c := l[i]
		switch {
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			fields = append(fields, strings.TrimSpace(f.String()))
			f.Reset()
		default:
			f.WriteByte(c)
		}
	}
	return append(fields, strings.TrimSpace(f.String()))
}

// Int returns the integer value of the idx field of the info line.
func Int(line, cmd string, idx int) (int, error) {
	fields := Fields(line, cmd)
	if idx < 0 || idx >= len(fields) {
		return 0, errors.Errorf("no field %d in '%s'", idx, line)
	}
	v, err := strconv.Atoi(fields[idx])
	if err != nil {
		return 0, errors.Wrapf(err, "field %d in '%s'", idx, line)
	}
	return v, nil
}

// Find returns the first line in lines with the info prefix for the command.
func Find(lines []string, cmd string) (string, bool) {
	for _, l := range lines {
		if HasPrefix(l, cmd) {
			return l, true
		}
	}
	return "", false
}
