// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package trace_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/bc660/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	mrw := bytes.NewBufferString("one")
	// vanilla
	tr := trace.New(mrw)
	require.NotNil(t, tr)
	// with opts
	tr = trace.New(mrw, trace.WithLogger(zap.NewNop()), trace.WithReadMessage("rx"))
	require.NotNil(t, tr)
}

func TestRead(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mrw := bytes.NewBufferString("one")
	tr := trace.New(mrw, trace.WithLogger(zap.New(core)))
	i := make([]byte, 10)
	n, err := tr.Read(i)
	require.Nil(t, err)
	assert.Equal(t, 3, n)
	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, "r", e.Message)
	assert.Equal(t, map[string]interface{}{"data": "one"}, e.ContextMap())
}

func TestWrite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mrw := bytes.NewBufferString("one")
	tr := trace.New(mrw, trace.WithLogger(zap.New(core)))
	n, err := tr.Write([]byte("two"))
	require.Nil(t, err)
	assert.Equal(t, 3, n)
	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, "w", e.Message)
	assert.Equal(t, map[string]interface{}{"data": "two"}, e.ContextMap())
}

func TestMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mrw := bytes.NewBufferString("one")
	tr := trace.New(mrw,
		trace.WithLogger(zap.New(core)),
		trace.WithReadMessage("modem rx"),
		trace.WithWriteMessage("modem tx"))
	_, err := tr.Write([]byte("AT\r\n"))
	require.Nil(t, err)
	_, err = tr.Read(make([]byte, 10))
	require.Nil(t, err)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "modem tx", logs.All()[0].Message)
	assert.Equal(t, "modem rx", logs.All()[1].Message)
}

func TestHexDump(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mrw := bytes.NewBufferString("one")
	tr := trace.New(mrw, trace.WithLogger(zap.New(core)), trace.WithHexDump())
	_, err := tr.Read(make([]byte, 10))
	require.Nil(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]interface{}{"data": "6f6e65"}, logs.All()[0].ContextMap())
}

func TestLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mrw := bytes.NewBufferString("one")
	tr := trace.New(mrw, trace.WithLogger(zap.New(core)))
	_, err := tr.Read(make([]byte, 10))
	require.Nil(t, err)
	assert.Equal(t, 0, logs.Len())

	mrw = bytes.NewBufferString("one")
	tr = trace.New(mrw, trace.WithLogger(zap.New(core)), trace.WithLevel(zapcore.InfoLevel))
	_, err = tr.Read(make([]byte, 10))
	require.Nil(t, err)
	assert.Equal(t, 1, logs.Len())
}
