// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog is the client's logging facade: an atomic-gated enable
// switch wrapping a LogProvider, so call sites log unconditionally and
// pay no formatting cost when logging is off. A Trace level is added for
// wire-frame dumps under -v, and output is routed to stderr so it never
// interleaves with the chat transcript on stdout.
package clog

import (
	"log"
	"os"
	"sync/atomic"
)

// LogProvider is the set of levels a backing logger must implement.
// Trace is reserved for raw encoded/decoded frame dumps; everything else
// follows RFC5424 severity naming.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Trace(format string, v ...interface{})
}

// Clog is the logging handle threaded through the client and
// reliability packages. Its zero value is safe to use and logs nothing
// until LogMode(true) is called.
type Clog struct {
	provider LogProvider
	has      uint32 // 1: enabled, 0: disabled
}

// New returns a Clog writing to stderr with prefix, disabled by default.
func New(prefix string) Clog {
	return Clog{provider: defaultLogger{log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)}}
}

// LogMode enables or disables output. Called once at startup from the -v
// flag; never toggled mid-run.
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider overrides the backing provider, e.g. in tests that want
// to capture log output.
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

func (sf Clog) enabled() bool { return atomic.LoadUint32(&sf.has) == 1 }

// Critical logs an unrecoverable condition.
func (sf Clog) Critical(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Critical(format, v...)
	}
}

// Error logs a recoverable fault.
func (sf Clog) Error(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Error(format, v...)
	}
}

// Warn logs a condition worth noticing but not acting on.
func (sf Clog) Warn(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Warn(format, v...)
	}
}

// Debug logs event-loop bookkeeping: state transitions, retransmissions,
// rebinds.
func (sf Clog) Debug(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Debug(format, v...)
	}
}

// Trace logs raw wire frames, both directions, for protocol debugging.
func (sf Clog) Trace(format string, v ...interface{}) {
	if sf.enabled() {
		sf.provider.Trace(format, v...)
	}
}

type defaultLogger struct {
	*log.Logger
}

var _ LogProvider = (*defaultLogger)(nil)

func (sf defaultLogger) Critical(format string, v ...interface{}) { sf.Printf("[C]: "+format, v...) }
func (sf defaultLogger) Error(format string, v ...interface{})    { sf.Printf("[E]: "+format, v...) }
func (sf defaultLogger) Warn(format string, v ...interface{})     { sf.Printf("[W]: "+format, v...) }
func (sf defaultLogger) Debug(format string, v ...interface{})    { sf.Printf("[D]: "+format, v...) }
func (sf defaultLogger) Trace(format string, v ...interface{})    { sf.Printf("[T]: "+format, v...) }
