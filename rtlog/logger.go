/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package rtlog is the logging contract used across the network runtime.
// It wraps logrus the way nabbar-golib/logger does: no package-level
// singleton, every component holds a FuncLog and derives named
// sub-loggers carrying its own fields.
package rtlog

import (
	"github.com/sirupsen/logrus"
)

// FuncLog returns the Logger a component should use. A nil FuncLog, or
// one that returns nil, must never change a behavioral decision: callers
// fall back to a discarding logger.
type FuncLog func() Logger

// Logger is the narrow logging surface every component depends on.
type Logger interface {
	// Entry starts a field-carrying log statement at the given level.
	Entry(lvl logrus.Level, msg string) Entry
	// WithField derives a child Logger with one persistent field set,
	// e.g. for a per-connection or per-request sub-logger.
	WithField(key string, val interface{}) Logger
	// Raw exposes the underlying logrus.Logger for library glue code
	// that needs an *logrus.Logger directly (e.g. net/http ErrorLog).
	Raw() *logrus.Logger
}

// Entry is a single in-flight log statement being built up with fields
// before being emitted, mirroring nabbar-golib/logger/entry.
type Entry interface {
	FieldAdd(key string, val interface{}) Entry
	ErrorAdd(err error) Entry
	Log()
}

type logger struct {
	l *logrus.Logger
	f logrus.Fields
}

// New wraps an existing *logrus.Logger as a Logger.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return &logger{l: l, f: logrus.Fields{}}
}

// Default returns a Logger writing to the standard logrus instance. It
// exists only as a last-resort fallback for nil FuncLog cases, never as
// an ambient global used directly by components.
func Default() Logger {
	return New(logrus.StandardLogger())
}

func (g *logger) Entry(lvl logrus.Level, msg string) Entry {
	fields := make(logrus.Fields, len(g.f))
	for k, v := range g.f {
		fields[k] = v
	}
	return &entry{log: g.l, lvl: lvl, msg: msg, fields: fields}
}

func (g *logger) WithField(key string, val interface{}) Logger {
	fields := make(logrus.Fields, len(g.f)+1)
	for k, v := range g.f {
		fields[k] = v
	}
	fields[key] = val
	return &logger{l: g.l, f: fields}
}

func (g *logger) Raw() *logrus.Logger { return g.l }

type entry struct {
	log    *logrus.Logger
	lvl    logrus.Level
	msg    string
	fields logrus.Fields
	err    error
}

func (e *entry) FieldAdd(key string, val interface{}) Entry {
	e.fields[key] = val
	return e
}

func (e *entry) ErrorAdd(err error) Entry {
	e.err = err
	return e
}

func (e *entry) Log() {
	if e.log == nil {
		return
	}

	ent := e.log.WithFields(e.fields)
	msg := e.msg

	if e.err != nil {
		ent = ent.WithError(e.err)
	}

	ent.Log(e.lvl, msg)
}

// Safe returns a non-nil Logger, substituting a discarding logger when
// fn is nil or returns nil. It is the one place nil-FuncLog tolerance is
// centralized.
func Safe(fn FuncLog) Logger {
	if fn == nil {
		return discard{}
	}
	if l := fn(); l != nil {
		return l
	}
	return discard{}
}

type discard struct{}

func (discard) Entry(_ logrus.Level, _ string) Entry { return discardEntry{} }
func (discard) WithField(_ string, _ interface{}) Logger { return discard{} }
func (discard) Raw() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return l
}

type discardEntry struct{}

func (discardEntry) FieldAdd(_ string, _ interface{}) Entry { return discardEntry{} }
func (discardEntry) ErrorAdd(_ error) Entry                 { return discardEntry{} }
func (discardEntry) Log()                                   {}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
