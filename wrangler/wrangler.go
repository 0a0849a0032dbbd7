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

// Package wrangler runs one endpoint's listener: it accepts connections,
// terminates TLS with per-hostname SNI selection, speaks HTTP/1.1 and
// HTTP/2 on the same socket, and tracks connection/session context so
// RequestLifecycle can recover it for every inbound request. It is built
// the way nabbar-golib/httpserver's server type builds an *http.Server,
// generalized to the component lifecycle and event-emission surface the
// rest of this module shares.
package wrangler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/danfuzz/lactoserv-sub004/certstore"
	"github.com/danfuzz/lactoserv-sub004/component"
	"github.com/danfuzz/lactoserv-sub004/ctxtrack"
	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/netaddr"
	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtid"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
)

const (
	ErrorListen rterr.CodeError = iota + rterr.MinPkgWrangler
	ErrorSessionsNotShutDown
	ErrorValidateConfig
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgWrangler, func(code rterr.CodeError) string {
		switch code {
		case ErrorListen:
			return "failed to bind listener"
		case ErrorSessionsNotShutDown:
			return "sessions did not close within the shutdown grace period"
		case ErrorValidateConfig:
			return "invalid wrangler configuration"
		}
		return ""
	})
}

var configValidator = validator.New()

const (
	// DefaultIdleSessionTimeout matches the value named in §4.9.
	DefaultIdleSessionTimeout = 60 * time.Second
	// StopGrace bounds how long Stop waits for open connections to close
	// on their own before forcing them closed.
	StopGrace = 250 * time.Millisecond
)

// Config configures a Wrangler. Fields tagged `validate` are checked by
// Validate the way nabbar-golib/cluster's Config.Validate checks its own
// struct tags through the same library.
type Config struct {
	Name      string                   `validate:"required"`
	Interface netaddr.InterfaceAddress `validate:"-"`
	Certs     *certstore.Store         // nil means plaintext HTTP
	Handler   http.Handler             `validate:"required"`

	Log     rtlog.FuncLog
	Tracker *ctxtrack.Tracker
	Events  *eventchain.EventSource[rtevent.Event]

	IdleSessionTimeout           time.Duration `validate:"gte=0"`
	MaxHandlers                  int           `validate:"gte=0"`
	MaxConcurrentStreams         uint32
	PermitProhibitedCipherSuites bool
}

// Validate runs struct-tag validation over cfg, surfacing every failing
// field as one joined rterr.Error.
func (cfg Config) Validate() rterr.Error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	if _, ok := err.(*validator.InvalidValidationError); ok {
		return rterr.New(ErrorValidateConfig, err)
	}

	out := rterr.New(ErrorValidateConfig, nil)
	for _, fe := range err.(validator.ValidationErrors) {
		out.AddParent(fmt.Errorf("field %q fails constraint %q", fe.Field(), fe.ActualTag()))
	}
	return out
}

// trackedConn pairs a connection's context record with the per-session
// inactivity timer described in spec.md §4.9.
type trackedConn struct {
	rec   *ctxtrack.Record
	timer *time.Timer
}

// Wrangler owns one endpoint's listener and the *http.Server serving it.
type Wrangler struct {
	*component.Base

	cfg Config

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	conns    map[net.Conn]*trackedConn
}

// New builds a Wrangler and wires it into the component lifecycle.
func New(cfg Config) *Wrangler {
	if cfg.IdleSessionTimeout <= 0 {
		cfg.IdleSessionTimeout = DefaultIdleSessionTimeout
	}

	w := &Wrangler{cfg: cfg, conns: make(map[net.Conn]*trackedConn)}
	w.Base = component.New(cfg.Name, cfg.Log, w)
	w.Base.SetEvents(cfg.Events)
	return w
}

func (w *Wrangler) emit(kind rtevent.Kind, rec *ctxtrack.Record, detail any) {
	if w.cfg.Events == nil {
		return
	}
	ev := rtevent.Event{Kind: kind, At: time.Now().UTC(), Endpoint: w.cfg.Name, Detail: detail}
	if rec != nil {
		ev.Connection = rec.ConnectionID
		ev.Session = rec.SessionID
	}
	_, _ = w.cfg.Events.Emit(ev)
}

func (w *Wrangler) ImplInit() rterr.Error { return w.cfg.Validate() }

// ImplStart opens the listener, wraps it in TLS when Certs is set, and
// starts serving in the background.
func (w *Wrangler) ImplStart(ctx context.Context, isReload bool) rterr.Error {
	ln, err := w.openListener()
	if err != nil {
		return rterr.New(ErrorListen, err)
	}

	if w.cfg.Certs != nil {
		ln = tls.NewListener(ln, &tls.Config{
			GetCertificate: w.cfg.Certs.SNICallback,
		})
	}

	http2Cfg := &http2.Server{
		IdleTimeout: w.cfg.IdleSessionTimeout,
	}
	if w.cfg.MaxHandlers > 0 {
		http2Cfg.MaxHandlers = w.cfg.MaxHandlers
	}
	if w.cfg.MaxConcurrentStreams > 0 {
		http2Cfg.MaxConcurrentStreams = w.cfg.MaxConcurrentStreams
	}
	http2Cfg.PermitProhibitedCipherSuites = w.cfg.PermitProhibitedCipherSuites

	srv := &http.Server{
		Handler:     w.cfg.Handler,
		IdleTimeout: w.cfg.IdleSessionTimeout,
		ConnState:   w.onConnState,
		ConnContext: w.onConnContext,
	}

	if err := http2.ConfigureServer(srv, http2Cfg); err != nil {
		_ = ln.Close()
		return rterr.New(ErrorListen, err)
	}

	w.mu.Lock()
	w.listener = ln
	w.srv = srv
	w.mu.Unlock()

	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.Base.Logger().Entry(logrus.ErrorLevel, "listener exited").ErrorAdd(err).Log()
		}
	}()

	return nil
}

// ImplStop closes the listener immediately (no new connections), then
// waits up to StopGrace for in-flight connections to close on their own
// before forcing them closed.
func (w *Wrangler) ImplStop(ctx context.Context, willReload bool) rterr.Error {
	w.mu.Lock()
	srv := w.srv
	w.mu.Unlock()

	if srv == nil {
		return nil
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), StopGrace)
	defer cancel()

	w.emit(rtevent.KindShuttingDown, nil, shuttingDownDetail{Op: "drain", Remaining: StopGrace})

	err := srv.Shutdown(graceCtx)
	if err == nil {
		return nil
	}

	w.emit(rtevent.KindUndeadSessions, nil, w.openConnCount())
	if closeErr := srv.Close(); closeErr != nil {
		return rterr.New(ErrorSessionsNotShutDown, closeErr)
	}
	return rterr.New(ErrorSessionsNotShutDown, err)
}

func (w *Wrangler) openConnCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.conns)
}

// Addr returns the listener's bound address, or nil before Start has
// opened it. Callers use this to discover the actual port when Config's
// Interface requested an ephemeral one (Port: 0).
func (w *Wrangler) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// shuttingDownDetail is the Detail payload for a shuttingDown event, per
// spec.md §6.
type shuttingDownDetail struct {
	Op        string
	Remaining time.Duration
}

// idleTimeoutFired is called after IdleSessionTimeout has elapsed since
// the last activity on conn. Per spec.md §4.9: if the connection is not
// already closed, close it and emit idleTimeout; if it has already been
// closed (the timer lost the race against a concurrent StateClosed),
// log alreadyClosed instead.
func (w *Wrangler) idleTimeoutFired(conn net.Conn) {
	w.mu.Lock()
	tc, ok := w.conns[conn]
	w.mu.Unlock()

	if !ok {
		w.Base.Logger().Entry(logrus.DebugLevel, "idle timer fired for an already-closed session: alreadyClosed").Log()
		return
	}

	w.emit(rtevent.KindIdleTimeout, tc.rec, nil)
	_ = conn.Close()
}

// onConnState tracks every connection's open/idle/close transitions and
// binds a fresh ctxtrack.Record to it when it is first seen.
func (w *Wrangler) onConnState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		rec := &ctxtrack.Record{ConnectionID: rtid.Next(), SessionID: rtid.Next()}
		rec.Logger = rtlog.Safe(w.cfg.Log).WithField("endpoint", w.cfg.Name).WithField("connectionId", rec.ConnectionID)

		tc := &trackedConn{rec: rec}
		tc.timer = time.AfterFunc(w.cfg.IdleSessionTimeout, func() { w.idleTimeoutFired(conn) })

		w.mu.Lock()
		w.conns[conn] = tc
		w.mu.Unlock()

		if w.cfg.Tracker != nil {
			w.cfg.Tracker.Bind(conn, rec)
		}
		w.emit(rtevent.KindConnectionOpened, rec, nil)
		w.emit(rtevent.KindSessionOpened, rec, rec.ConnectionID)

	case http.StateActive:
		w.mu.Lock()
		tc, ok := w.conns[conn]
		w.mu.Unlock()
		if ok {
			tc.timer.Stop()
		}

	case http.StateIdle:
		w.mu.Lock()
		tc, ok := w.conns[conn]
		w.mu.Unlock()
		if ok {
			tc.timer.Reset(w.cfg.IdleSessionTimeout)
		}

	case http.StateClosed, http.StateHijacked:
		w.mu.Lock()
		tc, ok := w.conns[conn]
		delete(w.conns, conn)
		w.mu.Unlock()

		if !ok {
			return
		}
		tc.timer.Stop()
		if w.cfg.Tracker != nil {
			w.cfg.Tracker.Unbind(conn)
		}
		w.emit(rtevent.KindSessionClosed, tc.rec, "closed")
		w.emit(rtevent.KindConnectionClosed, tc.rec, nil)
	}
}

// onConnContext attaches the connection's Record to the request-scope
// context so reqlife.Lifecycle can recover it via ctxtrack.FromScope.
func (w *Wrangler) onConnContext(ctx context.Context, conn net.Conn) context.Context {
	w.mu.Lock()
	tc, ok := w.conns[conn]
	w.mu.Unlock()
	if !ok {
		return ctx
	}
	return ctxtrack.WithScope(ctx, tc.rec)
}

func (w *Wrangler) openListener() (net.Listener, error) {
	ia := w.cfg.Interface

	if ia.HasFD {
		f := os.NewFile(uintptr(ia.FD), fmt.Sprintf("fd-%d", ia.FD))
		return net.FileListener(f)
	}

	addr := ia.Address
	if ia.IsWildcard() {
		addr = ""
	}
	return net.Listen("tcp", net.JoinHostPort(addr, strconv.Itoa(ia.Port)))
}
