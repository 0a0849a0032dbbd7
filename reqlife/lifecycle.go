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

// Package reqlife walks a single HTTP request through admission, handler
// dispatch, and response-completion bookkeeping, the way ProtocolWrangler
// walks a connection through open/idle/close.
package reqlife

import (
	"net/http"
	"time"

	"github.com/danfuzz/lactoserv-sub004/ctxtrack"
	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtid"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
	"github.com/danfuzz/lactoserv-sub004/tokenbucket"
	"github.com/sirupsen/logrus"
)

const (
	ErrorNoCapacity rterr.CodeError = iota + rterr.MinPkgRequestLife
)

// RequestReceivedDetail is the Detail payload for a requestReceived
// event, per spec.md §4.8 step 3.
type RequestReceivedDetail struct {
	Method           string
	URL              string
	Origin           string
	Protocol         string
	SanitizedHeaders map[string][]string
}

func init() {
	rterr.RegisterMessage(rterr.MinPkgRequestLife, func(code rterr.CodeError) string {
		switch code {
		case ErrorNoCapacity:
			return "rate limiter denied admission"
		}
		return ""
	})
}

// Handler is the application's request logic. Handle returns (true, nil)
// once it has fully written a response, (false, nil) to let the caller
// write a 404, or a non-nil error to have the caller log it and write a
// 500. Handle must not return (true, nil) without having written at least
// a status line; Lifecycle detects that case and logs it as a framework
// defect rather than silently hanging the client.
type Handler interface {
	Handle(w http.ResponseWriter, r *http.Request, rec *ctxtrack.Record) (bool, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, rec *ctxtrack.Record) (bool, error)

func (f HandlerFunc) Handle(w http.ResponseWriter, r *http.Request, rec *ctxtrack.Record) (bool, error) {
	return f(w, r, rec)
}

// Config configures a Lifecycle.
type Config struct {
	Handler      Handler
	Limiter      tokenbucket.TokenBucket // nil disables admission control
	ServerHeader string
	Events       *eventchain.EventSource[rtevent.Event]
	Endpoint     string
	Log          rtlog.FuncLog
}

// Lifecycle runs every inbound request on an endpoint through the same
// admission/dispatch/completion sequence.
type Lifecycle struct {
	cfg Config
}

// New builds a Lifecycle from cfg.
func New(cfg Config) *Lifecycle {
	if cfg.ServerHeader == "" {
		cfg.ServerHeader = "lactoservd"
	}
	return &Lifecycle{cfg: cfg}
}

// statusRecorder wraps a ResponseWriter to detect whether the handler ever
// wrote anything.
type statusRecorder struct {
	http.ResponseWriter
	wrote bool
}

func (s *statusRecorder) WriteHeader(code int) {
	s.wrote = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

// ServeHTTP adapts Lifecycle to http.Handler so a Wrangler can serve
// requests directly through Run.
func (l *Lifecycle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.Run(w, r)
}

// Run walks r through admission, target classification, handler dispatch,
// and completion, recovering connection/session context from parent (the
// incoming request's context) via ctxtrack.
func (l *Lifecycle) Run(w http.ResponseWriter, r *http.Request) {
	parent, _ := ctxtrack.FromScope(r.Context())

	rec := &ctxtrack.Record{RequestID: rtid.Next()}
	if parent != nil {
		rec.ConnectionID = parent.ConnectionID
		rec.SessionID = parent.SessionID
		rec.Parent = parent
	}

	log := rtlog.Safe(l.cfg.Log).
		WithField("endpoint", l.cfg.Endpoint).
		WithField("requestId", rec.RequestID)
	rec.Logger = log

	w.Header().Set("Server", l.cfg.ServerHeader)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	l.emit(rtevent.KindRequestReceived, rec, RequestReceivedDetail{
		Method:           r.Method,
		URL:              r.URL.String(),
		Origin:           scheme + "://" + r.Host,
		Protocol:         r.Proto,
		SanitizedHeaders: SanitizeHeaders(r.Header),
	})

	if form := ClassifyTarget(r); form == TargetOther {
		log.Entry(logrus.WarnLevel, "rejecting request with unrecognized target form").Log()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if l.cfg.Limiter != nil {
		amount, err := l.cfg.Limiter.RequestGrant(r.Context(), tokenbucket.Request{Min: 1, Max: 1})
		if err != nil || amount == 0 {
			l.emit(rtevent.KindRequestDenied, rec, "no capacity")
			w.Header().Set("Connection", "close")
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	rw := &statusRecorder{ResponseWriter: w}
	handled, err := l.cfg.Handler.Handle(rw, r, rec)

	switch {
	case err != nil:
		log.Entry(logrus.ErrorLevel, "handler returned an error").ErrorAdd(err).Log()
		l.emit(rtevent.KindTopLevelError, rec, err.Error())
		if !rw.wrote {
			http.Error(rw, "internal server error", http.StatusInternalServerError)
		}
	case !handled:
		if !rw.wrote {
			http.NotFound(rw, r)
		}
	case !rw.wrote:
		log.Entry(logrus.ErrorLevel, "handler reported success without writing a response").Log()
		l.emit(rtevent.KindResponseNotActuallyHandled, rec, nil)
		http.Error(rw, "internal server error", http.StatusInternalServerError)
	}

	l.emit(rtevent.KindRequestHandled, rec, nil)
}

func (l *Lifecycle) emit(kind rtevent.Kind, rec *ctxtrack.Record, detail any) {
	if l.cfg.Events == nil {
		return
	}
	_, _ = l.cfg.Events.Emit(rtevent.Event{
		Kind:       kind,
		At:         time.Now().UTC(),
		Endpoint:   l.cfg.Endpoint,
		Connection: rec.ConnectionID,
		Session:    rec.SessionID,
		Request:    rec.RequestID,
		Detail:     detail,
	})
}
