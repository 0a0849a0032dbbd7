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

// Package rtmetrics exposes every endpoint's event chain as Prometheus
// counters and gauges: an EventSink walks the chain and tallies
// connections, sessions, and requests per endpoint, independent of
// whatever else (logging, access control) is also consuming the same
// chain.
package rtmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
)

// Collector tallies events onto a fixed set of Prometheus metrics,
// registered under the given prometheus.Registerer.
type Collector struct {
	connectionsOpened *prometheus.CounterVec
	connectionsClosed *prometheus.CounterVec
	sessionsOpened    *prometheus.CounterVec
	sessionsClosed    *prometheus.CounterVec
	requestsReceived  *prometheus.CounterVec
	requestsDenied    *prometheus.CounterVec
	idleTimeouts      *prometheus.CounterVec
	undeadSessions    *prometheus.GaugeVec
	filesRotated      *prometheus.CounterVec
	filesDeleted      *prometheus.CounterVec
}

// NewCollector builds and registers the metric set under reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_connections_opened_total",
			Help: "Connections accepted, by endpoint.",
		}, []string{"endpoint"}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_connections_closed_total",
			Help: "Connections closed, by endpoint.",
		}, []string{"endpoint"}),
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_sessions_opened_total",
			Help: "HTTP sessions opened, by endpoint.",
		}, []string{"endpoint"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_sessions_closed_total",
			Help: "HTTP sessions closed, by endpoint.",
		}, []string{"endpoint"}),
		requestsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_requests_received_total",
			Help: "Requests received, by endpoint.",
		}, []string{"endpoint"}),
		requestsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_requests_denied_total",
			Help: "Requests denied admission, by endpoint.",
		}, []string{"endpoint"}),
		idleTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_idle_timeouts_total",
			Help: "Idle session timeouts, by endpoint.",
		}, []string{"endpoint"}),
		undeadSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lactoservd_undead_sessions",
			Help: "Sessions still open past their shutdown grace period, by endpoint.",
		}, []string{"endpoint"}),
		filesRotated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_files_rotated_total",
			Help: "Preserved files rotated, by preserved path.",
		}, []string{"endpoint"}),
		filesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lactoservd_files_deleted_total",
			Help: "Rotated files deleted by retention sweeps, by preserved path.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		c.connectionsOpened, c.connectionsClosed,
		c.sessionsOpened, c.sessionsClosed,
		c.requestsReceived, c.requestsDenied,
		c.idleTimeouts, c.undeadSessions,
		c.filesRotated, c.filesDeleted,
	)

	return c
}

// Process is an eventchain.Processor that tallies event's payload onto
// the collector's metrics; it never returns an error, so a metrics
// hiccup never stalls the chain for other consumers.
func (c *Collector) Process(_ context.Context, event *eventchain.LinkedEvent[rtevent.Event]) error {
	ev := event.Payload()

	switch ev.Kind {
	case rtevent.KindConnectionOpened:
		c.connectionsOpened.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindConnectionClosed:
		c.connectionsClosed.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindSessionOpened:
		c.sessionsOpened.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindSessionClosed:
		c.sessionsClosed.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindRequestReceived:
		c.requestsReceived.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindRequestDenied:
		c.requestsDenied.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindIdleTimeout:
		c.idleTimeouts.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindUndeadSessions:
		if n, ok := ev.Detail.(int); ok {
			c.undeadSessions.WithLabelValues(ev.Endpoint).Set(float64(n))
		}
	case rtevent.KindRotatedTo:
		c.filesRotated.WithLabelValues(ev.Endpoint).Inc()
	case rtevent.KindDeleted:
		c.filesDeleted.WithLabelValues(ev.Endpoint).Inc()
	}
	return nil
}

// Sink builds an EventSink driving Process from firstEvent onward.
func (c *Collector) Sink(firstEvent *eventchain.LinkedEvent[rtevent.Event]) *eventchain.EventSink[rtevent.Event] {
	return eventchain.NewEventSink[rtevent.Event](c.Process, firstEvent)
}
