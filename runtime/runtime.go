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

// Package runtime wires the certificate store, the endpoint manager, and
// every configured Wrangler into one unit with a single Start/Stop/Reload
// surface, the way nabbar-golib/httpserver's package-level New/Merge glue
// wires a Server up from a Config.
package runtime

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danfuzz/lactoserv-sub004/certstore"
	"github.com/danfuzz/lactoserv-sub004/endpoint"
	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/filepreserver"
	"github.com/danfuzz/lactoserv-sub004/netaddr"
	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
	"github.com/danfuzz/lactoserv-sub004/rtmetrics"
	"github.com/danfuzz/lactoserv-sub004/wrangler"
)

const (
	ErrorPortInUse rterr.CodeError = iota + rterr.MinPkgRuntime
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgRuntime, func(code rterr.CodeError) string {
		switch code {
		case ErrorPortInUse:
			return "listen address already in use"
		}
		return ""
	})
}

// EndpointSpec describes one endpoint to be wired into a Runtime.
type EndpointSpec struct {
	Config wrangler.Config
}

// Config configures a Runtime.
type Config struct {
	Endpoints []EndpointSpec
	Certs     *certstore.Store
	Log       rtlog.FuncLog
	Metrics   prometheus.Registerer // nil disables metrics collection
	// Preservers rotates and prunes any files (access logs, request
	// logs) the deployment wants kept bounded, alongside the endpoints
	// they log for. Each runs its own scheduler under the same
	// Start/Stop/Reload sequence as the endpoints.
	Preservers []filepreserver.Config
}

// Runtime is the top-level object a process constructs once at startup
// and drives through Start/Stop/Reload for the rest of its life.
type Runtime struct {
	cfg        Config
	endpoints  *endpoint.Manager
	collector  *rtmetrics.Collector
	sinks      []*eventchain.EventSink[rtevent.Event]
	preservers []*filepreserver.Preserver
}

// New builds a Runtime from cfg without starting anything.
func New(cfg Config) (*Runtime, rterr.Error) {
	rt := &Runtime{cfg: cfg, endpoints: endpoint.New()}

	if cfg.Metrics != nil {
		rt.collector = rtmetrics.NewCollector(cfg.Metrics)
	}

	for _, spec := range cfg.Endpoints {
		wc := spec.Config
		if wc.Certs == nil {
			wc.Certs = cfg.Certs
		}
		if wc.Log == nil {
			wc.Log = cfg.Log
		}

		w := wrangler.New(wc)
		if err := rt.endpoints.Add(w); err != nil {
			return nil, err
		}

		if rt.collector != nil && wc.Events != nil {
			sink := rt.collector.Sink(wc.Events.Kickoff())
			rt.sinks = append(rt.sinks, sink)
		}
	}

	for _, pc := range cfg.Preservers {
		if pc.Log == nil {
			pc.Log = cfg.Log
		}
		rt.preservers = append(rt.preservers, filepreserver.New(pc))
	}

	return rt, nil
}

// Start checks every configured listen address for a conflicting bound
// port, then starts every endpoint and every metrics sink.
func (rt *Runtime) Start(ctx context.Context, isReload bool) rterr.Error {
	for _, spec := range rt.cfg.Endpoints {
		if err := checkPortFree(spec.Config.Interface); err != nil {
			return rterr.New(ErrorPortInUse, err)
		}
	}

	for _, sink := range rt.sinks {
		s := sink
		go func() { _ = s.Run(ctx) }()
	}

	for _, p := range rt.preservers {
		if err := p.Start(ctx, isReload); err != nil {
			return err
		}
	}

	return rt.endpoints.StartAll(ctx, isReload)
}

// Stop stops every endpoint, every preserver, and every metrics sink.
func (rt *Runtime) Stop(ctx context.Context, willReload bool) rterr.Error {
	err := rt.endpoints.StopAll(ctx, willReload)

	for _, p := range rt.preservers {
		if perr := p.Stop(ctx, willReload); perr != nil && err == nil {
			err = perr
		}
	}

	for _, sink := range rt.sinks {
		sink.Stop()
	}
	return err
}

// Reload is Stop(willReload=true) followed by Start(isReload=true),
// mirroring nabbar-golib/httpserver's Merge-then-Listen reload sequence.
func (rt *Runtime) Reload(ctx context.Context) rterr.Error {
	if err := rt.Stop(ctx, true); err != nil {
		return err
	}
	return rt.Start(ctx, true)
}

// Endpoints exposes the underlying endpoint.Manager for lookup.
func (rt *Runtime) Endpoints() *endpoint.Manager {
	return rt.endpoints
}

// checkPortFree mirrors nabbar-golib/httpserver's PortInUse probe: a
// successful dial means something is already listening there. File-
// descriptor-based interfaces (inherited sockets) have nothing to probe.
func checkPortFree(ia netaddr.InterfaceAddress) error {
	if ia.HasFD {
		return nil
	}

	addr := ia.Address
	if ia.IsWildcard() {
		addr = "127.0.0.1"
	}

	d := net.Dialer{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(ia.Port)))
	if err != nil {
		return nil
	}
	_ = conn.Close()
	return rterr.New(ErrorPortInUse, nil)
}
