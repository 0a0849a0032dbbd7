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

// Command lactoservd is the thin process entry point around the runtime
// package: it wires flags, signals, and logging the way a deployment
// would, and leaves configuration-file parsing, routing, and certificate
// validation to whatever external collaborator the deployment supplies
// (spec.md §1's Non-goals). It exists only to give the runtime a process
// to live in; the core engineering is in the sibling packages.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danfuzz/lactoserv-sub004/certstore"
	"github.com/danfuzz/lactoserv-sub004/ctxtrack"
	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/filepreserver"
	"github.com/danfuzz/lactoserv-sub004/netaddr"
	"github.com/danfuzz/lactoserv-sub004/reqlife"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
	"github.com/danfuzz/lactoserv-sub004/runtime"
	"github.com/danfuzz/lactoserv-sub004/tokenbucket"
	"github.com/danfuzz/lactoserv-sub004/wrangler"
)

var (
	flagListen    string
	flagHostname  string
	flagCertFile  string
	flagKeyFile   string
	flagRate      float64
	flagBurst     float64
	flagAccessLog string
)

func main() {
	root := &cobra.Command{
		Use:   "lactoservd",
		Short: "Run a single-endpoint instance of the network runtime.",
		RunE:  runServe,
	}

	root.Flags().StringVar(&flagListen, "listen", "*:8443", "listener interface string, per §6's grammar")
	root.Flags().StringVar(&flagHostname, "hostname", "localhost", "hostname the endpoint's certificate is bound to")
	root.Flags().StringVar(&flagCertFile, "cert-file", "", "PEM certificate file (plaintext HTTP if empty)")
	root.Flags().StringVar(&flagKeyFile, "key-file", "", "PEM private key file")
	root.Flags().Float64Var(&flagRate, "rate-limit-flow", 0, "token-bucket flow rate in tokens/sec (0 disables admission control)")
	root.Flags().Float64Var(&flagBurst, "rate-limit-burst", 20, "token-bucket burst size")
	root.Flags().StringVar(&flagAccessLog, "access-log", "", "path to an access-log file to rotate and prune (disabled if empty)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	funcLog := func() rtlog.Logger { return rtlog.New(log) }

	ia, perr := netaddr.ParseInterfaceString(flagListen)
	if perr != nil {
		return fmt.Errorf("parse --listen: %w", perr)
	}

	certs, cerr := buildCertStore()
	if cerr != nil {
		return fmt.Errorf("load certificate material: %w", cerr)
	}

	var limiter tokenbucket.TokenBucket
	if flagRate > 0 {
		tb, err := tokenbucket.New(tokenbucket.Config{
			BurstSize: flagBurst,
			FlowRate:  flagRate,
		})
		if err != nil {
			return fmt.Errorf("configure rate limiter: %w", err)
		}
		limiter = tb
	}

	events := eventchain.NewEventSource[rtevent.Event](256)

	var preservers []filepreserver.Config
	if flagAccessLog != "" {
		preservers = append(preservers, filepreserver.Config{
			Path:        flagAccessLog,
			AtSize:      10 * 1024 * 1024,
			CheckPeriod: 5 * time.Minute,
			MaxOldCount: 10,
			Triggers:    filepreserver.Triggers{OnStart: true, OnReload: true},
			Events:      events,
			Log:         funcLog,
		})
	}

	lifecycle := reqlife.New(reqlife.Config{
		Handler:  reqlife.HandlerFunc(echoHandler),
		Limiter:  limiter,
		Endpoint: "main",
		Events:   events,
		Log:      funcLog,
	})

	rt, rerr := runtime.New(runtime.Config{
		Certs:      certs,
		Log:        funcLog,
		Metrics:    prometheus.DefaultRegisterer,
		Preservers: preservers,
		Endpoints: []runtime.EndpointSpec{
			{Config: wrangler.Config{
				Name:      "main",
				Interface: ia,
				Certs:     certs,
				Handler:   lifecycle,
				Log:       funcLog,
				Events:    events,
			}},
		},
	})
	if rerr != nil {
		return fmt.Errorf("build runtime: %w", rerr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx, false); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	log.WithField("listen", flagListen).Info("lactoservd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			log.Info("reloading on SIGHUP")
			if err := rt.Reload(ctx); err != nil {
				log.WithError(err).Error("reload failed")
			}
			continue
		}
		log.WithField("signal", sig.String()).Info("stopping on signal")
		if err := rt.Stop(context.Background(), false); err != nil {
			log.WithError(err).Error("shutdown did not complete cleanly")
			return err
		}
		return nil
	}
	return nil
}

// buildCertStore loads one certificate/key pair bound to --hostname. This
// is the cmd-level convenience the Non-goal in spec.md §1 calls out:
// real deployments resolve a CertificateStore some other way (a config
// loader, a secrets manager) and hand the runtime the resolved store.
func buildCertStore() (*certstore.Store, error) {
	if flagCertFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(flagCertFile, flagKeyFile)
	if err != nil {
		return nil, err
	}

	store := certstore.New()
	material := certstore.Material{SecureContext: &tls.Config{Certificates: []tls.Certificate{cert}}}
	if err := store.Add(flagHostname, material); err != nil {
		return nil, err
	}
	return store, nil
}

// echoHandler is a placeholder Handler: a real deployment supplies its
// own mount-table router (spec.md §1's Non-goal on request routing).
func echoHandler(w http.ResponseWriter, r *http.Request, rec *ctxtrack.Record) (bool, error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := fmt.Fprintf(w, "lactoservd: %s %s\n", r.Method, r.URL.Path)
	return true, err
}
