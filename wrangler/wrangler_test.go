package wrangler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danfuzz/lactoserv-sub004/ctxtrack"
	"github.com/danfuzz/lactoserv-sub004/netaddr"
	"github.com/danfuzz/lactoserv-sub004/wrangler"
)

func TestStartServeStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ctxtrack.FromScope(r.Context()); !ok {
			t.Errorf("expected connection record in request scope")
		}
		w.WriteHeader(http.StatusOK)
	})

	w := wrangler.New(wrangler.Config{
		Name:      "test",
		Interface: netaddr.InterfaceAddress{Address: "127.0.0.1", Port: 0},
		Handler:   handler,
	})

	ctx := context.Background()
	if err := w.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatalf("expected running after start")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx, false); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatalf("expected not running after stop")
	}
}

// TestGracefulShutdownForcesCloseAfterGrace exercises spec §8 scenario 6:
// with sessions still open when Stop is called, it should wait up to
// StopGrace for them to close on their own and then force them closed,
// rather than hanging indefinitely.
func TestGracefulShutdownForcesCloseAfterGrace(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	inFlight := make(chan struct{}, 2)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight <- struct{}{}
		<-release
	})

	w := wrangler.New(wrangler.Config{
		Name:      "test-shutdown",
		Interface: netaddr.InterfaceAddress{Address: "127.0.0.1", Port: 0},
		Handler:   handler,
	})

	ctx := context.Background()
	if err := w.Start(ctx, false); err != nil {
		t.Fatalf("start: %v", err)
	}

	addr := w.Addr()
	if addr == nil {
		t.Fatalf("expected a bound address after start")
	}

	// Open two sessions and leave their requests in flight so neither
	// closes on its own before the grace period elapses.
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := http.Get("http://" + addr.String() + "/")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-inFlight:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler never observed an in-flight request")
		}
	}

	start := time.Now()
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := w.Stop(stopCtx, false)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected Stop to report the sessions did not shut down within the grace period")
	}
	if elapsed < wrangler.StopGrace {
		t.Fatalf("expected Stop to wait at least the %v grace period, took %v", wrangler.StopGrace, elapsed)
	}
	if elapsed > wrangler.StopGrace+time.Second {
		t.Fatalf("expected Stop to force-close promptly after the grace period, took %v", elapsed)
	}
	if w.IsRunning() {
		t.Fatalf("expected not running after stop")
	}
}
