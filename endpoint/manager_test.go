package endpoint_test

import (
	"net/http"
	"testing"

	"github.com/danfuzz/lactoserv-sub004/endpoint"
	"github.com/danfuzz/lactoserv-sub004/netaddr"
	"github.com/danfuzz/lactoserv-sub004/wrangler"
)

func newTestWrangler(name string) *wrangler.Wrangler {
	return wrangler.New(wrangler.Config{
		Name:      name,
		Interface: netaddr.InterfaceAddress{Address: "127.0.0.1", Port: 0},
		Handler:   http.NotFoundHandler(),
	})
}

func TestAddRejectsDuplicateName(t *testing.T) {
	m := endpoint.New()

	if err := m.Add(newTestWrangler("a")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := m.Add(newTestWrangler("a")); err == nil {
		t.Fatalf("expected duplicate-name rejection")
	}
}

func TestFindUnknownEndpoint(t *testing.T) {
	m := endpoint.New()
	if _, err := m.Find("missing"); err == nil {
		t.Fatalf("expected error for unknown endpoint")
	}
}

func TestNamesPreservesRegistrationOrder(t *testing.T) {
	m := endpoint.New()
	_ = m.Add(newTestWrangler("b"))
	_ = m.Add(newTestWrangler("a"))

	names := m.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("expected [b a], got %v", names)
	}
}
