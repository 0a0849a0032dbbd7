package certstore_test

import (
	"testing"

	"github.com/danfuzz/lactoserv-sub004/certstore"
)

func material(tag string) certstore.Material {
	return certstore.Material{PEMCert: []byte(tag)}
}

func TestExactMatchBeatsWildcard(t *testing.T) {
	s := certstore.New()
	if err := s.Add("www.example.com", material("exact")); err != nil {
		t.Fatalf("add exact: %v", err)
	}
	if err := s.Add("*.example.com", material("wildcard")); err != nil {
		t.Fatalf("add wildcard: %v", err)
	}

	m, ok := s.Find("www.example.com")
	if !ok || string(m.PEMCert) != "exact" {
		t.Fatalf("expected exact match, got %+v ok=%v", m, ok)
	}
}

func TestWildcardMatchesSingleLeadingComponent(t *testing.T) {
	s := certstore.New()
	if err := s.Add("*.example.com", material("wildcard")); err != nil {
		t.Fatalf("add wildcard: %v", err)
	}

	m, ok := s.Find("bar.example.com")
	if !ok || string(m.PEMCert) != "wildcard" {
		t.Fatalf("expected wildcard match, got %+v ok=%v", m, ok)
	}

	_, ok = s.Find("foo.bar.example.com")
	if ok {
		t.Fatalf("wildcard must not match more than one leading component")
	}
}

func TestGlobalWildcardFallback(t *testing.T) {
	s := certstore.New()
	if err := s.Add("*", material("global")); err != nil {
		t.Fatalf("add global: %v", err)
	}

	m, ok := s.Find("anything.example.net")
	if !ok || string(m.PEMCert) != "global" {
		t.Fatalf("expected global wildcard fallback, got %+v ok=%v", m, ok)
	}
}

func TestNotFound(t *testing.T) {
	s := certstore.New()
	if _, ok := s.Find("nope.example.com"); ok {
		t.Fatalf("expected lookup to fail")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	s := certstore.New()
	if err := s.Add("example.com", material("first")); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if err := s.Add("example.com", material("second")); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestMakeSubset(t *testing.T) {
	s := certstore.New()
	_ = s.Add("a.example.com", material("a"))
	_ = s.Add("b.example.com", material("b"))

	sub := s.MakeSubset([]string{"a.example.com"})

	if _, ok := sub.Find("a.example.com"); !ok {
		t.Fatalf("expected subset to retain a.example.com")
	}
	if _, ok := sub.Find("b.example.com"); ok {
		t.Fatalf("expected subset to drop b.example.com")
	}
}
