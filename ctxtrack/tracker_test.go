package ctxtrack_test

import (
	"context"
	"testing"

	"github.com/danfuzz/lactoserv-sub004/ctxtrack"
	"github.com/danfuzz/lactoserv-sub004/rtid"
)

func TestBindAndGet(t *testing.T) {
	tr := ctxtrack.New()
	socket := new(int)
	rec := newRecord()

	tr.Bind(socket, rec)

	got, ok := tr.Get(socket)
	if !ok || got != rec {
		t.Fatalf("expected bound record, got %+v ok=%v", got, ok)
	}

	tr.Unbind(socket)
	if _, ok := tr.Get(socket); ok {
		t.Fatalf("expected no binding after Unbind")
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	tr := ctxtrack.New()
	if _, ok := tr.Get(new(int)); ok {
		t.Fatalf("expected no binding for unknown handle")
	}
}

func TestScopePropagation(t *testing.T) {
	rec := newRecord()
	ctx := ctxtrack.WithScope(context.Background(), rec)

	got, ok := ctxtrack.FromScope(ctx)
	if !ok || got != rec {
		t.Fatalf("expected scope to carry record, got %+v ok=%v", got, ok)
	}
}

func TestResolvePrefersScopeOverTracker(t *testing.T) {
	tr := ctxtrack.New()
	socket := new(int)
	bound := newRecord()
	scoped := newRecord()

	tr.Bind(socket, bound)
	ctx := ctxtrack.WithScope(context.Background(), scoped)

	got, ok := ctxtrack.Resolve(ctx, tr, socket)
	if !ok || got != scoped {
		t.Fatalf("expected scope to win, got %+v ok=%v", got, ok)
	}

	got, ok = ctxtrack.Resolve(context.Background(), tr, socket)
	if !ok || got != bound {
		t.Fatalf("expected tracker fallback, got %+v ok=%v", got, ok)
	}
}

func newRecord() *ctxtrack.Record {
	return &ctxtrack.Record{ConnectionID: rtid.Next()}
}
