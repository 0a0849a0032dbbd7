package component_test

import (
	"context"
	"testing"

	"github.com/danfuzz/lactoserv-sub004/component"
	"github.com/danfuzz/lactoserv-sub004/rterr"
)

type recordingImpl struct {
	events *[]string
	label  string
}

func (r recordingImpl) ImplInit() rterr.Error { return nil }

func (r recordingImpl) ImplStart(ctx context.Context, isReload bool) rterr.Error {
	*r.events = append(*r.events, r.label+":start")
	return nil
}

func (r recordingImpl) ImplStop(ctx context.Context, willReload bool) rterr.Error {
	*r.events = append(*r.events, r.label+":stop")
	return nil
}

func TestChildStartsAfterParentAndStopsBefore(t *testing.T) {
	var events []string

	parent := component.New("parent", nil, recordingImpl{events: &events, label: "parent"})
	child := component.New("child", nil, recordingImpl{events: &events, label: "child"})
	parent.AddChild(child)

	if err := parent.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := parent.Stop(context.Background(), false); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"parent:start", "child:start", "child:stop", "parent:stop"}
	if len(events) != len(want) {
		t.Fatalf("got %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("got %v, want %v", events, want)
		}
	}
}

func TestBeforeStartHookAbortsTransition(t *testing.T) {
	var events []string
	boom := rterr.New(component.ErrorHookFailed, nil)

	c := component.New("x", nil, recordingImpl{events: &events, label: "x"})
	c.RegisterFuncStart(func(component.Component) rterr.Error { return boom }, nil)

	err := c.Start(context.Background(), false)
	if err == nil {
		t.Fatalf("expected error from before-start hook")
	}
	if len(events) != 0 {
		t.Fatalf("expected start body not to run, got %v", events)
	}
	if c.IsRunning() {
		t.Fatalf("expected component not running after aborted start")
	}
}
