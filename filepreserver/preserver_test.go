package filepreserver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/filepreserver"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
)

func TestRotateNowRenamesFileAndEnforcesRetention(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "access.log")

	if err := os.WriteFile(target, []byte("line one\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := filepreserver.New(filepreserver.Config{
		Path:        target,
		CheckPeriod: time.Hour,
		MaxOldCount: 1,
	})

	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = p.Stop(context.Background(), false) }()

	p.RotateNow()
	// Give the scheduler goroutine a moment to observe the request.
	time.Sleep(50 * time.Millisecond)

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected original file to be renamed away, stat err=%v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one rotated file, got %d", len(entries))
	}
}

func TestRotateEmitsRotatedToEvent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "access.log")
	if err := os.WriteFile(target, []byte("line one\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	events := eventchain.NewEventSource[rtevent.Event](4)

	p := filepreserver.New(filepreserver.Config{
		Path:        target,
		CheckPeriod: time.Hour,
		Events:      events,
	})

	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = p.Stop(context.Background(), false) }()

	p.RotateNow()
	time.Sleep(50 * time.Millisecond)

	cur, ok := events.CurrentNow()
	if !ok {
		t.Fatalf("expected at least one emitted event")
	}
	if cur.Payload().Kind != rtevent.KindRotatedTo {
		t.Fatalf("expected rotatedTo event, got %v", cur.Payload().Kind)
	}
}

func TestRotateBySizeThreshold(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "access.log")
	if err := os.WriteFile(target, []byte("short\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := filepreserver.New(filepreserver.Config{
		Path:        target,
		AtSize:      1024,
		CheckPeriod: 10 * time.Millisecond,
		MaxOldCount: 2,
	})

	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = p.Stop(context.Background(), false) }()

	// Below threshold: no rotation across several check ticks.
	time.Sleep(60 * time.Millisecond)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected file below AtSize to remain in place: %v", err)
	}

	if err := os.WriteFile(target, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("grow file: %v", err)
	}

	// Above threshold: the next tick should rotate it away.
	time.Sleep(60 * time.Millisecond)
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected file at or above AtSize to be rotated away, stat err=%v", err)
	}
}

func TestOnStopSkipsRotationDuringReload(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "access.log")
	if err := os.WriteFile(target, []byte("line one\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := filepreserver.New(filepreserver.Config{
		Path:        target,
		CheckPeriod: time.Hour,
		Triggers:    filepreserver.Triggers{OnStop: true},
	})

	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := p.Stop(context.Background(), true); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected onStop to be skipped ahead of a reload, stat err=%v", err)
	}
}

func TestRotateTolerantOfMissingFile(t *testing.T) {
	dir := t.TempDir()
	p := filepreserver.New(filepreserver.Config{
		Path:        filepath.Join(dir, "missing.log"),
		CheckPeriod: time.Hour,
	})

	if err := p.Start(context.Background(), false); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.RotateNow()
	time.Sleep(20 * time.Millisecond)
	if err := p.Stop(context.Background(), false); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
