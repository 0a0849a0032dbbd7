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

// Package threadlet implements the cooperative task primitive every
// long-running component in this module is built from: an idle/starting/
// running/stopping state machine with a start body run once, a main body
// run until cancellation is observed, and a cancellation signal the body
// polls at its own suspension points.
package threadlet

import (
	"context"
	"sync"

	"github.com/danfuzz/lactoserv-sub004/rterr"
)

const (
	ErrorStartBody rterr.CodeError = iota + rterr.MinPkgThreadlet
	ErrorMainBody
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgThreadlet, func(code rterr.CodeError) string {
		switch code {
		case ErrorStartBody:
			return "start body returned an error"
		case ErrorMainBody:
			return "main body returned an error"
		}
		return ""
	})
}

// StartBody runs once before MainBody; a non-nil return aborts the start.
type StartBody func(ctx context.Context) error

// MainBody runs until ctx is cancelled via Stop; it should check
// ctx.Done() (or ShouldStop) at every suspension point.
type MainBody func(ctx context.Context) error

type state int

const (
	stateIdle state = iota
	stateStarting
	stateRunning
	stateStopping
)

// Threadlet is a cooperative, restartable long-running task.
type Threadlet interface {
	// Start transitions idle -> starting -> running, running startBody
	// then launching mainBody in the background. Idempotent: calling
	// Start while already starting/running returns nil without effect.
	Start(ctx context.Context) rterr.Error
	// Stop requests cancellation and blocks until mainBody returns.
	// Idempotent and safe to call when not running.
	Stop(ctx context.Context) rterr.Error
	// Restart stops (if running) then starts again.
	Restart(ctx context.Context) rterr.Error
	// Run is a convenience for Start followed by Stop once the body
	// exits on its own, propagating the body's result.
	Run(ctx context.Context) rterr.Error
	// ShouldStop reports whether cancellation has been requested.
	ShouldStop() bool
	// WhenStopRequested returns a channel closed once Stop has been
	// called, for use in a select alongside other suspension points.
	WhenStopRequested() <-chan struct{}
	// IsRunning reports whether the threadlet is starting or running. It
	// turns false as soon as Stop is called, even while the main body is
	// still winding down.
	IsRunning() bool
}

type threadlet struct {
	mu sync.Mutex

	startBody StartBody
	mainBody  MainBody

	st       state
	cancel   context.CancelFunc
	stopSig  chan struct{}
	stopOnce *sync.Once
	doneCh   chan struct{}
	lastErr  error
}

// ensureStopSig must be called with mu held; it lazily creates the
// stopSig channel (and its paired close-once guard) so WhenStopRequested
// can be called before Start without losing the signal.
func (t *threadlet) ensureStopSig() (chan struct{}, *sync.Once) {
	if t.stopSig == nil {
		t.stopSig = make(chan struct{})
		t.stopOnce = &sync.Once{}
	}
	return t.stopSig, t.stopOnce
}

// New builds a Threadlet from optional start and main bodies; either may
// be nil.
func New(startBody StartBody, mainBody MainBody) Threadlet {
	return &threadlet{startBody: startBody, mainBody: mainBody, st: stateIdle}
}

func (t *threadlet) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st == stateRunning || t.st == stateStarting
}

func (t *threadlet) ShouldStop() bool {
	t.mu.Lock()
	sig := t.stopSig
	t.mu.Unlock()
	if sig == nil {
		return false
	}
	select {
	case <-sig:
		return true
	default:
		return false
	}
}

func (t *threadlet) WhenStopRequested() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	sig, _ := t.ensureStopSig()
	return sig
}

func (t *threadlet) Start(ctx context.Context) rterr.Error {
	t.mu.Lock()
	if t.st != stateIdle {
		t.mu.Unlock()
		return nil
	}
	t.st = stateStarting
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	stopSig, stopOnce := t.ensureStopSig()
	t.doneCh = make(chan struct{})
	t.lastErr = nil
	t.mu.Unlock()

	if t.startBody != nil {
		if err := t.startBody(runCtx); err != nil {
			t.mu.Lock()
			t.st = stateIdle
			t.mu.Unlock()
			cancel()
			return rterr.New(ErrorStartBody, err)
		}
	}

	t.mu.Lock()
	t.st = stateRunning
	doneCh := t.doneCh
	t.mu.Unlock()

	go func() {
		var err error
		if t.mainBody != nil {
			err = t.mainBody(runCtx)
		} else {
			<-runCtx.Done()
		}

		stopOnce.Do(func() { close(stopSig) })

		t.mu.Lock()
		t.st = stateIdle
		t.lastErr = err
		t.stopSig = nil
		t.stopOnce = nil
		t.mu.Unlock()

		close(doneCh)
	}()

	return nil
}

func (t *threadlet) Stop(ctx context.Context) rterr.Error {
	t.mu.Lock()
	if t.st == stateIdle {
		t.mu.Unlock()
		return nil
	}
	t.st = stateStopping
	cancel := t.cancel
	doneCh := t.doneCh
	stopSig, stopOnce := t.ensureStopSig()
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	stopOnce.Do(func() { close(stopSig) })

	if doneCh != nil {
		select {
		case <-doneCh:
		case <-ctx.Done():
			return nil
		}
	}

	t.mu.Lock()
	err := t.lastErr
	t.lastErr = nil
	t.mu.Unlock()

	if err != nil {
		return rterr.New(ErrorMainBody, err)
	}
	return nil
}

func (t *threadlet) Restart(ctx context.Context) rterr.Error {
	if err := t.Stop(ctx); err != nil {
		return err
	}
	return t.Start(ctx)
}

func (t *threadlet) Run(ctx context.Context) rterr.Error {
	if err := t.Start(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	doneCh := t.doneCh
	t.mu.Unlock()

	select {
	case <-doneCh:
	case <-ctx.Done():
	}

	return t.Stop(ctx)
}
