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

// Package component gives every long-lived piece of the runtime (wrangler,
// endpoint manager, file preserver) a uniform init/start/stop lifecycle,
// with before/after hooks and parent/child ordering: children start after
// their parent's own start body and stop before it.
package component

import (
	"context"
	"sync"
	"time"

	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
)

const (
	ErrorHookFailed rterr.CodeError = iota + rterr.MinPkgComponent
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgComponent, func(code rterr.CodeError) string {
		switch code {
		case ErrorHookFailed:
			return "lifecycle hook returned an error"
		}
		return ""
	})
}

// Hook runs before or after a lifecycle transition; a non-nil error from
// a "before" hook aborts the transition.
type Hook func(c Component) rterr.Error

// Impl supplies the concrete behavior a Base wraps with lifecycle
// bookkeeping. A Base built with a nil Impl runs only its hooks and
// children.
type Impl interface {
	ImplInit() rterr.Error
	ImplStart(ctx context.Context, isReload bool) rterr.Error
	ImplStop(ctx context.Context, willReload bool) rterr.Error
}

// Component is the uniform lifecycle surface every runtime piece exposes.
type Component interface {
	Name() string
	Logger() rtlog.Logger

	Init() rterr.Error
	Start(ctx context.Context, isReload bool) rterr.Error
	Stop(ctx context.Context, willReload bool) rterr.Error

	IsRunning() bool

	RegisterFuncStart(before, after Hook)
	RegisterFuncStop(before, after Hook)

	// AddChild registers a child component. Children start after this
	// component's own start body and stop before it.
	AddChild(child Component)
}

// Base is the concrete Impl-backed Component every component in this
// module embeds or wraps.
type Base struct {
	name   string
	log    rtlog.FuncLog
	impl   Impl
	events *eventchain.EventSource[rtevent.Event]

	mu       sync.Mutex
	running  bool
	children []Component

	beforeStart, afterStart []Hook
	beforeStop, afterStop   []Hook
}

// New builds a Base named name, logging via log, delegating behavior to
// impl.
func New(name string, log rtlog.FuncLog, impl Impl) *Base {
	return &Base{name: name, log: log, impl: impl}
}

// SetEvents attaches the EventSource this component emits its
// starting/started/stopping/stopped transitions to (§6's per-component
// event-emission surface). A nil source (the default) disables
// emission without changing any behavioral decision, per §7.
func (b *Base) SetEvents(events *eventchain.EventSource[rtevent.Event]) {
	b.events = events
}

func (b *Base) emit(kind rtevent.Kind) {
	if b.events == nil {
		return
	}
	_, _ = b.events.Emit(rtevent.Event{Kind: kind, At: time.Now().UTC(), Endpoint: b.name})
}

func (b *Base) Name() string { return b.name }

func (b *Base) Logger() rtlog.Logger {
	return rtlog.Safe(b.log).WithField("component", b.name)
}

func (b *Base) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Base) RegisterFuncStart(before, after Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if before != nil {
		b.beforeStart = append(b.beforeStart, before)
	}
	if after != nil {
		b.afterStart = append(b.afterStart, after)
	}
}

func (b *Base) RegisterFuncStop(before, after Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if before != nil {
		b.beforeStop = append(b.beforeStop, before)
	}
	if after != nil {
		b.afterStop = append(b.afterStop, after)
	}
}

func (b *Base) AddChild(child Component) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, child)
}

func (b *Base) Init() rterr.Error {
	if b.impl == nil {
		return nil
	}
	return b.impl.ImplInit()
}

// Start runs before-start hooks, this component's own start body, then
// starts every child in registration order.
func (b *Base) Start(ctx context.Context, isReload bool) rterr.Error {
	b.emit(rtevent.KindStarting)

	if err := b.runHooks(b.beforeStart); err != nil {
		return err
	}

	if b.impl != nil {
		if err := b.impl.ImplStart(ctx, isReload); err != nil {
			return err
		}
	}

	b.mu.Lock()
	children := append([]Component(nil), b.children...)
	b.mu.Unlock()

	for _, child := range children {
		if err := child.Start(ctx, isReload); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.running = true
	b.mu.Unlock()

	b.emit(rtevent.KindStarted)
	return b.runHooks(b.afterStart)
}

// Stop stops every child in reverse registration order, then runs this
// component's own stop body, bracketed by before/after hooks.
func (b *Base) Stop(ctx context.Context, willReload bool) rterr.Error {
	b.emit(rtevent.KindStopping)

	if err := b.runHooks(b.beforeStop); err != nil {
		return err
	}

	b.mu.Lock()
	children := append([]Component(nil), b.children...)
	b.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Stop(ctx, willReload); err != nil {
			return err
		}
	}

	var implErr rterr.Error
	if b.impl != nil {
		implErr = b.impl.ImplStop(ctx, willReload)
	}

	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	b.emit(rtevent.KindStopped)

	if err := b.runHooks(b.afterStop); err != nil {
		return err
	}

	return implErr
}

func (b *Base) runHooks(hooks []Hook) rterr.Error {
	b.mu.Lock()
	snapshot := append([]Hook(nil), hooks...)
	b.mu.Unlock()

	for _, h := range snapshot {
		if err := h(b); err != nil {
			return rterr.New(ErrorHookFailed, err)
		}
	}
	return nil
}
