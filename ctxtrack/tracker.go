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

// Package ctxtrack binds connection/session/request context records to
// low-level handles (sockets, HTTP/2 sessions) and propagates them across
// asynchronous boundaries via a task-local scope carried on
// context.Context.
package ctxtrack

import (
	"context"
	"sync"

	"github.com/danfuzz/lactoserv-sub004/rtid"
	"github.com/danfuzz/lactoserv-sub004/rtlog"
)

// Record is the context attached to a connection, session, or request.
// Every emitted event's metadata must carry the IDs present here.
type Record struct {
	ConnectionID rtid.Identifier
	SessionID    rtid.Identifier
	RequestID    rtid.Identifier
	Parent       *Record
	Logger       rtlog.Logger
}

// Tracker binds Records to handles. The binding is explicit rather than a
// true garbage-collector weak reference (Go's standard library had none
// stable at this module's go.mod version); callers must call Unbind when
// a handle's lifetime ends, mirroring the disposal hooks ProtocolWrangler
// already installs on socket/session close.
type Tracker struct {
	mu       sync.RWMutex
	bindings map[any]*Record
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{bindings: make(map[any]*Record)}
}

// Bind associates rec with handle, replacing any previous binding.
func (t *Tracker) Bind(handle any, rec *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings[handle] = rec
}

// Get returns the Record bound to handle, if any.
func (t *Tracker) Get(handle any) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.bindings[handle]
	return rec, ok
}

// Unbind removes any binding for handle.
func (t *Tracker) Unbind(handle any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bindings, handle)
}

type scopeKey struct{}

// WithScope returns a context carrying rec as the ambient scope: handlers
// spawned within it can recover rec via FromScope without ever being
// handed the originating handle.
func WithScope(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, scopeKey{}, rec)
}

// FromScope recovers the Record bound to ctx's ambient scope, if any.
func FromScope(ctx context.Context) (*Record, bool) {
	rec, ok := ctx.Value(scopeKey{}).(*Record)
	return rec, ok
}

// Resolve looks up the ambient scope first, falling back to a direct
// Tracker binding for handle. This mirrors RequestLifecycle's recovery
// of connectionCtx/sessionCtx from whichever source is available.
func Resolve(ctx context.Context, tracker *Tracker, handle any) (*Record, bool) {
	if rec, ok := FromScope(ctx); ok {
		return rec, true
	}
	if tracker == nil {
		return nil, false
	}
	return tracker.Get(handle)
}
