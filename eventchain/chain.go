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

// Package eventchain implements the append-only causal event stream shared
// by every endpoint: an EventSource emits LinkedEvent nodes with bounded
// retention, and one or more EventSink consumers walk the chain in
// emission order.
package eventchain

import (
	"context"
	"sync"

	"github.com/danfuzz/lactoserv-sub004/rterr"
)

const (
	ErrorAlreadyEmitted rterr.CodeError = iota + rterr.MinPkgEventChain
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgEventChain, func(code rterr.CodeError) string {
		switch code {
		case ErrorAlreadyEmitted:
			return "event already emitted: the emitter capability was already consumed"
		}
		return ""
	})
}

// LinkedEvent is one node of an append-only causal chain. Its payload is
// fixed at creation; the only mutation it ever undergoes is acquiring a
// successor the first (and only) time Emit is called on it.
type LinkedEvent[T any] struct {
	payload   T
	isKickoff bool

	mu    sync.Mutex
	next  *LinkedEvent[T]
	ready chan struct{}
}

func newLinkedEvent[T any](payload T, kickoff bool) *LinkedEvent[T] {
	return &LinkedEvent[T]{payload: payload, isKickoff: kickoff, ready: make(chan struct{})}
}

// Payload returns the event's fixed value.
func (e *LinkedEvent[T]) Payload() T {
	return e.payload
}

// Emit consumes this event's one-shot emitter capability, attaching payload
// as the successor. A second call returns ErrorAlreadyEmitted.
func (e *LinkedEvent[T]) Emit(payload T) (*LinkedEvent[T], rterr.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.next != nil {
		return nil, rterr.New(ErrorAlreadyEmitted, nil)
	}

	e.next = newLinkedEvent(payload, false)
	close(e.ready)
	return e.next, nil
}

// NextNow returns the successor without blocking; ok is false if Emit has
// not yet been called on e.
func (e *LinkedEvent[T]) NextNow() (next *LinkedEvent[T], ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next, e.next != nil
}

// Next blocks until the successor is emitted or ctx is done.
func (e *LinkedEvent[T]) Next(ctx context.Context) (*LinkedEvent[T], error) {
	select {
	case <-e.ready:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.next, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ready reports the channel closed once Emit has succeeded on e; it is
// exposed so an EventSink can select on it alongside a stop signal.
func (e *LinkedEvent[T]) Ready() <-chan struct{} {
	return e.ready
}

// EventSource is the single authority appending to a chain. Retention
// keeps at most keepCount+1 emitted events reachable from Earliest.
type EventSource[T any] struct {
	mu        sync.Mutex
	kickoff   *LinkedEvent[T]
	current   *LinkedEvent[T]
	earliest  *LinkedEvent[T]
	keepCount int
	emitted   int
}

// NewEventSource builds a source retaining at most keepCount+1 events.
func NewEventSource[T any](keepCount int) *EventSource[T] {
	var zero T
	kickoff := newLinkedEvent(zero, true)
	return &EventSource[T]{kickoff: kickoff, current: kickoff, earliest: kickoff, keepCount: keepCount}
}

// Emit appends payload as a new event, advances Current, and applies the
// retention policy to Earliest.
func (s *EventSource[T]) Emit(payload T) (*LinkedEvent[T], rterr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.current.Emit(payload)
	if err != nil {
		return nil, err
	}
	s.current = next
	s.emitted++

	if s.earliest.isKickoff {
		// The kickoff-to-first-real-event promotion is free: it does not
		// consume a slot in the retention budget.
		if real, ok := s.earliest.NextNow(); ok {
			s.earliest = real
		}
	} else if s.emitted > s.keepCount+1 {
		if nxt, ok := s.earliest.NextNow(); ok {
			s.earliest = nxt
		}
	}

	return next, nil
}

// CurrentNow returns the most recently emitted event; ok is false before
// the first emission.
func (s *EventSource[T]) CurrentNow() (*LinkedEvent[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitted == 0 {
		return nil, false
	}
	return s.current, true
}

// EarliestNow returns the oldest still-retained event; ok is false before
// the first emission.
func (s *EventSource[T]) EarliestNow() (*LinkedEvent[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitted == 0 {
		return nil, false
	}
	return s.earliest, true
}

// Current blocks until the first event has been emitted, then returns it.
func (s *EventSource[T]) Current(ctx context.Context) (*LinkedEvent[T], error) {
	return s.kickoff.Next(ctx)
}

// Kickoff returns the placeholder event preceding the first real emission.
// It is never surfaced to EventSink consumers.
func (s *EventSource[T]) Kickoff() *LinkedEvent[T] {
	return s.kickoff
}

// EmittedCount reports the total number of real emissions so far.
func (s *EventSource[T]) EmittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}
