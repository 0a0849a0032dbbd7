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

package eventchain

import (
	"context"
	"sync"
)

// Processor handles one event in order; an error terminates the sink.
type Processor[T any] func(ctx context.Context, event *LinkedEvent[T]) error

// EventSink walks a chain from a fixed starting point, invoking processor
// on each event in emission order and awaiting its completion before
// advancing. It is single-flight: Run is idempotent while already running,
// and rerunnable once it has stopped.
type EventSink[T any] struct {
	mu        sync.Mutex
	processor Processor[T]
	cursor    *LinkedEvent[T]
	running   bool
	stopCh    chan struct{}
	lastErr   error
}

// NewEventSink builds a sink that will start walking the chain just after
// firstEvent (typically an EventSource's kickoff event).
func NewEventSink[T any](processor Processor[T], firstEvent *LinkedEvent[T]) *EventSink[T] {
	return &EventSink[T]{processor: processor, cursor: firstEvent}
}

// Run walks the chain until Stop is called, ctx is done, or the processor
// returns an error. If a previous Run ended on a processor error, that
// error is surfaced and cleared by this call instead of resuming.
func (s *EventSink[T]) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.lastErr != nil {
		err := s.lastErr
		s.lastErr = nil
		s.mu.Unlock()
		return err
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	stop := make(chan struct{})
	s.stopCh = stop
	s.mu.Unlock()

	runErr := s.drain(ctx, stop)

	s.mu.Lock()
	s.running = false
	s.lastErr = runErr
	s.stopCh = nil
	s.mu.Unlock()

	return runErr
}

func (s *EventSink[T]) drain(ctx context.Context, stop <-chan struct{}) error {
	for {
		if next, ok := s.cursor.NextNow(); ok {
			if err := s.processor(ctx, next); err != nil {
				s.cursor = next
				return err
			}
			s.cursor = next
			continue
		}

		select {
		case <-s.cursor.Ready():
			continue
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop requests the sink drain whatever events are already available and
// then halt; it does not wait for the drain to finish.
func (s *EventSink[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.stopCh != nil {
		close(s.stopCh)
	}
}

// Running reports whether Run is currently executing.
func (s *EventSink[T]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
