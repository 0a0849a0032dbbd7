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

package timesource

import (
	"sync"
	"time"
)

// wakeAt is a pending Sleep/After call waiting for the fake clock to reach
// a target time.
type wakeAt struct {
	target float64
	ch     chan struct{}
}

// Fake is a manually-advanced TimeSource for deterministic tests: Sleep
// and After block the calling goroutine exactly like the real clock, but
// only Advance (called from the test) ever moves time forward, so a test
// can park a goroutine mid-wait and inspect state before releasing it.
type Fake struct {
	mu      sync.Mutex
	now     float64
	waiters []*wakeAt
}

// NewFake builds a Fake clock starting at the given time in seconds.
func NewFake(start float64) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by the given number of seconds,
// releasing every pending Sleep/After whose target time has been reached.
func (f *Fake) Advance(seconds float64) {
	f.mu.Lock()
	f.now += seconds

	var ready []*wakeAt
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if w.target <= f.now {
			ready = append(ready, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
	f.mu.Unlock()

	for _, w := range ready {
		close(w.ch)
	}
}

// Sleep blocks until a later Advance call reaches now+seconds.
func (f *Fake) Sleep(seconds float64) {
	if seconds <= 0 {
		return
	}
	<-f.register(seconds)
}

// After returns a channel that fires once a later Advance call reaches
// now+seconds.
func (f *Fake) After(seconds float64) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if seconds <= 0 {
		ch <- time.Now()
		return ch
	}
	ready := f.register(seconds)
	go func() {
		<-ready
		ch <- time.Now()
	}()
	return ch
}

func (f *Fake) register(seconds float64) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &wakeAt{target: f.now + seconds, ch: make(chan struct{})}
	f.waiters = append(f.waiters, w)
	return w.ch
}
