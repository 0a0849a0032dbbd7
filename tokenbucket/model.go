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

package tokenbucket

import (
	"context"
	"math"
	"sync"

	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/timesource"
)

// Request is a range of acceptable grant amounts.
type Request struct {
	Min float64
	Max float64
}

// Result is the outcome of a synchronous TakeNow attempt.
type Result struct {
	Granted       bool
	Amount        float64
	EstimatedWait float64
}

// Snapshot is a read-only, point-in-time view of the bucket.
type Snapshot struct {
	AvailableBurst float64
	BurstSize      float64
	MaxWaiters     int
	Now            float64
	WaitersCount   int
}

// TokenBucket grants tokens at a configured flow rate with a burst
// ceiling and a bounded FIFO of waiters. All exported methods are safe
// for concurrent use.
type TokenBucket interface {
	// TakeNow attempts an immediate grant; see Config.AllowPartial for
	// how Min/Max are rounded.
	TakeNow(req Request) (Result, rterr.Error)
	// RequestGrant blocks until a grant is available, the queue is full
	// (in which case it returns 0 immediately without queueing), or ctx
	// is cancelled (in which case the waiter is dequeued and 0 is
	// returned).
	RequestGrant(ctx context.Context, req Request) (float64, rterr.Error)
	// Snapshot reports current bucket state, topping up volume first.
	Snapshot() Snapshot
}

type waiter struct {
	req      Request
	resultCh chan float64
	done     bool
}

type bucket struct {
	mu         sync.Mutex
	capacity   float64
	flowRate   float64
	volume     float64
	lastNow    float64
	maxWaiters int
	partial    bool
	clock      timesource.TimeSource
	waiters    []*waiter
	servicing  bool
}

// New validates cfg and returns a ready TokenBucket.
func New(cfg Config) (TokenBucket, rterr.Error) {
	valid, initial, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	return &bucket{
		capacity:   valid.BurstSize,
		flowRate:   valid.FlowRate,
		volume:     initial,
		maxWaiters: valid.MaxWaiters,
		partial:    valid.AllowPartial,
		clock:      valid.TimeSource,
	}, nil
}

// topUp must be called with mu held.
func (b *bucket) topUp() {
	now := b.clock.Now()
	elapsed := now - b.lastNow
	if elapsed > 0 {
		b.volume = math.Min(b.capacity, b.volume+elapsed*b.flowRate)
	}
	b.lastNow = now
}

// takeLocked must be called with mu held; it performs the grant
// arithmetic described in spec §4.2 without re-topping-up (the caller is
// responsible for calling topUp first).
func (b *bucket) takeLocked(req Request) (Result, rterr.Error) {
	min, max := req.Min, req.Max
	available := b.volume

	if !b.partial {
		min = math.Ceil(min)
		max = math.Floor(max)
		available = math.Floor(available)
	}

	if min > b.capacity {
		return Result{}, rterr.New(ErrorImpossible, nil)
	}

	preGrantVolume := b.volume

	var amount float64
	switch {
	case available >= max:
		amount = max
	case available >= min:
		amount = available
	default:
		amount = 0
	}

	granted := amount > 0 || min == 0
	if granted {
		b.volume -= amount
	}

	wait := (max - amount - preGrantVolume) / b.flowRate
	if wait < 0 {
		wait = 0
	}

	return Result{Granted: granted, Amount: amount, EstimatedWait: wait}, nil
}

func (b *bucket) TakeNow(req Request) (Result, rterr.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topUp()
	return b.takeLocked(req)
}

func (b *bucket) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topUp()
	return Snapshot{
		AvailableBurst: b.volume,
		BurstSize:      b.capacity,
		MaxWaiters:     b.maxWaiters,
		Now:            b.lastNow,
		WaitersCount:   len(b.waiters),
	}
}

func (b *bucket) RequestGrant(ctx context.Context, req Request) (float64, rterr.Error) {
	b.mu.Lock()

	if len(b.waiters) == 0 {
		b.topUp()
		res, err := b.takeLocked(req)
		if err != nil {
			b.mu.Unlock()
			return 0, err
		}
		if res.Granted {
			b.mu.Unlock()
			return res.Amount, nil
		}
	}

	if len(b.waiters) >= b.maxWaiters {
		b.mu.Unlock()
		return 0, nil
	}

	w := &waiter{req: req, resultCh: make(chan float64, 1)}
	b.waiters = append(b.waiters, w)
	b.ensureServicing()
	b.mu.Unlock()

	select {
	case amount := <-w.resultCh:
		return amount, nil
	case <-ctx.Done():
		b.cancelWaiter(w)
		return 0, nil
	}
}

func (b *bucket) cancelWaiter(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.done = true
	for i, x := range b.waiters {
		if x == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// ensureServicing must be called with mu held; it launches the single
// servicing goroutine if it is not already running.
func (b *bucket) ensureServicing() {
	if b.servicing {
		return
	}
	b.servicing = true
	go b.serviceLoop()
}

func (b *bucket) serviceLoop() {
	for {
		b.mu.Lock()

		for len(b.waiters) > 0 && b.waiters[0].done {
			b.waiters = b.waiters[1:]
		}

		if len(b.waiters) == 0 {
			b.servicing = false
			b.mu.Unlock()
			return
		}

		head := b.waiters[0]
		b.topUp()
		res, err := b.takeLocked(head.req)

		if err != nil || !res.Granted {
			wait := 0.0
			if res.EstimatedWait > 0 {
				wait = res.EstimatedWait
			}
			b.mu.Unlock()

			if wait > 0 {
				b.clock.Sleep(wait)
			}
			continue
		}

		b.waiters = b.waiters[1:]
		head.done = true
		b.mu.Unlock()

		head.resultCh <- res.Amount
	}
}
