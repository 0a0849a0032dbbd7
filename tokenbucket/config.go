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

// Package tokenbucket implements the admission-control primitive used by
// RequestLifecycle: a rate-and-burst limiter with a bounded FIFO of
// waiters, serviced by a single cooperative goroutine per bucket.
package tokenbucket

import (
	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/timesource"
)

const (
	ErrorBurstSize rterr.CodeError = iota + rterr.MinPkgTokenBucket
	ErrorFlowRate
	ErrorInitialVolume
	ErrorImpossible
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgTokenBucket, func(code rterr.CodeError) string {
		switch code {
		case ErrorBurstSize:
			return "burst size must be greater than zero"
		case ErrorFlowRate:
			return "flow rate must be greater than zero"
		case ErrorInitialVolume:
			return "initial volume must be within [0, burstSize]"
		case ErrorImpossible:
			return "requested minimum exceeds burst size: request can never be granted"
		}
		return ""
	})
}

// Config enumerates every tunable of a TokenBucket. Zero values are
// replaced with documented defaults in New; BurstSize and FlowRate must
// be supplied by the caller.
type Config struct {
	// BurstSize is the bucket's capacity, in tokens. Must be > 0.
	BurstSize float64
	// FlowRate is the refill rate, in tokens per second. Must be > 0.
	FlowRate float64
	// InitialVolume seeds the bucket; nil defaults to BurstSize (full).
	// A pointer is used so an explicit zero (start empty) is
	// distinguishable from "unset".
	InitialVolume *float64
	// MaxWaiters bounds the FIFO queue fed by RequestGrant; 0 means no
	// queueing is permitted at all (RequestGrant never blocks).
	MaxWaiters int
	// AllowPartial permits granting fractional tokens; when false, Min is
	// rounded up, Max down, and the available volume down to whole
	// tokens before the grant attempt. In either mode an amount below
	// Max is granted when the bucket holds at least Min but less than Max.
	AllowPartial bool
	// TimeSource drives every time computation; defaults to the real
	// wall clock.
	TimeSource timesource.TimeSource
}

func (c Config) validate() (Config, float64, rterr.Error) {
	if c.BurstSize <= 0 {
		return c, 0, rterr.New(ErrorBurstSize, nil)
	}
	if c.FlowRate <= 0 {
		return c, 0, rterr.New(ErrorFlowRate, nil)
	}

	initial := c.BurstSize
	if c.InitialVolume != nil {
		initial = *c.InitialVolume
	}
	if initial < 0 || initial > c.BurstSize {
		return c, 0, rterr.New(ErrorInitialVolume, nil)
	}

	if c.TimeSource == nil {
		c.TimeSource = timesource.Real()
	}
	return c, initial, nil
}
