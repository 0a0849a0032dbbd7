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

// Package timesource abstracts monotonic time and timed waits so that
// rate limiting and scheduling logic can be driven by a fake clock in
// tests. Only tokenbucket takes a TimeSource; the other packages
// (component, reqlife, wrangler, filepreserver) read the system clock
// and set timers through the time package directly.
package timesource

import "time"

// TimeSource is the sole clock abstraction used across the runtime.
type TimeSource interface {
	// Now returns the current monotonic time in fractional seconds.
	Now() float64
	// Sleep blocks the calling goroutine for the given duration,
	// expressed in seconds; it cannot be interrupted early.
	Sleep(seconds float64)
	// After returns a channel that fires once seconds have elapsed.
	After(seconds float64) <-chan time.Time
}

type real struct {
	start time.Time
}

// Real returns the default TimeSource, measuring true wall-clock time in
// seconds (not milliseconds, per spec).
func Real() TimeSource {
	return &real{start: time.Now()}
}

func (r *real) Now() float64 {
	return time.Since(r.start).Seconds()
}

func (r *real) Sleep(seconds float64) {
	if seconds <= 0 {
		return
	}
	time.Sleep(toDuration(seconds))
}

func (r *real) After(seconds float64) <-chan time.Time {
	if seconds <= 0 {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return time.After(toDuration(seconds))
}

func toDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
