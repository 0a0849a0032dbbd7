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

// Package endpoint manages the set of named Wranglers making up a running
// configuration: registration, lookup, and parallel start/stop fan-out.
package endpoint

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/danfuzz/lactoserv-sub004/rterr"
	"github.com/danfuzz/lactoserv-sub004/wrangler"
)

const (
	ErrorDuplicateName rterr.CodeError = iota + rterr.MinPkgEndpoint
	ErrorUnknownEndpoint
	ErrorTransitionFailed
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgEndpoint, func(code rterr.CodeError) string {
		switch code {
		case ErrorDuplicateName:
			return "endpoint name already registered"
		case ErrorUnknownEndpoint:
			return "no endpoint registered under that name"
		case ErrorTransitionFailed:
			return "one or more endpoints failed to start or stop"
		}
		return ""
	})
}

// maxParallelTransitions bounds how many endpoints start/stop
// concurrently, so a configuration with hundreds of endpoints doesn't
// open hundreds of listeners in the same instant.
const maxParallelTransitions = 16

// Manager owns the named Wranglers of a running configuration.
type Manager struct {
	mu        sync.RWMutex
	wranglers map[string]*wrangler.Wrangler
	order     []string
}

// New builds an empty Manager.
func New() *Manager {
	return &Manager{wranglers: make(map[string]*wrangler.Wrangler)}
}

// Add registers w under its own name, failing on a duplicate or if w's
// configuration fails its own Init-time validation.
func (m *Manager) Add(w *wrangler.Wrangler) rterr.Error {
	if err := w.Init(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := w.Name()
	if _, exists := m.wranglers[name]; exists {
		return rterr.New(ErrorDuplicateName, nil)
	}
	m.wranglers[name] = w
	m.order = append(m.order, name)
	return nil
}

// Find returns the Wrangler registered under name.
func (m *Manager) Find(name string) (*wrangler.Wrangler, rterr.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.wranglers[name]
	if !ok {
		return nil, rterr.New(ErrorUnknownEndpoint, nil)
	}
	return w, nil
}

// Names returns every registered endpoint name, in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// StartAll starts every registered endpoint concurrently, bounded by
// maxParallelTransitions, returning the first error encountered (if any)
// after every endpoint has been attempted.
func (m *Manager) StartAll(ctx context.Context, isReload bool) rterr.Error {
	return m.fanOut(ctx, func(ctx context.Context, w *wrangler.Wrangler) rterr.Error {
		return w.Start(ctx, isReload)
	})
}

// StopAll stops every registered endpoint concurrently, bounded by
// maxParallelTransitions.
func (m *Manager) StopAll(ctx context.Context, willReload bool) rterr.Error {
	return m.fanOut(ctx, func(ctx context.Context, w *wrangler.Wrangler) rterr.Error {
		return w.Stop(ctx, willReload)
	})
}

func (m *Manager) fanOut(ctx context.Context, fn func(context.Context, *wrangler.Wrangler) rterr.Error) rterr.Error {
	m.mu.RLock()
	wranglers := make([]*wrangler.Wrangler, 0, len(m.order))
	for _, name := range m.order {
		wranglers = append(wranglers, m.wranglers[name])
	}
	m.mu.RUnlock()

	sem := semaphore.NewWeighted(maxParallelTransitions)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var first error

	for _, w := range wranglers {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(w *wrangler.Wrangler) {
			defer sem.Release(1)
			defer wg.Done()

			if err := fn(ctx, w); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(w)
	}

	wg.Wait()

	if first == nil {
		return nil
	}
	return rterr.New(ErrorTransitionFailed, first)
}
