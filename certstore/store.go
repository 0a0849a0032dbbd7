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

// Package certstore maps hostnames to TLS materials for SNI-based
// certificate selection: a tree keyed by reversed hostname components,
// with wildcard fallback.
package certstore

import (
	"crypto/tls"
	"strings"
	"sync"

	"github.com/danfuzz/lactoserv-sub004/rterr"
)

const (
	ErrorDuplicateName rterr.CodeError = iota + rterr.MinPkgCertStore
	ErrorNotFound
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgCertStore, func(code rterr.CodeError) string {
		switch code {
		case ErrorDuplicateName:
			return "hostname already registered in certificate store"
		case ErrorNotFound:
			return "no certificate material for hostname"
		}
		return ""
	})
}

// Material is the TLS material bound to one or more hostnames.
type Material struct {
	PEMCert       []byte
	PEMKey        []byte
	SecureContext *tls.Config
}

type node struct {
	children map[string]*node
	material *Material
	wildcard bool
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Store is a hostname -> Material tree. All methods are safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	root *node
}

// New builds an empty certificate store.
func New() *Store {
	return &Store{root: newNode()}
}

// reversedPath splits a hostname into TLD-first components, stripping a
// leading wildcard marker ("*." or a bare "*") and reporting whether the
// name is a wildcard entry.
func reversedPath(name string) (path []string, wildcard bool) {
	if name == "*" {
		return nil, true
	}
	if strings.HasPrefix(name, "*.") {
		name = strings.TrimPrefix(name, "*.")
		wildcard = true
	}
	parts := strings.Split(strings.ToLower(name), ".")
	path = make([]string, len(parts))
	for i, p := range parts {
		path[len(parts)-1-i] = p
	}
	return path, wildcard
}

// Add registers material under name, which may be an exact hostname, a
// single-component wildcard ("*.example.com"), or the global wildcard
// ("*"). Add fails on a duplicate name.
func (s *Store) Add(name string, material Material) rterr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, wildcard := reversedPath(name)

	cur := s.root
	for _, component := range path {
		next, ok := cur.children[component]
		if !ok {
			next = newNode()
			cur.children[component] = next
		}
		cur = next
	}

	if cur.material != nil {
		return rterr.New(ErrorDuplicateName, nil)
	}

	m := material
	cur.material = &m
	cur.wildcard = wildcard
	return nil
}

// Find resolves name to its material: an exact match wins; else a
// wildcard entry one component shorter than name (matching exactly the
// leading component); else the global wildcard.
func (s *Store) Find(name string) (Material, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(name)
}

// findLocked is Find's body without its own locking, so callers that
// already hold s.mu (for example MakeSubset) can reuse it without
// reentering RLock.
func (s *Store) findLocked(name string) (Material, bool) {
	path, _ := reversedPath(name)

	if cur, ok := s.walk(path); ok && cur.material != nil {
		return *cur.material, true
	}

	if len(path) > 0 {
		if cur, ok := s.walk(path[:len(path)-1]); ok && cur.material != nil && cur.wildcard {
			return *cur.material, true
		}
	}

	if s.root.material != nil && s.root.wildcard {
		return *s.root.material, true
	}
	return Material{}, false
}

// walk follows path from the root, reporting the final node and whether
// every component along the way existed.
func (s *Store) walk(path []string) (*node, bool) {
	cur := s.root
	for _, component := range path {
		next, ok := cur.children[component]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// MakeSubset returns a new Store containing only the given hostnames
// (and the global wildcard, if registered), useful for scoping a store
// to one endpoint's configured hostnames.
func (s *Store) MakeSubset(names []string) *Store {
	sub := New()
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range names {
		if m, ok := s.findLocked(name); ok {
			_ = sub.Add(name, m)
		}
	}
	if s.root.material != nil && s.root.wildcard {
		_ = sub.Add("*", *s.root.material)
	}
	return sub
}

// SNICallback adapts Find to tls.Config.GetCertificate's SNI signature.
func (s *Store) SNICallback(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	m, ok := s.Find(hello.ServerName)
	if !ok {
		return nil, rterr.New(ErrorNotFound, nil)
	}
	if m.SecureContext != nil && len(m.SecureContext.Certificates) > 0 {
		return &m.SecureContext.Certificates[0], nil
	}
	cert, err := tls.X509KeyPair(m.PEMCert, m.PEMKey)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}
