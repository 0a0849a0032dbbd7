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

// Package rtid generates the short opaque identifiers used for
// connection, session, request and per-logger instance tags: monotonic
// within a process run, with a small random suffix, never reused.
package rtid

import (
	"fmt"
	"strconv"
	"sync/atomic"

	uuid "github.com/hashicorp/go-uuid"
)

var counter uint64

// Identifier is an opaque, process-unique label. It carries no semantic
// meaning beyond uniqueness; callers must not parse it.
type Identifier string

// Next returns a fresh Identifier: a base-36 monotonic counter plus a
// short random suffix drawn from a UUID so that identifiers are not
// trivially guessable in logs shared outside the process.
func Next() Identifier {
	n := atomic.AddUint64(&counter, 1)

	suffix := "000000"
	if raw, err := uuid.GenerateRandomBytes(4); err == nil {
		suffix = fmt.Sprintf("%x", raw)
	}

	return Identifier(strconv.FormatUint(n, 36) + "-" + suffix)
}

func (id Identifier) String() string { return string(id) }
