/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package rterr provides the error taxonomy shared across the network
// runtime: numeric codes, parent chaining, and errors.Is/As compatibility.
package rterr

import "strconv"

// CodeError is a numeric classification for a failure, similar in spirit
// to an HTTP status code. Each owning package reserves a range via the
// MinPkg* constants below and declares its codes with iota.
type CodeError uint16

const (
	UnknownError CodeError = 0

	MinPkgTimeSource     CodeError = 100
	MinPkgTokenBucket    CodeError = 200
	MinPkgEventChain     CodeError = 300
	MinPkgThreadlet      CodeError = 400
	MinPkgCertStore      CodeError = 500
	MinPkgCtxTrack       CodeError = 600
	MinPkgNetAddr        CodeError = 700
	MinPkgComponent      CodeError = 800
	MinPkgRequestLife    CodeError = 900
	MinPkgWrangler       CodeError = 1000
	MinPkgEndpoint       CodeError = 1100
	MinPkgFilePreserver  CodeError = 1200
	MinPkgRuntime        CodeError = 1300

	MinAvailable CodeError = 2000
)

var idMsgFct = make(map[CodeError]Message)

// Message renders a human-readable string for a code. Packages register
// their own via RegisterMessage.
type Message func(code CodeError) string

// RegisterMessage stores a package's message function under that
// package's lowest code. CodeError.Message later routes any code to the
// function registered under the highest first-code not above it; a ""
// from that function is reported as "unknown error".
func RegisterMessage(first CodeError, fct Message) {
	idMsgFct[first] = fct
}

func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Uint16 returns the numeric form of the code.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// Message looks up the human text for a code by scanning the registered
// package ranges in descending order and asking the first func whose
// first-code is <= c.
func (c CodeError) Message() string {
	var best CodeError
	var bestFct Message

	for first, fct := range idMsgFct {
		if c >= first && (bestFct == nil || first > best) {
			best = first
			bestFct = fct
		}
	}

	if bestFct == nil {
		return "unknown error"
	}

	if m := bestFct(c); m != "" {
		return m
	}

	return "unknown error"
}
