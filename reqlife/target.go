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

package reqlife

import (
	"net/http"
	"strings"
)

// TargetForm classifies a request's request-line target.
type TargetForm string

const (
	TargetOrigin   TargetForm = "origin"
	TargetAsterisk TargetForm = "asterisk"
	TargetAbsolute TargetForm = "absolute"
	TargetAuthority TargetForm = "authority"
	TargetOther    TargetForm = "other"
)

// ClassifyTarget determines r's request-target form per the detection
// rules: "/" prefix is origin-form, a bare "*" is asterisk-form, a
// "<scheme>://" prefix is absolute-form, CONNECT's authority token is
// authority-form, anything else is rejected.
func ClassifyTarget(r *http.Request) TargetForm {
	if r.Method == http.MethodConnect {
		return TargetAuthority
	}

	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}

	switch {
	case target == "*":
		return TargetAsterisk
	case strings.HasPrefix(target, "/"):
		return TargetOrigin
	case r.URL.IsAbs():
		return TargetAbsolute
	default:
		return TargetOther
	}
}

// sensitiveHeaders are stripped from any header map the framework logs;
// they never leave the process via the event stream.
var sensitiveHeaders = map[string]bool{
	":authority": true,
	":method":    true,
	":path":      true,
	":scheme":    true,
	"host":       true,
}

// SanitizeHeaders lowercases header names, drops the pseudo-headers and
// Host, and returns a map safe to attach to a requestReceived event.
func SanitizeHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for key, values := range h {
		lower := strings.ToLower(key)
		if sensitiveHeaders[lower] {
			continue
		}
		frozen := append([]string(nil), values...)
		out[lower] = frozen
	}
	return out
}
