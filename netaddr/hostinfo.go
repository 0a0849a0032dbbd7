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

// Package netaddr canonicalizes the network identities the runtime deals
// with: listener interface strings and Host/:authority header values.
package netaddr

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/danfuzz/lactoserv-sub004/rterr"
)

const (
	ErrorInvalidURL rterr.CodeError = iota + rterr.MinPkgNetAddr
	ErrorInvalidInterface
)

func init() {
	rterr.RegisterMessage(rterr.MinPkgNetAddr, func(code rterr.CodeError) string {
		switch code {
		case ErrorInvalidURL:
			return "invalid host header"
		case ErrorInvalidInterface:
			return "invalid interface string"
		}
		return ""
	})
}

// NameType classifies a HostInfo's canonical name.
type NameType string

const (
	NameDNS  NameType = "dns"
	NameIPv4 NameType = "ipv4"
	NameIPv6 NameType = "ipv6"
)

// HostInfo is the canonicalized, immutable result of parsing a Host
// header or :authority pseudo-header.
type HostInfo struct {
	CanonicalName string
	Port          int
	NameType      NameType
}

// NamePortString renders the host the way it would appear in a URL
// authority component, bracketing IPv6 literals.
func (h HostInfo) NamePortString() string {
	if h.NameType == NameIPv6 {
		return fmt.Sprintf("[%s]:%d", h.CanonicalName, h.Port)
	}
	return fmt.Sprintf("%s:%d", h.CanonicalName, h.Port)
}

// ReversedPath decomposes a DNS name into a TLD-first path suitable for
// CertificateStore's tree lookup. Non-DNS names yield a single-element
// path holding the canonical name verbatim.
func (h HostInfo) ReversedPath() []string {
	if h.NameType != NameDNS {
		return []string{h.CanonicalName}
	}
	parts := strings.Split(h.CanonicalName, ".")
	reversed := make([]string, len(parts))
	for i, p := range parts {
		reversed[len(parts)-1-i] = p
	}
	return reversed
}

// LocalhostInstance is the fallback HostInfo used by the safe parser
// variant when the input cannot be parsed.
func LocalhostInstance(localPort int) HostInfo {
	return HostInfo{CanonicalName: "localhost", Port: localPort, NameType: NameDNS}
}

// ParseHostHeader parses a Host header or :authority value of the form
// "name[:port]", with IPv6 literals in brackets. If strict is false,
// malformed input yields LocalhostInstance(localPort) instead of an
// error.
func ParseHostHeader(raw string, localPort int, strict bool) (HostInfo, rterr.Error) {
	info, ok := tryParseHost(raw, localPort)
	if ok {
		return info, nil
	}
	if strict {
		return HostInfo{}, rterr.New(ErrorInvalidURL, nil)
	}
	return LocalhostInstance(localPort), nil
}

func tryParseHost(raw string, localPort int) (HostInfo, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return HostInfo{}, false
	}

	if strings.HasPrefix(raw, "[") {
		end := strings.Index(raw, "]")
		if end < 0 {
			return HostInfo{}, false
		}
		name := raw[1:end]
		rest := raw[end+1:]
		port := localPort
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return HostInfo{}, false
			}
			p, err := strconv.Atoi(rest[1:])
			if err != nil {
				return HostInfo{}, false
			}
			port = p
		}
		ip := net.ParseIP(name)
		if ip == nil {
			return HostInfo{}, false
		}
		// A bracketed literal must be written in IPv6 syntax. ip.To4() is
		// non-nil both for a bare dotted-decimal address (invalid here —
		// brackets are reserved for IPv6) and for a v4-mapped/wrapped IPv6
		// address such as "::ffff:192.0.2.1" (valid, per spec §4.7's
		// "canonicalizes... including wrapped-v4-in-v6"); the presence of
		// a colon in the literal distinguishes the two.
		if ip.To4() != nil && !strings.Contains(name, ":") {
			return HostInfo{}, false
		}
		return HostInfo{CanonicalName: canonicalIPv6(ip), Port: port, NameType: NameIPv6}, true
	}

	if strings.Count(raw, ":") > 1 {
		// Unbracketed literal with multiple colons: ambiguous, reject.
		return HostInfo{}, false
	}

	name := raw
	port := localPort
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		name = raw[:idx]
		p, err := strconv.Atoi(raw[idx+1:])
		if err != nil {
			return HostInfo{}, false
		}
		port = p
	}

	if name == "" || strings.ContainsAny(name, " \t") {
		return HostInfo{}, false
	}

	if ip := net.ParseIP(name); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return HostInfo{CanonicalName: v4.String(), Port: port, NameType: NameIPv4}, true
		}
		return HostInfo{CanonicalName: canonicalIPv6(ip), Port: port, NameType: NameIPv6}, true
	}

	return HostInfo{CanonicalName: strings.ToLower(name), Port: port, NameType: NameDNS}, true
}

func canonicalIPv6(ip net.IP) string {
	// net.IP.String renders a v4-mapped address in bare dotted-decimal
	// form; keep the "::ffff:" prefix so the result is still IPv6 text.
	if v4 := ip.To4(); v4 != nil {
		return "::ffff:" + v4.String()
	}
	return strings.ToLower(ip.String())
}
