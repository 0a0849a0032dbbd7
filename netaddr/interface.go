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

package netaddr

import (
	"net"
	"strconv"
	"strings"

	"github.com/danfuzz/lactoserv-sub004/rterr"
)

func newInvalidInterfaceErr() rterr.Error {
	return rterr.New(ErrorInvalidInterface, nil)
}

// InterfaceAddress is either an (address, port) pair or a
// (fileDescriptor, optionalPort) pair, per the listener interface
// grammar in §6. Immutable once constructed.
type InterfaceAddress struct {
	Address string
	Port    int
	FD      int
	HasFD   bool
}

// IsWildcard reports whether Address is the bare wildcard "*".
func (a InterfaceAddress) IsWildcard() bool {
	return !a.HasFD && a.Address == "*"
}

// ParseInterfaceString parses the listener interface grammar:
// "<address>:<port>", "/dev/fd/<fd>[:<port>]". Unbracketed IPv6 is
// rejected, matching the grammar in §6.
func ParseInterfaceString(s string) (InterfaceAddress, rterr.Error) {
	if strings.HasPrefix(s, "/dev/fd/") {
		rest := strings.TrimPrefix(s, "/dev/fd/")
		fdStr, portStr, hasPort := strings.Cut(rest, ":")

		fd, err := strconv.Atoi(fdStr)
		if err != nil || fd < 0 || fd > 65535 {
			return InterfaceAddress{}, newInvalidInterfaceErr()
		}

		ia := InterfaceAddress{FD: fd, HasFD: true}
		if hasPort {
			port, err := strconv.Atoi(portStr)
			if err != nil || port < 1 || port > 65535 {
				return InterfaceAddress{}, newInvalidInterfaceErr()
			}
			ia.Port = port
		}
		return ia, nil
	}

	if s == "*" {
		return InterfaceAddress{}, newInvalidInterfaceErr()
	}

	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 || !strings.HasPrefix(s[end+1:], ":") {
			return InterfaceAddress{}, newInvalidInterfaceErr()
		}
		addr := s[1:end]
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() != nil {
			return InterfaceAddress{}, newInvalidInterfaceErr()
		}
		port, err := strconv.Atoi(s[end+2:])
		if err != nil || port < 1 || port > 65535 {
			return InterfaceAddress{}, newInvalidInterfaceErr()
		}
		return InterfaceAddress{Address: canonicalIPv6(ip), Port: port}, nil
	}

	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return InterfaceAddress{}, newInvalidInterfaceErr()
	}
	addr := s[:idx]
	portStr := s[idx+1:]

	// A bare, unbracketed address containing another colon is an
	// unbracketed IPv6 literal, which the grammar rejects outright.
	if strings.Count(addr, ":") > 0 {
		return InterfaceAddress{}, newInvalidInterfaceErr()
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return InterfaceAddress{}, newInvalidInterfaceErr()
	}

	if addr == "*" {
		return InterfaceAddress{Address: "*", Port: port}, nil
	}

	if ip := net.ParseIP(addr); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return InterfaceAddress{Address: v4.String(), Port: port}, nil
		}
		return InterfaceAddress{Address: canonicalIPv6(ip), Port: port}, nil
	}

	return InterfaceAddress{Address: strings.ToLower(addr), Port: port}, nil
}
