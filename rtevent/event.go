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

// Package rtevent defines the event payload shared by every EventSource in
// the runtime: connections, sessions, and requests all emit the same Event
// shape onto their endpoint's chain so a single EventSink can consume all
// of them uniformly.
package rtevent

import (
	"time"

	"github.com/danfuzz/lactoserv-sub004/rtid"
)

// Kind names the occurrence an Event records.
type Kind string

const (
	KindStarting Kind = "starting"
	KindStarted  Kind = "started"
	KindStopping Kind = "stopping"
	KindStopped  Kind = "stopped"

	KindConnectionOpened Kind = "connectionOpened"
	KindConnectionClosed Kind = "connectionClosed"
	KindSessionOpened    Kind = "sessionOpened"
	KindSessionClosed    Kind = "sessionClosed"
	KindIdleTimeout      Kind = "idleTimeout"
	KindShuttingDown     Kind = "shuttingDown"
	KindUndeadSessions   Kind = "undeadSessions"
	KindRequestReceived  Kind = "requestReceived"
	KindRequestHandled   Kind = "requestHandled"
	KindRequestDenied    Kind = "requestDenied"

	// KindTopLevelError is emitted when a Handler returns a non-nil error.
	KindTopLevelError Kind = "topLevelError"
	// KindResponseNotActuallyHandled is emitted when a Handler reports
	// success without ever writing to the response.
	KindResponseNotActuallyHandled Kind = "responseNotActuallyHandled"

	KindRotatedTo Kind = "rotatedTo"
	KindDeleted   Kind = "deleted"
)

// Event is one occurrence on an endpoint's causal event chain.
type Event struct {
	Kind       Kind
	At         time.Time
	Endpoint   string
	Connection rtid.Identifier
	Session    rtid.Identifier
	Request    rtid.Identifier

	// Detail carries kind-specific data: an {Op, Remaining} struct for
	// shuttingDown, count int for undeadSessions, reason string for
	// sessionClosed, and so on.
	Detail any
}
