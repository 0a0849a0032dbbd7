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

package rterr

import (
	"errors"
	"fmt"
	"strings"
)

// Error extends the standard error with a code and an optional parent
// chain, so a handler can distinguish "why" without parsing strings.
type Error interface {
	error

	Code() CodeError
	IsCode(code CodeError) bool
	Parent() error
	AddParent(e error)
	HasParent() bool
	Unwrap() error
}

type rtError struct {
	code   CodeError
	parent error
}

func (e *rtError) Error() string {
	if e.parent == nil {
		return e.code.Message()
	}
	return fmt.Sprintf("%s: %s", e.code.Message(), e.parent.Error())
}

func (e *rtError) Code() CodeError { return e.code }

func (e *rtError) IsCode(code CodeError) bool { return e.code == code }

func (e *rtError) Parent() error { return e.parent }

func (e *rtError) AddParent(p error) {
	if p == nil {
		return
	}
	if e.parent == nil {
		e.parent = p
		return
	}
	e.parent = fmt.Errorf("%w; %s", e.parent, p.Error())
}

func (e *rtError) HasParent() bool { return e.parent != nil }

func (e *rtError) Unwrap() error { return e.parent }

// New builds an Error for the given code, wrapping an optional parent.
func New(code CodeError, parent error) Error {
	return &rtError{code: code, parent: parent}
}

// Is reports whether err carries the given code, looking through wrapped
// parents the same way errors.Is does.
func Is(err error, code CodeError) bool {
	var e Error
	for err != nil {
		if errors.As(err, &e) {
			if e.IsCode(code) {
				return true
			}
			err = e.Unwrap()
			continue
		}
		return false
	}
	return false
}

// Join concatenates the messages of a set of errors into a single Error
// carrying the given code; nil entries are skipped.
func Join(code CodeError, errs ...error) Error {
	var msgs []string
	var first error

	for _, e := range errs {
		if e == nil {
			continue
		}
		if first == nil {
			first = e
		}
		msgs = append(msgs, e.Error())
	}

	if len(msgs) == 0 {
		return nil
	}

	return New(code, errors.New(strings.Join(msgs, "; ")))
}
