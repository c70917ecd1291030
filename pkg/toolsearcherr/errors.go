// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package toolsearcherr defines the error kinds surfaced by the interceptor
// and retriever back-ends.
package toolsearcherr

import "fmt"

// Kind classifies an externally visible failure.
type Kind string

const (
	// ConfigurationConflict: a reserved tool name collides, or a required
	// component is missing at build time. Fatal at build time.
	ConfigurationConflict Kind = "ConfigurationConflict"

	// BackendUnavailable: a retriever back-end could not index or search
	// (I/O or embedding failure).
	BackendUnavailable Kind = "BackendUnavailable"

	// MalformedSearchResponse: a tool-search tool-response message's
	// content did not parse as a JSON string array.
	MalformedSearchResponse Kind = "MalformedSearchResponse"

	// UnknownToolReferenced: the LLM named a tool absent from the
	// session's callback registry.
	UnknownToolReferenced Kind = "UnknownToolReferenced"

	// LoopBudgetExceeded: maxTurns was reached before the LLM produced a
	// final response.
	LoopBudgetExceeded Kind = "LoopBudgetExceeded"

	// Cancelled: the caller cancelled or timed out the request.
	Cancelled Kind = "Cancelled"
)

// Error is the error type returned across package boundaries by this
// module. It carries a Kind so callers can branch on failure category
// without parsing the message, and wraps an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	type kinded interface{ toolsearchKind() Kind }
	if ke, ok := err.(kinded); ok {
		return ke.toolsearchKind() == kind
	}
	ae, ok := err.(*Error)
	return ok && ae.Kind == kind
}

// toolsearchKind lets *Error satisfy the unexported kinded interface used
// by Is, keeping the check robust to future wrapping.
func (e *Error) toolsearchKind() Kind {
	return e.Kind
}
