/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ntpauth

import "errors"

// ErrKind classifies why a single query to a server failed, per the error
// taxonomy of the serving contract: transport/protocol failures never reach
// an HTTP client, they only ever affect per-server stats and candidate
// selection.
type ErrKind int

const (
	// KindNetwork covers socket, DNS and timeout failures.
	KindNetwork ErrKind = iota
	// KindProtocol covers malformed or otherwise invalid replies.
	KindProtocol
	// KindMismatch covers a reply whose nonce doesn't match the request.
	KindMismatch
	// KindKoD covers a server-issued Kiss-of-Death rejection.
	KindKoD
)

func (k ErrKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindMismatch:
		return "mismatch"
	case KindKoD:
		return "kod"
	default:
		return "unknown"
	}
}

// QueryError wraps a single query failure with its classification. Every
// QueryError increments the originating server's consecutive-failure count;
// none of them ever surface to an HTTP client.
type QueryError struct {
	Kind   ErrKind
	Server string
	Err    error
}

func (e *QueryError) Error() string {
	return e.Server + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func newQueryError(kind ErrKind, server string, err error) *QueryError {
	return &QueryError{Kind: kind, Server: server, Err: err}
}

// ErrNotSynced names the condition of the readiness gate still being closed.
// The HTTP handlers do not return it; they answer 503 with the configured
// ErrorTextNoSync string instead.
var ErrNotSynced = errors.New("service not yet synchronized with NTP")
