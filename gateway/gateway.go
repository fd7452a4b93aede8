// Copyright 2017 Fortio Authors
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

// Package gateway is the opaque handle resource-chain handlers use to
// talk back to the connection FSM: it carries the request's identity
// (paths, query, headers, TLS-proxy posture) and the one-shot
// "done(reusable)" signal that drives whether the transport is reused
// for a subsequent request. Actual response framing (status line,
// headers, body, chunked/complete transitions) is an external
// collaborator's job; a Gateway only exposes the raw stream for that
// collaborator to write to.
package gateway

import (
	"net"
	"sync"

	"github.com/popboy126/cockpit/headers"
)

// Gateway is constructed once per dispatched request on the resource
// chain and discarded after Done is called.
type Gateway struct {
	stream         net.Conn
	originalPath   string
	path           string
	query          string
	headers        *headers.Map
	behindTLSProxy bool
	metadata       map[string]any

	once sync.Once
	done chan bool
}

// New constructs a Gateway. behindTLSProxy mirrors the Server's
// FOR_TLS_PROXY flag, letting the response component discover the
// externally visible scheme correctly even though this connection
// itself is plaintext. metadata is the decoded ancillary-data JSON
// object picked up on accept, or nil when none was sent.
func New(stream net.Conn, originalPath, path, query string, h *headers.Map, behindTLSProxy bool, metadata map[string]any) *Gateway {
	return &Gateway{
		stream:         stream,
		originalPath:   originalPath,
		path:           path,
		query:          query,
		headers:        h,
		behindTLSProxy: behindTLSProxy,
		metadata:       metadata,
		done:           make(chan bool, 1),
	}
}

// Stream returns the underlying transport for the response component
// to write to.
func (g *Gateway) Stream() net.Conn { return g.stream }

// OriginalPath is the path as received, before URL-root stripping
// (so the response component can rediscover the root); dispatch
// removes its query string before constructing the Gateway.
func (g *Gateway) OriginalPath() string { return g.originalPath }

// Path is the path with the configured URL root stripped and the
// query string removed.
func (g *Gateway) Path() string { return g.path }

// Query is the portion of the path after the first "?", if any.
func (g *Gateway) Query() string { return g.query }

// Headers is the read-only header view for this request.
func (g *Gateway) Headers() *headers.Map { return g.headers }

// BehindTLSProxy reports whether the Server is configured as sitting
// behind a TLS-terminating proxy.
func (g *Gateway) BehindTLSProxy() bool { return g.behindTLSProxy }

// Metadata returns the ancillary-data JSON object picked up when this
// connection was accepted (the well-known "metadata" side channel),
// or nil if none was sent.
func (g *Gateway) Metadata() map[string]any { return g.metadata }

// Done signals that the handler has finished responding, and whether
// the transport may be reused for a subsequent request. It may be
// called at most once; later calls are no-ops.
func (g *Gateway) Done(reusable bool) {
	g.once.Do(func() {
		g.done <- reusable
		close(g.done)
	})
}

// Result blocks until Done is called and returns its reusable value.
// Used by the connection FSM, which subscribes before dispatch.
func (g *Gateway) Result() bool {
	return <-g.done
}
