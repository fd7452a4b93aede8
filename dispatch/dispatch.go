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

// Package dispatch runs the two-stage handler chain (stream handlers,
// then resource handlers keyed by "detail"), and owns URL-root
// stripping and query-string splitting.
package dispatch

import (
	"net"
	"strings"
	"sync"

	"github.com/popboy126/cockpit/gateway"
	"github.com/popboy126/cockpit/headers"
)

// StreamHandler may claim the connection outright (e.g. an upgrade or
// a file-streaming handler) by returning true; the first one that
// does wins and no resource handler runs. metadata is the decoded
// ancillary-data JSON object picked up on accept, or nil when none
// was sent.
type StreamHandler func(originalPath, path, method string, stream net.Conn, h *headers.Map, pending []byte, metadata map[string]any) bool

// ResourceHandler is given a constructed Gateway and must call
// gw.Done(reusable) when finished; it returns true if it produced a
// response (claimed), false to let the next handler in its detail's
// list, or the catch-all, try.
type ResourceHandler func(path string, h *headers.Map, gw *gateway.Gateway) bool

// Chains holds both ordered handler lists and the configured URL root.
type Chains struct {
	mu         sync.RWMutex
	urlRoot    string
	onStream   []StreamHandler
	onResource map[string][]ResourceHandler // "" key is the catch-all
}

// New returns an empty Chains with the given (already canonical) URL
// root; pass CanonicalizeURLRoot's output.
func New(urlRoot string) *Chains {
	return &Chains{urlRoot: urlRoot, onResource: make(map[string][]ResourceHandler)}
}

// CanonicalizeURLRoot normalizes a configured URL root: the result is
// either empty or begins with "/" and never ends with "/".
// CanonicalizeURLRoot is idempotent: canon(canon(r)) == canon(r).
func CanonicalizeURLRoot(r string) string {
	if r == "" {
		return ""
	}
	if !strings.HasPrefix(r, "/") {
		r = "/" + r
	}
	for strings.Contains(r, "//") {
		r = strings.ReplaceAll(r, "//", "/")
	}
	r = strings.TrimRight(r, "/")
	return r
}

// OnStream registers a stream-chain handler, run before any resource
// handler, in registration order.
func (c *Chains) OnStream(h StreamHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStream = append(c.onStream, h)
}

// OnResource registers a resource-chain handler for the given detail
// key ("" for the catch-all), in registration order within that key.
func (c *Chains) OnResource(detail string, h ResourceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResource[detail] = append(c.onResource[detail], h)
}

// Detail returns the first path component including its trailing "/"
// if any: "/foo/bar" -> "/foo/", "/foo" -> "/foo".
func Detail(path string) string {
	if path == "" {
		return ""
	}
	rest := path[1:] // path begins with "/" by parser contract
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return path[:1+i+1]
	}
	return path
}

// SplitQuery splits a path at its first "?", returning the path
// without the query and the query (without the "?"), "" if absent.
func SplitQuery(path string) (string, string) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// StripURLRoot removes the Chains' configured URL root prefix from
// path. ok is false when the root is configured and path doesn't
// start with it (caller must then use delayed_reply = 404).
func (c *Chains) StripURLRoot(path string) (stripped string, ok bool) {
	if c.urlRoot == "" {
		return path, true
	}
	if path == c.urlRoot {
		return "", true
	}
	if strings.HasPrefix(path, c.urlRoot+"/") {
		return path[len(c.urlRoot):], true
	}
	return "", false
}

// Run performs URL-root stripping and the two-stage dispatch for one
// request. Stream handlers see the path (and original path) with its
// query string still attached, matching the original's
// cockpit_web_server_default_handle_stream, which only nulls out the
// "?" once it builds the response for the resource stage; query
// splitting for resource handlers happens here, after the stream
// chain has had its look. It returns delayedReply > 0 when the
// request could not be routed to any handler output (404 on root
// mismatch, or the default 404 when no resource handler responds),
// and a Gateway when a resource handler is running and the caller
// must wait on gw.Result().
func (c *Chains) Run(stream net.Conn, method, originalPath string, h *headers.Map, pending []byte, behindTLSProxy bool, metadata map[string]any) (delayedReply int, gw *gateway.Gateway) {
	stripped, ok := c.StripURLRoot(originalPath)
	if !ok {
		return 404, nil
	}

	c.mu.RLock()
	streamHandlers := append([]StreamHandler(nil), c.onStream...)
	c.mu.RUnlock()
	for _, sh := range streamHandlers {
		if sh(originalPath, stripped, method, stream, h, pending, metadata) {
			return 0, nil
		}
	}

	originalNoQuery, _ := SplitQuery(originalPath)
	pathNoQuery, query := SplitQuery(stripped)

	gw = gateway.New(stream, originalNoQuery, pathNoQuery, query, h, behindTLSProxy, metadata)
	detail := Detail(pathNoQuery)

	c.mu.RLock()
	detailHandlers := append([]ResourceHandler(nil), c.onResource[detail]...)
	var catchAll []ResourceHandler
	if detail != "" {
		catchAll = append([]ResourceHandler(nil), c.onResource[""]...)
	}
	c.mu.RUnlock()

	for _, rh := range detailHandlers {
		if rh(pathNoQuery, h, gw) {
			return 0, gw
		}
	}
	for _, rh := range catchAll {
		if rh(pathNoQuery, h, gw) {
			return 0, gw
		}
	}
	return 404, nil
}
