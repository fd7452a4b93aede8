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

package dispatch

import (
	"net"
	"testing"

	"fortio.org/assert"

	"github.com/popboy126/cockpit/gateway"
	"github.com/popboy126/cockpit/headers"
)

func TestCanonicalizeURLRoot(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"/":         "",
		"path":      "/path",
		"/path":     "/path",
		"/path/":    "/path",
		"//path//":  "/path",
		"/a//b///c": "/a/b/c",
	}
	for in, want := range cases {
		got := CanonicalizeURLRoot(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, got, CanonicalizeURLRoot(got), "not idempotent for %q", in)
	}
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "/foo/", Detail("/foo/bar"))
	assert.Equal(t, "/foo", Detail("/foo"))
	assert.Equal(t, "", Detail(""))
}

func TestSplitQuery(t *testing.T) {
	p, q := SplitQuery("/foo?a=1")
	assert.Equal(t, "/foo", p)
	assert.Equal(t, "a=1", q)
	p, q = SplitQuery("/foo")
	assert.Equal(t, "/foo", p)
	assert.Equal(t, "", q)
}

func TestStripURLRootMismatch404(t *testing.T) {
	c := New("/path")
	_, ok := c.StripURLRoot("/other")
	assert.False(t, ok)
}

func TestStripURLRootExactAndPrefix(t *testing.T) {
	c := New("/path")
	stripped, ok := c.StripURLRoot("/path")
	assert.True(t, ok)
	assert.Equal(t, "", stripped)

	stripped, ok = c.StripURLRoot("/path/sub")
	assert.True(t, ok)
	assert.Equal(t, "/sub", stripped)
}

func TestRunNoURLRootDispatchesByDetail(t *testing.T) {
	c := New("")
	var hitDetail, hitCatchAll bool
	c.OnResource("/foo/", func(path string, h *headers.Map, gw *gateway.Gateway) bool {
		hitDetail = true
		gw.Done(false)
		return true
	})
	c.OnResource("", func(path string, h *headers.Map, gw *gateway.Gateway) bool {
		hitCatchAll = true
		gw.Done(false)
		return true
	})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() { _, _ = client.Read(make([]byte, 1)) }()
	reply, gw := c.Run(server, "GET", "/foo/bar?x=1", headers.New(), nil, false, nil)
	assert.Equal(t, 0, reply)
	assert.True(t, hitDetail)
	assert.False(t, hitCatchAll)
	_ = gw
}

func TestRunFallsThroughToCatchAll(t *testing.T) {
	c := New("")
	var hitCatchAll bool
	c.OnResource("", func(path string, h *headers.Map, gw *gateway.Gateway) bool {
		hitCatchAll = true
		gw.Done(false)
		return true
	})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() { _, _ = client.Read(make([]byte, 1)) }()
	reply, _ := c.Run(server, "GET", "/whatever", headers.New(), nil, false, nil)
	assert.Equal(t, 0, reply)
	assert.True(t, hitCatchAll)
}

func TestRunDefault404WhenUnhandled(t *testing.T) {
	c := New("")
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	reply, gw := c.Run(server, "GET", "/nothing", headers.New(), nil, false, nil)
	assert.Equal(t, 404, reply)
	assert.True(t, gw == nil)
}

func TestRunURLRootMismatchGives404(t *testing.T) {
	c := New("/path")
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	reply, gw := c.Run(server, "GET", "/other", headers.New(), nil, false, nil)
	assert.Equal(t, 404, reply)
	assert.True(t, gw == nil)
}

func TestRunURLRootBoundaryExcludesQuery(t *testing.T) {
	// "/path?x=1" does not have "/path" as a true prefix: the original
	// cockpit_web_server path_has_prefix requires the boundary char to
	// be '/' or end-of-string, and "?" is neither.
	c := New("/path")
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	reply, gw := c.Run(server, "GET", "/path?x=1", headers.New(), nil, false, nil)
	assert.Equal(t, 404, reply)
	assert.True(t, gw == nil)
}

func TestRunStreamHandlerClaimsConnection(t *testing.T) {
	c := New("")
	var resourceRan bool
	c.OnStream(func(originalPath, path, method string, stream net.Conn, h *headers.Map, pending []byte, metadata map[string]any) bool {
		return true
	})
	c.OnResource("", func(path string, h *headers.Map, gw *gateway.Gateway) bool {
		resourceRan = true
		gw.Done(false)
		return true
	})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	reply, gw := c.Run(server, "GET", "/foo", headers.New(), nil, false, nil)
	assert.Equal(t, 0, reply)
	assert.True(t, gw == nil)
	assert.False(t, resourceRan)
}

func TestRunStreamHandlerSeesQueryBearingPathAndMetadata(t *testing.T) {
	c := New("")
	var seenPath, seenOriginal string
	var seenMetadata map[string]any
	c.OnStream(func(originalPath, path, method string, stream net.Conn, h *headers.Map, pending []byte, metadata map[string]any) bool {
		seenOriginal = originalPath
		seenPath = path
		seenMetadata = metadata
		return true
	})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	md := map[string]any{"user": "admin"}
	reply, _ := c.Run(server, "GET", "/foo/bar?x=1", headers.New(), nil, false, md)
	assert.Equal(t, 0, reply)
	assert.Equal(t, "/foo/bar?x=1", seenOriginal)
	assert.Equal(t, "/foo/bar?x=1", seenPath)
	assert.Equal(t, "admin", seenMetadata["user"])
}
