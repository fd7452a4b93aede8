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

// Package redirect decides whether a plaintext connection should be
// redirected to https, based on the configured SSL-exception prefix
// and whether the connection's local endpoint is loopback. Location
// construction is grounded on the teacher's
// fhttp.RedirectToHTTPSHandler ("https://" + Host + path).
package redirect

import (
	"net"
	"net/netip"
	"strings"
)

// ShouldRedirect reports whether a request on path should receive a
// 301-to-https response, given the SSL exception prefix and the local
// address the connection was accepted on.
func ShouldRedirect(path, sslExceptionPrefix string, localAddr net.Addr) bool {
	if hasPathPrefix(path, sslExceptionPrefix) {
		return false
	}
	return !isLoopback(localAddr)
}

// hasPathPrefix reports whether path has prefix as a true path-segment
// prefix, grounded on the teacher's path_has_prefix: a plain
// strings.HasPrefix is not enough since "/foobar" must not match
// exception prefix "/foo" — the byte right after prefix must be "/"
// or end-of-string, never (say) "?".
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

func isLoopback(addr net.Addr) bool {
	if addr == nil {
		return false
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return ip.IsLoopback()
}

// Location builds the https:// target URL for the redirect, using the
// incoming Host header verbatim (empty if missing, matching the
// teacher's unconditional "https://" + r.Host + path concatenation).
func Location(host, path string) string {
	return "https://" + host + path
}

// Body returns the minimal HTML body served alongside the 301.
func Body(location string) string {
	return "<html><head><title>Moved</title></head><body>Moved to <a href=\"" +
		location + "\">" + location + "</a></body></html>"
}
