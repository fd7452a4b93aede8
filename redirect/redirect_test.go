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

package redirect

import (
	"net"
	"testing"

	"fortio.org/assert"
)

type fakeAddr string

func (f fakeAddr) Network() string { return "tcp" }
func (f fakeAddr) String() string  { return string(f) }

func TestShouldRedirectNonLoopback(t *testing.T) {
	assert.True(t, ShouldRedirect("/foo", "", fakeAddr("10.0.0.1:80")))
}

func TestShouldNotRedirectLoopback(t *testing.T) {
	assert.False(t, ShouldRedirect("/foo", "", fakeAddr("127.0.0.1:80")))
}

func TestShouldNotRedirectIPv6Loopback(t *testing.T) {
	assert.False(t, ShouldRedirect("/foo", "", fakeAddr("[::1]:80")))
}

func TestSSLExceptionPrefixSkipsRedirect(t *testing.T) {
	assert.False(t, ShouldRedirect("/healthz/ping", "/healthz", fakeAddr("10.0.0.1:80")))
}

func TestSSLExceptionPrefixNoMatchStillRedirects(t *testing.T) {
	assert.True(t, ShouldRedirect("/other", "/healthz", fakeAddr("10.0.0.1:80")))
}

func TestSSLExceptionPrefixRequiresBoundary(t *testing.T) {
	// "/healthzabc" is not the "/healthz" path, just a longer segment
	// that happens to start the same way: must still redirect.
	assert.True(t, ShouldRedirect("/healthzabc", "/healthz", fakeAddr("10.0.0.1:80")))
	// An exact match (no trailing boundary char at all) is fine.
	assert.False(t, ShouldRedirect("/healthz", "/healthz", fakeAddr("10.0.0.1:80")))
}

func TestNilOrUnparsableAddrIsNotTreatedAsLoopback(t *testing.T) {
	// No real local address available (e.g. in-process pipes, whose
	// Addr.String() is "pipe"): conservatively NOT loopback, so the
	// default posture is still to redirect unless proven local.
	assert.True(t, ShouldRedirect("/foo", "", nil))
	assert.True(t, ShouldRedirect("/foo", "", fakeAddr("pipe")))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "https://example.com/foo/bar", Location("example.com", "/foo/bar"))
	assert.Equal(t, "https:///foo", Location("", "/foo"))
}

func TestBodyContainsLocation(t *testing.T) {
	loc := "https://example.com/foo"
	body := Body(loc)
	assert.True(t, len(body) > 0)
	assert.True(t, containsAll(body, loc))
}

func containsAll(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

var _ net.Addr = fakeAddr("")
