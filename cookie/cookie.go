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

// Package cookie extracts a single named cookie out of a Cookie header,
// for handlers that need one: no dependency on net/http's
// cookie jar, just a boundary-aware scan of the header value.
package cookie

import (
	"net/url"
	"strings"

	"fortio.org/log"
	"github.com/popboy126/cockpit/headers"
)

// Get returns the URL-decoded value of the cookie named name from the
// Cookie header in h, and whether it was found. A substring match that
// isn't at a true name boundary (start of header, or after `;` and
// optional ASCII whitespace) does not count as found.
func Get(h *headers.Map, name string) (string, bool) {
	raw, ok := h.Get("Cookie")
	if !ok || raw == "" {
		return "", false
	}
	needle := name + "="
	start := 0
	for {
		idx := strings.Index(raw[start:], needle)
		if idx < 0 {
			return "", false
		}
		pos := start + idx
		if isBoundary(raw, pos) {
			valStart := pos + len(needle)
			valEnd := strings.IndexByte(raw[valStart:], ';')
			var enc string
			if valEnd < 0 {
				enc = raw[valStart:]
			} else {
				enc = raw[valStart : valStart+valEnd]
			}
			dec, err := url.QueryUnescape(enc)
			if err != nil {
				log.Debugf("cookie %q value %q failed to url-unescape: %v", name, enc, err)
				return "", false
			}
			return dec, true
		}
		start = pos + 1
	}
}

// isBoundary reports whether raw[pos:] is preceded by the start of the
// header or by `;` (possibly followed by ASCII whitespace).
func isBoundary(raw string, pos int) bool {
	if pos == 0 {
		return true
	}
	i := pos - 1
	for i >= 0 && (raw[i] == ' ' || raw[i] == '\t') {
		i--
	}
	return i >= 0 && raw[i] == ';'
}
