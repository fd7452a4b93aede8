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

// Package reqparse turns an accumulated octet buffer into a parsed
// request line + headers, under strict size and validity bounds. It
// never reads or consumes a request body: Content-Length is only
// checked to be zero or absent.
package reqparse

import (
	"bytes"
	"strings"

	"fortio.org/sets"
	"golang.org/x/net/http/httpguts"

	"github.com/popboy126/cockpit/headers"
)

// Verdict is the outcome of feeding a buffer to Parse.
type Verdict int

const (
	// NeedMore means buf is a valid prefix of a request; read more bytes.
	NeedMore Verdict = iota
	// Complete means a full request line + headers were parsed.
	Complete
	// Reject means the request is invalid; Status carries the HTTP code.
	Reject
	// Overflow means buf exceeds the hard cap; drop the connection, no response.
	Overflow
)

// allowedMethods is the method whitelist: only GET and HEAD are served
// by this front-end (spec Non-goals exclude everything else).
var allowedMethods = sets.New("GET", "HEAD")

// Result is the outcome of a single Parse call.
type Result struct {
	Verdict  Verdict
	Method   string
	Path     string
	Headers  *headers.Map
	Consumed int // bytes belonging to the request line + headers
	Status   int // valid when Verdict == Reject
}

func reject(status int) Result {
	return Result{Verdict: Reject, Status: status}
}

// Parse attempts to parse one request out of buf. maxRequest is the
// request_maximum configuration value; the hard overflow threshold is
// 2*maxRequest per spec, checked before anything else.
func Parse(buf []byte, maxRequest int) Result {
	hardCap := 2 * maxRequest
	if len(buf) > hardCap {
		return Result{Verdict: Overflow}
	}

	headEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headEnd < 0 {
		return Result{Verdict: NeedMore}
	}
	consumed := headEnd + 4
	block := buf[:headEnd]

	lineEnd := bytes.Index(block, []byte("\r\n"))
	if lineEnd < 0 {
		// No header lines at all but still has CRLFCRLF: request line is
		// the whole block.
		lineEnd = len(block)
	}
	requestLine := string(block[:lineEnd])
	method, path, ok := parseRequestLine(requestLine)
	if !ok {
		return reject(400)
	}

	h := headers.New()
	if lineEnd < len(block) {
		rest := block[lineEnd+2:]
		if ok := parseHeaderLines(rest, h); !ok {
			return reject(400)
		}
	}

	if path == "" || path[0] != '/' {
		return reject(400)
	}

	if !allowedMethods.Has(method) {
		return reject(405)
	}

	host, hasHost := h.Get("Host")
	if !hasHost || host == "" {
		return reject(400)
	}

	if cl, present, valid := contentLength(h); present {
		if !valid {
			return reject(400)
		}
		if cl != 0 {
			return reject(413)
		}
	}

	return Result{
		Verdict:  Complete,
		Method:   method,
		Path:     path,
		Headers:  h,
		Consumed: consumed,
	}
}

// parseRequestLine parses "METHOD SP PATH SP HTTP/x.y" (no CRLF, already
// stripped). Returns ok=false on any structural mismatch.
func parseRequestLine(line string) (method, path string, ok bool) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", false
	}
	method, path, proto := parts[0], parts[1], parts[2]
	if method == "" || path == "" {
		return "", "", false
	}
	if !strings.HasPrefix(proto, "HTTP/") {
		return "", "", false
	}
	ver := proto[len("HTTP/"):]
	dot := strings.IndexByte(ver, '.')
	if dot < 0 {
		return "", "", false
	}
	major, minor := ver[:dot], ver[dot+1:]
	if !isDigits(major) || !isDigits(minor) {
		return "", "", false
	}
	return method, path, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseHeaderLines splits block on CRLF and inserts each "Name: value"
// pair into h. Returns false on a structurally invalid header line or
// an invalid header field name.
func parseHeaderLines(block []byte, h *headers.Map) bool {
	if len(block) == 0 {
		return true
	}
	lines := bytes.Split(block, []byte("\r\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return false
		}
		name := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		if !httpguts.ValidHeaderFieldName(name) {
			return false
		}
		h.Insert(name, value)
	}
	return true
}

// contentLength reports the parsed Content-Length header value.
// present is false when the header is absent; valid is false when the
// header is present but not a clean decimal integer.
func contentLength(h *headers.Map) (cl int64, present, valid bool) {
	raw, ok := h.Get("Content-Length")
	if !ok {
		return 0, false, false
	}
	if raw == "" || !isDigits(raw) {
		return 0, true, false
	}
	var v int64
	for i := 0; i < len(raw); i++ {
		v = v*10 + int64(raw[i]-'0')
	}
	return v, true, true
}
