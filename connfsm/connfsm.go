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

// Package connfsm is the per-connection request state machine: peek
// to detect TLS vs plaintext, optionally wrap with TLS, read under a
// strict per-turn timeout and size bound, parse, dispatch, and either
// reuse the transport for another turn or close it.
//
// Idiomatic-Go note: the original single-threaded event-loop design
// (peek/read/timer as separate suspension points on one reactor
// thread) is expressed here as one goroutine per connection making
// ordinary blocking calls. Every invariant the spec states (serial
// per connection, no cross-connection ordering, read source and timer
// both torn down before the stream is closed) holds for a
// goroutine-per-connection just as it did for callback state machine;
// this is the idiomatic translation, not a behavior change.
package connfsm

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"fortio.org/log"

	"github.com/popboy126/cockpit/agentid"
	"github.com/popboy126/cockpit/dispatch"
	"github.com/popboy126/cockpit/redirect"
	"github.com/popboy126/cockpit/reqparse"
	"github.com/popboy126/cockpit/tlsinfo"
)

// Config bundles the tunables and TLS material a connection needs.
type Config struct {
	RequestMax         int
	RequestTimeout     time.Duration
	TLS                *tlsinfo.Source // nil: no certificate configured
	RedirectTLS        bool
	BehindTLSProxy     bool
	SSLExceptionPrefix string
}

// firstByteTLS and firstByteSSLv2 are the two first-octet values that
// trigger TLS wrapping (spec §6 "TLS detection").
const (
	firstByteTLS   = 0x16
	firstByteSSLv2 = 0x80
)

// Run drives one connection end to end, across as many reused turns
// as handlers request, until the transport is closed. onBegin/onEnd
// bracket each turn's Request lifetime so the caller (the Server
// facade) can maintain its "weak membership set" of live requests for
// shutdown cleanup; id is the stable per-connection correlation id.
// onBegin is also handed a closer that forcibly tears down the
// underlying transport: closing conn directly unblocks any pending
// Read even when a later turn has wrapped it in TLS (the TLS layer
// reads through the same underlying conn), so the Server facade can
// use it to cancel a live request deterministically on shutdown,
// mirroring cockpit_web_server_dispose closing every live request's
// stream instead of waiting out its timeout.
func Run(conn net.Conn, localAddr net.Addr, cfg Config, chains *dispatch.Chains, onBegin func(id string, closer func() error), onEnd func(id string)) {
	id := agentid.New()
	stream := conn
	first := true
	var metadata map[string]any

	for {
		onBegin(id, conn.Close)
		reusable, handedOff := turn(&stream, localAddr, cfg, chains, &first, &metadata, id)
		onEnd(id)
		if handedOff {
			// A stream handler took exclusive ownership of the
			// transport; closing it here is not ours to decide.
			return
		}
		if !reusable {
			_ = stream.Close()
			return
		}
	}
}

// turn runs one request to completion on the current stream. handedOff
// is true only when a stream handler claimed the connection outright,
// in which case reusable is meaningless and the caller must not touch
// the transport again.
func turn(streamP *net.Conn, localAddr net.Addr, cfg Config, chains *dispatch.Chains,
	first *bool, metadata *map[string]any, id string,
) (reusable, handedOff bool) {
	eofOkay := true
	checkTLSRedirect := false

	// Armed on the underlying transport before first-byte detection, so
	// the detection read is bounded by the same per-turn timeout; any
	// wrapper installed by detect reads through that same transport.
	if err := (*streamP).SetReadDeadline(time.Now().Add(cfg.RequestTimeout)); err != nil {
		log.Debugf("connfsm[%s]: unable to arm read deadline: %v", id, err)
	}

	if *first {
		redirectCandidate, drop := detect(streamP, cfg, metadata, id)
		if drop {
			return false, false
		}
		checkTLSRedirect = redirectCandidate
		*first = false
	}

	stream := *streamP
	buf, result, ok := readAndParse(stream, cfg.RequestMax, &eofOkay, id)
	if !ok {
		return false, false
	}

	switch result.Verdict {
	case reqparse.Overflow:
		log.Infof("connfsm[%s]: request exceeded %d bytes, dropping connection", id, 2*cfg.RequestMax)
		return false, false
	case reqparse.NeedMore:
		// unreachable: readAndParse only returns ok=true on a decided verdict.
		return false, false
	}

	delayedReply := 0
	var host, path string
	if result.Verdict == reqparse.Reject {
		delayedReply = result.Status
	} else { // Complete
		path = result.Path
		if result.Headers != nil {
			host, _ = result.Headers.Get("Host")
		}
	}

	if delayedReply == 0 && checkTLSRedirect {
		if redirect.ShouldRedirect(path, cfg.SSLExceptionPrefix, localAddr) {
			delayedReply = 301
		}
	}

	if delayedReply != 0 {
		writeDelayedReply(stream, delayedReply, host, path)
		return false, false
	}

	pending := buf[result.Consumed:]
	reply, gw := chains.Run(stream, result.Method, result.Path, result.Headers, pending, cfg.BehindTLSProxy, *metadata)
	if reply != 0 {
		writeDelayedReply(stream, reply, host, path)
		return false, false
	}
	if gw == nil {
		// A stream handler claimed the transport outright; it owns
		// teardown/reuse from here on, not us.
		return false, true
	}
	return gw.Result(), false
}

// detect performs the first-turn-only TLS/plaintext peek, wrapping
// *streamP in place when TLS is detected. drop is true when the
// connection must be abandoned without a response (no certificate
// configured for a TLS client, or the peer vanished before sending
// anything).
func detect(streamP *net.Conn, cfg Config, metadata *map[string]any, id string) (checkTLSRedirect, drop bool) {
	conn := *streamP
	b, md, err := readFirstByteAncillary(conn)
	if err != nil {
		if errors.Is(err, errEOF) {
			log.Debugf("connfsm[%s]: peer closed before first byte", id)
		} else {
			log.Debugf("connfsm[%s]: error detecting protocol: %v", id, err)
		}
		return false, true
	}
	if md != nil {
		*metadata = md
	}
	if b == firstByteTLS || b == firstByteSSLv2 {
		if cfg.TLS == nil {
			log.Warnf("connfsm[%s]: TLS client hello seen but no certificate configured, dropping", id)
			return false, true
		}
		*streamP = tls.Server(&peekedConn{Conn: conn, prefix: []byte{b}}, cfg.TLS.Config())
		return false, false
	}
	*streamP = &peekedConn{Conn: conn, prefix: []byte{b}}
	return cfg.RedirectTLS, false
}

// readAndParse implements the single-read idiom: request up to
// RequestMax+1 bytes per wakeup (so Overflow stays reachable rather
// than hanging) and feed whatever accumulated buffer to the parser
// after every read, until a non-NeedMore verdict is produced or the
// connection must be abandoned. ok is false when the caller should
// simply return (all logging for the abandon case happens here).
func readAndParse(stream net.Conn, requestMax int, eofOkay *bool, id string) ([]byte, reqparse.Result, bool) {
	var buf []byte
	for {
		chunk := make([]byte, requestMax+1)
		n, err := stream.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			*eofOkay = false
			res := reqparse.Parse(buf, requestMax)
			if res.Verdict != reqparse.NeedMore {
				return buf, res, true
			}
		}
		if err == nil {
			continue
		}
		logReadError(err, *eofOkay, id)
		return buf, reqparse.Result{}, false
	}
}

func logReadError(err error, eofOkay bool, id string) {
	switch {
	case isTimeout(err):
		if eofOkay {
			log.Debugf("connfsm[%s]: request timeout, no bytes received", id)
		} else {
			log.Infof("connfsm[%s]: request timeout", id)
		}
	case isOrderlyOrResetEOF(err):
		if eofOkay {
			log.Debugf("connfsm[%s]: peer closed connection early: %v", id, err)
		} else {
			log.Debugf("connfsm[%s]: peer closed connection: %v", id, err)
		}
	default:
		log.Infof("connfsm[%s]: read error: %v", id, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isOrderlyOrResetEOF reports whether err is an expected "the other
// side went away" condition: io.EOF, a TLS "not TLS"/EOF alert, or an
// ECONNRESET-class error. These are logged at debug level only per
// the suppression policy; anything else is logged at info level.
func isOrderlyOrResetEOF(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "tls:") ||
		strings.Contains(msg, "first record does not look like a TLS handshake")
}

// writeDelayedReply emits the one deterministic, fixed-format
// response this layer is responsible for (the framing of handler
// driven 200s is an external collaborator's job, out of scope). Every
// delayed reply closes the connection after, per the error-handling
// table.
func writeDelayedReply(stream net.Conn, status int, host, path string) {
	var extraHeaders, body string
	if status == 301 {
		loc := redirect.Location(host, path)
		body = redirect.Body(loc)
		extraHeaders = fmt.Sprintf("Location: %s\r\n", loc)
	} else {
		body = fmt.Sprintf("<html><body>%d %s</body></html>", status, reasonPhrase(status))
	}
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\n%sContent-Length: %d\r\nContent-Type: text/html\r\nConnection: close\r\n\r\n%s",
		status, reasonPhrase(status), extraHeaders, len(body), body)
	if _, err := stream.Write([]byte(resp)); err != nil {
		log.Debugf("connfsm: error writing delayed reply %d: %v", status, err)
	}
}

func reasonPhrase(status int) string {
	switch status {
	case 301:
		return "Moved Permanently"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	default:
		return "Error"
	}
}
