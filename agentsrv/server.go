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

// Package agentsrv is the embeddable front-end facade: it owns the
// listener set, the handler chains, optional TLS material, and the
// per-connection goroutines that run connfsm. A caller constructs one
// Server, registers handlers and listeners, and calls Start/Stop.
package agentsrv

import (
	"net"
	"sync"

	"fortio.org/log"

	"github.com/popboy126/cockpit/buildinfo"
	"github.com/popboy126/cockpit/connfsm"
	"github.com/popboy126/cockpit/dispatch"
	"github.com/popboy126/cockpit/netlisten"
	"github.com/popboy126/cockpit/tlsinfo"
)

// Server is the embeddable HTTP/1 front-end. Zero value is not usable;
// construct with New.
type Server struct {
	flags Flags

	listeners *netlisten.Set
	chains    *dispatch.Chains

	mu  sync.Mutex
	tls *tlsinfo.Source
	// live is the "weak membership set" of requests currently being
	// processed, keyed by the connfsm correlation id, each mapped to a
	// closer that forcibly tears down that request's transport. Stop
	// uses it to cancel every live request deterministically instead
	// of waiting out each one's RequestTimeout, mirroring
	// cockpit_web_server_dispose closing every live request's stream.
	live    map[string]func() error
	stopped bool

	wg sync.WaitGroup
}

// New constructs a Server with the given URL root (canonicalized
// internally, see dispatch.CanonicalizeURLRoot) and behavior flags.
func New(urlRoot string, flags Flags) *Server {
	return &Server{
		flags:     flags,
		listeners: netlisten.New(),
		chains:    dispatch.New(dispatch.CanonicalizeURLRoot(urlRoot)),
		live:      make(map[string]func() error),
	}
}

// SetCertificate installs (or replaces) the TLS certificate source.
// Passing nil disables TLS: TLS client hellos will be detected and
// dropped rather than served.
func (s *Server) SetCertificate(src *tlsinfo.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tls = src
}

func (s *Server) certificate() *tlsinfo.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tls
}

// OnStream registers a stream-chain handler (see dispatch.StreamHandler).
func (s *Server) OnStream(h dispatch.StreamHandler) { s.chains.OnStream(h) }

// OnResource registers a resource-chain handler for the given detail
// key ("" for the catch-all), see dispatch.ResourceHandler.
func (s *Server) OnResource(detail string, h dispatch.ResourceHandler) {
	s.chains.OnResource(detail, h)
}

// AddInet opens a TCP listener on address:port (port 0 picks an
// ephemeral port) and returns the bound port.
func (s *Server) AddInet(address string, port int) (int, error) {
	return s.listeners.AddInet(address, port)
}

// AddFD adopts an already-open, already-listening socket fd (the
// inherited-listener case for graceful restarts).
func (s *Server) AddFD(fd int) error {
	return s.listeners.AddFD(fd)
}

// ConnectInProcess returns one end of an in-process net.Pipe whose
// other end is served exactly like an accepted connection, without
// touching a real socket; for tests and same-process embedding.
func (s *Server) ConnectInProcess() netlisten.ClientStream {
	return s.listeners.ConnectInProcess()
}

// Start begins accepting connections on every listener registered so
// far and spawns the per-connection goroutines that serve them.
// netlisten.Set starts accept loops only for the listeners it holds
// when its Start first runs, so listeners added after Start are not
// accepted from.
func (s *Server) Start() {
	s.listeners.Start()
	log.Infof("agentsrv: starting (%s)", buildinfo.Short())
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for conn := range s.listeners.Conns() {
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.serve(c)
		}(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	cfg := connfsm.Config{
		RequestMax:         int(RequestMaximum.Get()),
		RequestTimeout:     RequestTimeout.Get(),
		TLS:                s.certificate(),
		RedirectTLS:        s.flags.has(RedirectTLS),
		BehindTLSProxy:     s.flags.has(ForTLSProxy),
		SSLExceptionPrefix: SSLExceptionPrefix.Get(),
	}
	connfsm.Run(conn, conn.LocalAddr(), cfg, s.chains, s.begin, s.end)
}

func (s *Server) begin(id string, closer func() error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		// Stop already ran its sweep; a connection accepted in the
		// race between listeners.Close() and here must not be left
		// to run out its own RequestTimeout.
		_ = closer()
		return
	}
	s.live[id] = closer
	s.mu.Unlock()
}

func (s *Server) end(id string) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

// LiveRequests returns the number of requests currently in flight.
// This is a point-in-time snapshot for observability only: Stop does
// not wait on it directly (it waits on the per-connection goroutines
// themselves via its WaitGroup).
func (s *Server) LiveRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Stop closes every listener (unblocking Accept), forcibly closes
// every connection currently live or held open for reuse, and waits
// for all per-connection goroutines to finish before returning. This
// makes Stop deterministic instead of bounded only by the longest
// in-flight RequestTimeout.
func (s *Server) Stop() {
	s.listeners.Close()

	s.mu.Lock()
	s.stopped = true
	closers := make([]func() error, 0, len(s.live))
	for _, closer := range s.live {
		closers = append(closers, closer)
	}
	s.mu.Unlock()

	for _, closer := range closers {
		_ = closer()
	}

	s.wg.Wait()
	if src := s.certificate(); src != nil {
		src.Close()
	}
}
