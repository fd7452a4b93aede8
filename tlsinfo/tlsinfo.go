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

// Package tlsinfo loads the server's TLS certificate material and,
// optionally, watches the cert/key files for changes so a long-lived
// embedded front-end doesn't need a restart to pick up a renewed
// certificate.
package tlsinfo

import (
	"crypto/tls"
	"path/filepath"
	"sync"
	"sync/atomic"

	"fortio.org/log"
	"github.com/fsnotify/fsnotify"
)

// Source hands out the current server certificate. Safe for
// concurrent use: GetCertificate may be called from many concurrent
// handshakes.
type Source struct {
	certFile, keyFile string
	cur               atomic.Pointer[tls.Certificate]
	watcher           *fsnotify.Watcher
	done              chan struct{}
	mu                sync.Mutex
}

// Load reads certFile/keyFile once and returns a ready Source. Pass
// the result to Watch to keep it current across renewals.
func Load(certFile, keyFile string) (*Source, error) {
	s := &Source{certFile: certFile, keyFile: keyFile}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) reload() error {
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		log.Errf("tlsinfo: unable to load cert %v / key %v: %v", s.certFile, s.keyFile, err)
		return err
	}
	s.cur.Store(&cert)
	log.Infof("tlsinfo: loaded certificate from %v / %v", s.certFile, s.keyFile)
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (s *Source) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return s.cur.Load(), nil
}

// Config returns a server-side tls.Config backed by this Source,
// re-reading the certificate on every handshake via GetCertificate so
// a hot reload (see Watch) takes effect without restarting listeners.
func (s *Source) Config() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: s.GetCertificate,
	}
}

// Watch starts an fsnotify watch on the certificate and key files'
// parent directories and reloads the certificate whenever either file
// is written, renamed onto, or created (the rename dance most ACME
// clients and k8s secret mounts use to update a file atomically).
func (s *Source) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]bool)
	for _, f := range []string{s.certFile, s.keyFile} {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			log.Warnf("tlsinfo: unable to watch %v: %v", dir, err)
		}
	}
	s.watcher = w
	s.done = make(chan struct{})
	go s.watchLoop()
	return nil
}

func (s *Source) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.LogVf("tlsinfo: %v changed (%v), reloading certificate", ev.Name, ev.Op)
				if err := s.reload(); err != nil {
					log.Errf("tlsinfo: reload after %v failed, keeping previous certificate: %v", ev, err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("tlsinfo: watch error: %v", err)
		case <-s.done:
			return
		}
	}
}

// Close stops the watch goroutine, if any.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}
	close(s.done)
	_ = s.watcher.Close()
	s.watcher = nil
}
