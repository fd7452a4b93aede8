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

// cockpitd is the reference/demo binary wiring an agentsrv.Server end
// to end: it listens on one TCP port, where TLS clients are detected
// per connection and served when a certificate is configured, and
// serves a small debug resource handler alongside whatever the
// embedding application registers.
package main

import (
	"flag"
	"fmt"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/popboy126/cockpit/agentsrv"
	"github.com/popboy126/cockpit/buildinfo"
	"github.com/popboy126/cockpit/gateway"
	"github.com/popboy126/cockpit/headers"
	"github.com/popboy126/cockpit/tlsinfo"
)

var (
	portFlag = flag.Int("port", 9090, "`port` to listen on for plaintext HTTP")
	certFlag = flag.String("cert", "", "TLS certificate `file`; empty disables TLS")
	keyFlag  = flag.String("key", "", "TLS private key `file`; empty disables TLS")
)

func main() {
	cli.ProgramName = "cockpitd"
	cli.ArgsHelp = ""
	cli.MinArgs = 0
	cli.MaxArgs = 0
	agentsrv.RegisterFlags()
	cli.Main()

	s := agentsrv.New(agentsrv.URLRoot.Get(), agentsrv.NONE)
	s.OnResource("/debug/", debugHandler)

	if *certFlag != "" && *keyFlag != "" {
		src, err := tlsinfo.Load(*certFlag, *keyFlag)
		if err != nil {
			log.Fatalf("cockpitd: unable to load TLS certificate: %v", err)
		}
		if err := src.Watch(); err != nil {
			log.Warnf("cockpitd: unable to watch certificate files for renewal: %v", err)
		}
		s.SetCertificate(src)
	}

	port, err := s.AddInet("", *portFlag)
	if err != nil {
		log.Fatalf("cockpitd: unable to bind port %d: %v", *portFlag, err)
	}
	log.Infof("cockpitd: listening on port %d (%s)", port, buildinfo.Short())
	s.Start()
	select {}
}

func debugHandler(path string, h *headers.Map, gw *gateway.Gateway) bool {
	body := buildinfo.Long()
	resp := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nContent-Type: text/plain\r\nConnection: keep-alive\r\n\r\n%s",
		len(body), body)
	if _, err := gw.Stream().Write([]byte(resp)); err != nil {
		log.Debugf("cockpitd: error writing debug response: %v", err)
	}
	gw.Done(true)
	return true
}
