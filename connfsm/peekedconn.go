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

package connfsm

import "net"

// peekedConn replays a small prefix of already-read bytes before
// falling through to the underlying connection, so the single byte
// consumed to detect TLS-vs-plaintext can be handed back to whichever
// reader (the request parser, or a TLS handshake) needs it next.
type peekedConn struct {
	net.Conn
	prefix []byte
}

func (p *peekedConn) Read(b []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(b, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.Conn.Read(b)
}
