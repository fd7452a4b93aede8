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

import (
	"errors"
	"net"
)

// errEOF marks a zero-byte read with no underlying error (peer closed
// before sending anything).
var errEOF = errors.New("connfsm: EOF on first read")

// readFirstByteNoAncillary performs a plain single-byte read, used as
// the fallback when the platform or connection type doesn't support
// SCM_RIGHTS ancillary-data pickup.
func readFirstByteNoAncillary(conn net.Conn) (byte, map[string]any, error) {
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = errEOF
		}
		return 0, nil, err
	}
	return buf[0], nil, nil
}
