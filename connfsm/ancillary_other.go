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

//go:build !linux

package connfsm

import "net"

// readFirstByteAncillary has no ancillary-data pickup outside Linux
// (SCM_RIGHTS is a Linux/BSD socket facility not wired here); it
// always falls back to a plain first-byte read.
func readFirstByteAncillary(conn net.Conn) (byte, map[string]any, error) {
	return readFirstByteNoAncillary(conn)
}
