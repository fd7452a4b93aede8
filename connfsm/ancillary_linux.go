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

//go:build linux

package connfsm

import (
	"encoding/json"
	"net"
	"os"
	"syscall"

	"fortio.org/log"
	"golang.org/x/sys/unix"
)

// readFirstByteAncillary reads the first byte of conn together with
// any ancillary control message (SCM_RIGHTS). If the control message
// carries a single file descriptor whose contents decode as a JSON
// object, that object is returned as metadata.
func readFirstByteAncillary(conn net.Conn) (b byte, metadata map[string]any, err error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return readFirstByteNoAncillary(conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return readFirstByteNoAncillary(conn)
	}
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	var n, oobn int
	var rerr error
	cerr := raw.Read(func(fd uintptr) bool {
		n, oobn, _, _, rerr = unix.Recvmsg(int(fd), buf, oob, 0)
		return rerr != unix.EAGAIN
	})
	if cerr != nil {
		return 0, nil, cerr
	}
	if rerr != nil {
		return 0, nil, rerr
	}
	if n == 0 {
		return 0, nil, errEOF
	}
	if oobn > 0 {
		metadata = decodeAncillaryMetadata(oob[:oobn])
	}
	return buf[0], metadata, nil
}

func decodeAncillaryMetadata(oob []byte) map[string]any {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		log.Debugf("connfsm: unable to parse ancillary control message: %v", err)
		return nil
	}
	for _, msg := range msgs {
		fds, err := unix.ParseUnixRights(&msg)
		if err != nil || len(fds) == 0 {
			continue
		}
		f := os.NewFile(uintptr(fds[0]), "ancillary-metadata")
		data := make([]byte, 65536)
		nRead, _ := f.Read(data)
		_ = f.Close()
		var obj map[string]any
		if err := json.Unmarshal(data[:nRead], &obj); err != nil {
			log.Debugf("connfsm: ancillary fd payload isn't a JSON object: %v", err)
			continue
		}
		return obj
	}
	return nil
}
