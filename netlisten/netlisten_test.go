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

package netlisten

import (
	"net"
	"strconv"
	"testing"
	"time"

	"fortio.org/assert"
)

func TestAddInetAndAccept(t *testing.T) {
	s := New()
	port, err := s.AddInet("127.0.0.1", 0)
	assert.NoError(t, err)
	assert.True(t, port > 0)
	s.Start()

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	assert.NoError(t, err)
	defer conn.Close()

	select {
	case accepted := <-s.Conns():
		assert.True(t, accepted != nil)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
	s.Close()
}

func TestConnectInProcessDeliversPair(t *testing.T) {
	s := New()
	client := s.ConnectInProcess()
	defer client.Close()

	server := <-s.Conns()
	defer server.Close()

	msg := []byte("hello")
	done := make(chan struct{})
	go func() {
		_, _ = client.Write(msg)
		close(done)
	}()
	buf := make([]byte, len(msg))
	n, err := server.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, string(msg), string(buf))
	<-done
}

func TestCloseUnblocksConns(t *testing.T) {
	s := New()
	_, err := s.AddInet("127.0.0.1", 0)
	assert.NoError(t, err)
	s.Start()
	s.Close()
	_, stillOpen := <-s.Conns()
	assert.False(t, stillOpen)
}

