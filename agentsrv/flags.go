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

package agentsrv

// Flags is a small explicit bitset of per-Server behavior toggles,
// matching the teacher's preference for option structs (fhttp.TLSOptions,
// fhttp.HTTPOptions) over a configuration framework for booleans that
// rarely change at runtime.
type Flags uint32

const (
	// NONE is the default: no TLS proxy assumption, no redirect.
	NONE Flags = 0
	// ForTLSProxy tells handlers the externally visible scheme is https
	// even though this Server's own connections are plaintext, because
	// a TLS-terminating proxy sits in front of it.
	ForTLSProxy Flags = 1 << 0
	// RedirectTLS makes plaintext, non-loopback connections receive a
	// 301 to https instead of being dispatched normally.
	RedirectTLS Flags = 1 << 1
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }
