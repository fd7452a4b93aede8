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

import (
	"time"

	"fortio.org/dflag"
)

// The recognized options are dynamic flags, unbound until RegisterFlags
// is called, the same two-step pattern the teacher uses for
// fhttp.ServerIdleTimeout / fhttp.DefaultEchoServerParams: package-level
// dflag.New values that a binary wires to a flag.FlagSet explicitly.
var (
	RequestTimeout = dflag.New(30*time.Second,
		"Maximum time to wait for a complete request line and headers before closing the connection")
	RequestMaximum = dflag.New(int64(8192),
		"Per-read size in bytes for the request line plus headers; a request larger than twice this value is dropped")
	URLRoot = dflag.New("",
		"URL path prefix stripped from all incoming requests before dispatch")
	SSLExceptionPrefix = dflag.New("",
		"Path prefix exempted from the TLS redirect policy")
)

// RegisterFlags binds the dynamic config values above to the command
// line, mirroring bincommon.SharedMain's dflag.Flag(name, value) calls.
// A binary that embeds a Server calls this once before flag.Parse.
func RegisterFlags() {
	dflag.Flag("request-timeout", RequestTimeout)
	dflag.Flag("request-maximum", RequestMaximum)
	dflag.Flag("url-root", URLRoot)
	dflag.Flag("ssl-exception-prefix", SSLExceptionPrefix)
}
