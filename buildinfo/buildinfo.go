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

// Package buildinfo surfaces the module's version/build metadata, the
// way the teacher's version package wraps fortio.org/version. It is
// used by the demo binary's optional debug resource handler; the core
// library itself has no default debug endpoint.
package buildinfo

import "fortio.org/version"

var (
	shortVersion = "dev"
	longVersion  = "unknown long"
)

func init() { //nolint:gochecknoinits // burns in the build info once at startup
	shortVersion, longVersion, _ = version.FromBuildInfoPath("github.com/popboy126/cockpit")
}

// Short returns the X.Y.Z short version string.
func Short() string {
	return shortVersion
}

// Long returns the long version + build information.
func Long() string {
	return longVersion
}
