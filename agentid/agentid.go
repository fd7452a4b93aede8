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

// Package agentid generates the per-connection identity used purely
// to correlate log lines for a single connection's lifetime across
// its (possibly several, on reuse) turns.
package agentid

import "github.com/google/uuid"

// New returns a fresh connection identifier.
func New() string {
	return uuid.NewString()
}
