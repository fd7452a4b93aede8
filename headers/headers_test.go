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

package headers

import (
	"testing"

	"fortio.org/assert"
)

func TestInsertGetCaseInsensitive(t *testing.T) {
	h := New()
	h.Insert("Content-Type", "text/plain")
	v, ok := h.Get("content-type")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", v)
	v, ok = h.Get("CONTENT-TYPE")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", v)
}

func TestLastWriteWins(t *testing.T) {
	h := New()
	h.Insert("Host", "first")
	h.Insert("host", "second")
	v, _ := h.Get("Host")
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, h.Len())
}

func TestGetDefault(t *testing.T) {
	h := New()
	assert.Equal(t, "fallback", h.GetDefault("Missing", "fallback"))
	h.Insert("Missing", "present")
	assert.Equal(t, "present", h.GetDefault("Missing", "fallback"))
}

func TestGetMissing(t *testing.T) {
	h := New()
	_, ok := h.Get("Nope")
	assert.False(t, ok)
}

func fuzzCaseInsensitive(name string) bool {
	h := New()
	h.Insert(name, "v")
	lower := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	_, ok := h.Get(string(lower))
	return ok
}

func TestCaseInsensitivePropertyish(t *testing.T) {
	for _, name := range []string{"X-Foo", "x-foo", "X-FOO", "Accept-Language", "HOST", "Set-Cookie"} {
		if !fuzzCaseInsensitive(name) {
			t.Errorf("case-insensitive get failed for %q", name)
		}
	}
}

func TestRangePreservesInsertedCase(t *testing.T) {
	h := New()
	h.Insert("Content-Type", "text/plain")
	var seenName string
	h.Range(func(name, value string) {
		seenName = name
	})
	assert.Equal(t, "Content-Type", seenName)
}

func TestRangeUsesMostRecentCase(t *testing.T) {
	h := New()
	h.Insert("HOST", "first")
	h.Insert("Host", "second")
	var seenName, seenValue string
	h.Range(func(name, value string) {
		seenName, seenValue = name, value
	})
	assert.Equal(t, "Host", seenName)
	assert.Equal(t, "second", seenValue)
}
