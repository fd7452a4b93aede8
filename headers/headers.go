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

// Package headers implements a case-insensitive, single-valued header
// map used by the request parser and handed to handlers by reference.
package headers

// toUpper folds a single ASCII byte to upper case, leaving non ascii
// lowercase letters untouched (fast path, same idiom as a case-fold
// byte scanner: only the 'a'-'z' range is touched).
func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		b -= 'a' - 'A'
	}
	return b
}

// fold returns an ASCII-uppercased copy of name, used as the map key.
// Header names are a closed ASCII token set in practice so this never
// needs unicode handling.
func fold(name string) string {
	buf := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		buf[i] = toUpper(name[i])
	}
	return string(buf)
}

// entry holds a stored header's value alongside the name exactly as it
// was last inserted, so iteration can hand callers back the original
// casing even though lookup is case-insensitive.
type entry struct {
	name  string
	value string
}

// Map is a case-insensitive header name to value map. Duplicate
// insertions overwrite (last write wins), matching spec: only a single
// value per header name is retained.
type Map struct {
	m map[string]entry
}

// New returns an empty header Map ready to use.
func New() *Map {
	return &Map{m: make(map[string]entry)}
}

// Insert stores value under name, case-insensitively. A later Insert
// with the same name (any case) replaces the previous value, and
// updates the name on record to that later call's casing.
func (h *Map) Insert(name, value string) {
	if h.m == nil {
		h.m = make(map[string]entry)
	}
	h.m[fold(name)] = entry{name: name, value: value}
}

// Get returns the value for name and whether it was present.
func (h *Map) Get(name string) (string, bool) {
	if h.m == nil {
		return "", false
	}
	e, ok := h.m[fold(name)]
	return e.value, ok
}

// GetDefault returns the value for name or def if absent.
func (h *Map) GetDefault(name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

// Len returns the number of distinct header names stored.
func (h *Map) Len() int {
	return len(h.m)
}

// Range calls f for every header, in unspecified order, using the name
// as it was originally inserted (not the folded lookup key) — a
// handler that forwards headers verbatim must see "Content-Type", not
// "CONTENT-TYPE". f must not mutate the Map (handlers are handed a
// read-only view per spec).
func (h *Map) Range(f func(name, value string)) {
	for _, e := range h.m {
		f(e.name, e.value)
	}
}
