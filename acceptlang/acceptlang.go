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

// Package acceptlang parses quality-ordered header lists such as
// Accept-Language into a priority-ordered slice of values, with
// "-"-bearing values contributing a base-form fallback entry.
package acceptlang

import (
	"sort"
	"strconv"
	"strings"
)

type entry struct {
	value string
	q     float64
	order int // original input position, for stable-on-tie ordering
}

// Parse splits header on "," and returns values sorted by descending
// q (stable on ties), lower-cased and trimmed, with q<=0 entries
// discarded. If def is non-empty it is injected as a synthetic entry
// with q=0.1 before sorting. Every surviving "-"-bearing value also
// contributes a base-form entry (substring before the first "-")
// appended after sorting.
func Parse(header, def string) []string {
	var entries []entry
	order := 0
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		val, q := splitQuality(part)
		if q < 0 {
			q = 0
		}
		if q <= 0 {
			continue
		}
		entries = append(entries, entry{value: strings.ToLower(strings.TrimSpace(val)), q: q, order: order})
		order++
	}
	if def != "" {
		entries = append(entries, entry{value: strings.ToLower(strings.TrimSpace(def)), q: 0.1, order: order})
		order++
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].q > entries[j].q
	})
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.value)
	}
	// Append base forms for every "-"-bearing survivor, preserving the
	// sorted order they were found in.
	for _, e := range entries {
		if i := strings.IndexByte(e.value, '-'); i > 0 {
			res = append(res, e.value[:i])
		}
	}
	return res
}

// splitQuality reads an optional ";q=<float>" suffix off part,
// returning the value and its quality (defaulting to 1 when absent).
// A malformed q value is treated as 1 (ignored), matching a lenient
// parser's behavior for partial/garbled q parameters.
func splitQuality(part string) (string, float64) {
	i := strings.IndexByte(part, ';')
	if i < 0 {
		return part, 1
	}
	val := part[:i]
	params := part[i+1:]
	q := 1.0
	for _, p := range strings.Split(params, ";") {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "q=") && !strings.HasPrefix(p, "Q=") {
			continue
		}
		if f, err := strconv.ParseFloat(p[2:], 64); err == nil {
			q = f
		}
	}
	return val, q
}
