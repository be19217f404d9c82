// Copyright 2023 Dolthub, Inc.
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

package similartext

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const maxDistance = 2

// Find returns a string with suggestions for the names most similar to src,
// or the empty string when none is close enough. Names are compared without
// regard to case, and qualified names are compared by their last segment
// when src is unqualified.
func Find(names []string, src string) string {
	if len(src) == 0 {
		return ""
	}

	qualified := strings.Contains(src, ".")
	lowered := strings.ToLower(src)
	minDistance := -1
	var matches []string
	for _, name := range names {
		candidate := name
		if !qualified {
			if i := strings.LastIndexByte(candidate, '.'); i >= 0 {
				candidate = candidate[i+1:]
			}
		}
		dist := levenshtein.ComputeDistance(strings.ToLower(candidate), lowered)
		switch {
		case minDistance == -1 || dist < minDistance:
			minDistance = dist
			matches = []string{name}
		case dist == minDistance && !slices.Contains(matches, name):
			matches = append(matches, name)
		}
	}

	if len(matches) == 0 || minDistance > maxDistance {
		return ""
	}

	return fmt.Sprintf(", maybe you mean %s?", strings.Join(matches, " or "))
}

// FindFromMap does the same as Find but taking a map instead of a slice.
func FindFromMap[V any](names map[string]V, src string) string {
	keys := maps.Keys(names)
	slices.Sort(keys)
	return Find(keys, src)
}
