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

package conversion

import (
	"fmt"
	"strings"

	"github.com/dolthub/go-relational-compiler/sql"
)

// Path is a chain of conversions from a source to a target scalar type.
type Path []*sql.Conversion

// NarrowingScore is zero for paths without narrowing edges and decreases by
// one for every narrowing edge, so higher is better.
func (p Path) NarrowingScore() int {
	score := 0
	for _, c := range p {
		if c.IsNarrowing {
			score--
		}
	}
	return score
}

// IsNarrowing reports whether any edge of the path is narrowing.
func (p Path) IsNarrowing() bool {
	return p.NarrowingScore() < 0
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<identity>"
	}
	parts := []string{p[0].Source.Name()}
	for _, c := range p {
		parts = append(parts, c.Target.Name())
	}
	return strings.Join(parts, " -> ")
}

// ColumnContext is the conversion context of a single column of a
// structural conversion.
type ColumnContext struct {
	Name    string
	Context *Context
}

// Context is the result of a conversion search between two types. Contexts are
// shared through the cache and must not be modified once returned.
type Context struct {
	Source sql.Type
	Target sql.Type
	// CanConvert reports whether a single best conversion exists.
	CanConvert bool
	// Path is the selected path for scalar conversions.
	Path Path
	// Candidates holds the tied best paths of an ambiguous conversion.
	Candidates []Path
	// Columns holds per column contexts of row and table conversions.
	Columns []ColumnContext
	// Element holds the element context of list and cursor conversions.
	Element *Context
	// MissingFromTarget lists source columns the target does not have.
	MissingFromTarget []string
	// MissingFromSource lists target columns the source does not have.
	MissingFromSource []string
	// Visited holds the names of the scalar types the search touched.
	Visited []string
}

// IsExact reports whether no conversion is needed at all.
func (c *Context) IsExact() bool {
	if !c.CanConvert || len(c.Path) > 0 {
		return false
	}
	for _, col := range c.Columns {
		if !col.Context.IsExact() {
			return false
		}
	}
	if c.Element != nil {
		return c.Element.IsExact()
	}
	return true
}

// IsAmbiguous reports whether more than one best path exists, anywhere in a
// structural conversion.
func (c *Context) IsAmbiguous() bool {
	if len(c.Candidates) > 1 {
		return true
	}
	for _, col := range c.Columns {
		if col.Context.IsAmbiguous() {
			return true
		}
	}
	return c.Element != nil && c.Element.IsAmbiguous()
}

// NarrowingScore sums the narrowing scores of every path involved.
func (c *Context) NarrowingScore() int {
	score := c.Path.NarrowingScore()
	for _, col := range c.Columns {
		score += col.Context.NarrowingScore()
	}
	if c.Element != nil {
		score += c.Element.NarrowingScore()
	}
	return score
}

// PathLength sums the lengths of every path involved.
func (c *Context) PathLength() int {
	length := len(c.Path)
	for _, col := range c.Columns {
		length += col.Context.PathLength()
	}
	if c.Element != nil {
		length += c.Element.PathLength()
	}
	return length
}

// IsNarrowing reports whether the conversion narrows anywhere.
func (c *Context) IsNarrowing() bool {
	return c.NarrowingScore() < 0
}

// Column returns the context of the named column.
func (c *Context) Column(name string) (*Context, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col.Context, true
		}
	}
	return nil, false
}

func (c *Context) String() string {
	switch {
	case c.IsAmbiguous():
		return fmt.Sprintf("ambiguous %s to %s", c.Source, c.Target)
	case !c.CanConvert:
		return fmt.Sprintf("no conversion %s to %s", c.Source, c.Target)
	case c.IsExact():
		return fmt.Sprintf("exact %s", c.Target)
	default:
		return fmt.Sprintf("%s to %s (score %d, length %d)", c.Source, c.Target, c.NarrowingScore(), c.PathLength())
	}
}

// Check turns a failed conversion context into an error. Structural
// failures are reported column by column.
func Check(c *Context) error {
	if c.CanConvert {
		return nil
	}
	if c.IsAmbiguous() {
		return sql.ErrAmbiguousConversion.New(c.Source, c.Target, candidates(c))
	}
	return sql.ErrNoConversion.New(c.Source, c.Target, details(c))
}

func candidates(c *Context) []string {
	if len(c.Candidates) > 1 {
		result := make([]string, len(c.Candidates))
		for i, p := range c.Candidates {
			result[i] = p.String()
		}
		return result
	}
	var result []string
	for _, col := range c.Columns {
		if col.Context.IsAmbiguous() {
			for _, cand := range candidates(col.Context) {
				result = append(result, col.Name+": "+cand)
			}
		}
	}
	if c.Element != nil && c.Element.IsAmbiguous() {
		result = append(result, candidates(c.Element)...)
	}
	return result
}

func details(c *Context) string {
	var parts []string
	for _, name := range c.MissingFromTarget {
		parts = append(parts, sql.ErrColumnConversion.New(name, "present in the source but missing from the target").Error())
	}
	for _, name := range c.MissingFromSource {
		parts = append(parts, sql.ErrColumnConversion.New(name, "required by the target but missing from the source").Error())
	}
	for _, col := range c.Columns {
		if !col.Context.CanConvert {
			parts = append(parts, sql.ErrColumnConversion.New(col.Name, col.Context.String()).Error())
		}
	}
	if c.Element != nil && !c.Element.CanConvert {
		parts = append(parts, "element: "+c.Element.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return ": " + strings.Join(parts, "; ")
}
