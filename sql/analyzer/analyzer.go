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

// Package analyzer optimizes compiled plan trees with a fixed sequence of
// passes.
package analyzer

import (
	"os"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/plan"
)

const debugCompilerKey = "DEBUG_COMPILER"

// maxNormalizationIterations bounds the restriction normalization batch.
const maxNormalizationIterations = 16

// Builder provides an easy way to generate an Analyzer with custom rules and
// options.
type Builder struct {
	catalog   sql.Catalog
	debug     bool
	skip      map[RuleId]struct{}
	postRules []Rule
}

// NewBuilder creates a new Builder for the given catalog.
func NewBuilder(c sql.Catalog) *Builder {
	return &Builder{catalog: c, skip: make(map[RuleId]struct{})}
}

// WithDebug activates debug on the Analyzer.
func (ab *Builder) WithDebug() *Builder {
	ab.debug = true
	return ab
}

// SkipPass disables the given rules.
func (ab *Builder) SkipPass(ids ...RuleId) *Builder {
	for _, id := range ids {
		ab.skip[id] = struct{}{}
	}
	return ab
}

// SkipAll disables every default rule, for embedded use without
// optimization.
func (ab *Builder) SkipAll() *Builder {
	for _, r := range DefaultRules() {
		ab.skip[r.Id] = struct{}{}
	}
	return ab
}

// AddPostRule adds a rule that runs after the default rules.
func (ab *Builder) AddPostRule(id RuleId, fn RuleFunc) *Builder {
	ab.postRules = append(ab.postRules, Rule{Id: id, Apply: fn})
	return ab
}

// Build creates a new Analyzer with the rules and options given so far.
func (ab *Builder) Build() *Analyzer {
	_, debug := os.LookupEnv(debugCompilerKey)
	batches := []*Batch{
		{
			Desc:       "normalization",
			Iterations: maxNormalizationIterations,
			Rules:      []Rule{{normalizeRestrictionsId, normalizeRestrictions}},
		},
		{
			Desc:       "annotation",
			Iterations: 1,
			Rules:      DefaultRules()[1:],
		},
		{
			Desc:       "post-analyzer",
			Iterations: 1,
			Rules:      ab.postRules,
		},
	}

	skip := make(map[RuleId]struct{}, len(ab.skip))
	for id := range ab.skip {
		skip[id] = struct{}{}
	}
	return &Analyzer{
		Debug:    debug || ab.debug,
		debugCtx: make([]string, 0),
		Batches:  batches,
		Catalog:  ab.catalog,
		skip:     skip,
	}
}

// Analyzer applies the optimization passes to compiled plan trees.
type Analyzer struct {
	// Whether to log various debugging messages
	Debug bool
	// Whether to log the plan after every pass
	Verbose  bool
	debugCtx []string
	// Batches of Rules to apply.
	Batches []*Batch
	// Catalog the plan was compiled against.
	Catalog sql.Catalog
	skip    map[RuleId]struct{}
}

// NewDefault creates an Analyzer with every default rule.
func NewDefault(c sql.Catalog) *Analyzer {
	return NewBuilder(c).Build()
}

// Log prints an INFO message with the given message and args if the
// analyzer is in debug mode.
func (a *Analyzer) Log(msg string, args ...interface{}) {
	if a != nil && a.Debug {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			logrus.Infof("%s: "+msg, append([]interface{}{ctx}, args...)...)
		} else {
			logrus.Infof(msg, args...)
		}
	}
}

// LogNode prints the node given if Verbose logging is enabled.
func (a *Analyzer) LogNode(n plan.Node) {
	if a != nil && n != nil && a.Verbose {
		a.Log("plan:\n%s", n.String())
	}
}

// PushDebugContext pushes the given context string onto the context stack,
// to use when logging debug messages.
func (a *Analyzer) PushDebugContext(msg string) {
	if a != nil {
		a.debugCtx = append(a.debugCtx, msg)
	}
}

// PopDebugContext pops a context message off the context stack.
func (a *Analyzer) PopDebugContext() {
	if a != nil && len(a.debugCtx) > 0 {
		a.debugCtx = a.debugCtx[:len(a.debugCtx)-1]
	}
}

// IsSkipped reports whether the given rule is disabled.
func (a *Analyzer) IsSkipped(id RuleId) bool {
	_, ok := a.skip[id]
	return ok
}

// Analyze runs every batch over the tree. A rule that fails leaves the tree
// as it was before the rule; the failure is reported as a warning in
// messages.
func (a *Analyzer) Analyze(ctx *sql.Context, n plan.Node, messages *sql.Messages) plan.Node {
	span, ctx := ctx.Span("analyze", opentracing.Tags{
		"kind": n.Kind().String(),
	})
	defer span.Finish()

	a.Log("starting analysis of node of kind: %s", n.Kind())
	cur := n
	for _, batch := range a.Batches {
		a.PushDebugContext(batch.Desc)
		cur = batch.Eval(ctx, a, cur, messages)
		a.PopDebugContext()
	}
	return cur
}
