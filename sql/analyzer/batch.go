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

package analyzer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/transform"
)

// RuleFunc is the function to be applied in a rule. Warnings the rule
// raises go to messages; they are kept only when the rule succeeds.
type RuleFunc func(ctx *sql.Context, a *Analyzer, n plan.Node, messages *sql.Messages) (plan.Node, transform.TreeIdentity, error)

// Rule to transform nodes.
type Rule struct {
	Id RuleId
	// Apply transforms a node.
	Apply RuleFunc
}

// Batch executes a set of rules a specific number of times. When this number
// of times is reached, the actual node is returned.
type Batch struct {
	Desc       string
	Iterations int
	Rules      []Rule
}

// Eval executes the rules of the batch until the tree stops changing or the
// number of iterations is reached. A rule that fails is reported as a warning
// and its result discarded.
func (b *Batch) Eval(ctx *sql.Context, a *Analyzer, n plan.Node, messages *sql.Messages) plan.Node {
	if b.Iterations == 0 || len(b.Rules) == 0 {
		return n
	}

	cur := n
	for i := 0; i < b.Iterations; i++ {
		var same transform.TreeIdentity
		cur, same = b.evalOnce(ctx, a, cur, messages)
		if same {
			break
		}
		if i == b.Iterations-1 && b.Iterations > 1 {
			a.Log("batch %s reached %d iterations", b.Desc, b.Iterations)
		}
	}
	return cur
}

func (b *Batch) evalOnce(ctx *sql.Context, a *Analyzer, n plan.Node, messages *sql.Messages) (plan.Node, transform.TreeIdentity) {
	result := n
	allSame := transform.SameTree
	for _, rule := range b.Rules {
		next, same := b.applyRule(ctx, a, rule, result, messages)
		if !same {
			allSame = transform.NewTree
			a.LogNode(next)
		}
		result = next
	}
	return result, allSame
}

func (b *Batch) applyRule(ctx *sql.Context, a *Analyzer, rule Rule, n plan.Node, messages *sql.Messages) (plan.Node, transform.TreeIdentity) {
	span, ctx := ctx.Span(rule.Id.String())
	defer span.Finish()

	if a.IsSkipped(rule.Id) {
		span.SetTag("skipped", true)
		return n, transform.SameTree
	}

	a.Log("applying rule %s", rule.Id)
	local := sql.NewMessages()
	result, same, err := runRule(ctx, a, rule, n, local)
	if err != nil {
		span.SetTag("failed", true)
		span.LogKV("error", err.Error())
		logger := ctx.GetLogger().WithFields(logrus.Fields{
			"rule":  rule.Id.String(),
			"batch": b.Desc,
		})
		logger.WithError(err).Warn("optimizer pass failed, keeping previous plan")
		pos := n.Pos()
		messages.Warn(sql.ErrOptimizerPass.New(rule.Id, err), pos.Line, pos.Column)
		return n, transform.SameTree
	}
	messages.Append(local)
	return result, same
}

// runRule applies the rule, turning a panic inside it into an error.
func runRule(ctx *sql.Context, a *Analyzer, rule Rule, n plan.Node, messages *sql.Messages) (result plan.Node, same transform.TreeIdentity, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = sql.ErrInternal.New(fmt.Sprint(r))
			}
			result, same = n, transform.SameTree
		}
	}()
	result, same, err = rule.Apply(ctx, a, n, messages)
	if err == nil && result == nil {
		err = sql.ErrInternal.New(fmt.Sprintf("rule %s returned no plan", rule.Id))
	}
	return result, same, err
}
