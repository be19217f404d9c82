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

import "github.com/dolthub/go-relational-compiler/sql/plan"

// DefaultRules returns the optimizer rules in the order they run. The first
// rule normalizes the tree; the rest annotate it.
func DefaultRules() []Rule {
	return []Rule{
		{normalizeRestrictionsId, normalizeRestrictions},
		{prepareTransactionJoinsId, prepareTransactionJoins},
		{determinePotentialDevicesId, determinePotentialDevices},
		{determineDevicesId, determineDevices},
		{determineAccessPathsId, determineAccessPaths},
	}
}

// annotate returns a copy of n whose annotations can be changed without
// affecting n.
func annotate(n plan.Node) (plan.Node, error) {
	return n.WithChildren(n.Children()...)
}
