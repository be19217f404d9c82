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

//go:generate stringer -type=RuleId -linecomment

type RuleId int

const (
	normalizeRestrictionsId     RuleId = iota // normalizeRestrictions
	prepareTransactionJoinsId                 // prepareTransactionJoins
	determinePotentialDevicesId               // determinePotentialDevices
	determineDevicesId                        // determineDevices
	determineAccessPathsId                    // determineAccessPaths

	// PostRuleId is the first id available to rules added with
	// Builder.AddPostRule.
	PostRuleId
)

// ParseRuleId returns the rule with the given name.
func ParseRuleId(name string) (RuleId, bool) {
	for id := normalizeRestrictionsId; id < PostRuleId; id++ {
		if id.String() == name {
			return id, true
		}
	}
	return 0, false
}
