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
	"sort"

	"golang.org/x/exp/slices"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
	"github.com/dolthub/go-relational-compiler/sql/transform"
)

// determinePotentialDevices annotates every node with the devices of the
// table variables below it.
func determinePotentialDevices(ctx *sql.Context, a *Analyzer, n plan.Node, _ *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
	span, ctx := ctx.Span("determine_potential_devices")
	defer span.Finish()

	return transform.NodeWithStack(n, stack.New(stack.CollisionAmbiguous), func(n plan.Node, _ *stack.Stack) (plan.Node, transform.TreeIdentity, error) {
		devices := potentialDevices(n)
		if slices.Equal(devices, n.Annotations().PotentialDevices) {
			return n, transform.SameTree, nil
		}
		nn, err := annotate(n)
		if err != nil {
			return nil, transform.SameTree, err
		}
		nn.Annotations().PotentialDevices = devices
		return nn, transform.NewTree, nil
	})
}

func potentialDevices(n plan.Node) []string {
	set := make(map[string]struct{})
	if r, ok := n.(*plan.TableVarReference); ok && r.TableVar.Device != "" {
		set[r.TableVar.Device] = struct{}{}
	}
	for _, c := range n.Children() {
		for _, d := range c.Annotations().PotentialDevices {
			set[d] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	devices := make([]string, 0, len(set))
	for d := range set {
		devices = append(devices, d)
	}
	sort.Strings(devices)
	return devices
}

// determineDevices chooses the device of every node that reads from a single
// device and records whether the device can evaluate the node.
func determineDevices(ctx *sql.Context, a *Analyzer, n plan.Node, _ *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
	span, ctx := ctx.Span("determine_devices")
	defer span.Finish()

	return transform.NodeWithStack(n, stack.New(stack.CollisionAmbiguous), func(n plan.Node, _ *stack.Stack) (plan.Node, transform.TreeIdentity, error) {
		ann := n.Annotations()
		if len(ann.PotentialDevices) != 1 {
			return n, transform.SameTree, nil
		}
		name := ann.PotentialDevices[0]
		if a.Catalog == nil {
			return nil, transform.SameTree, sql.ErrUnknownDevice.New(name)
		}
		device, ok := a.Catalog.Device(name)
		if !ok {
			return nil, transform.SameTree, sql.ErrUnknownDevice.New(name)
		}

		supported := supportedBy(device, n)
		if ann.Device == name && ann.DeviceSupported == supported {
			return n, transform.SameTree, nil
		}
		nn, err := annotate(n)
		if err != nil {
			return nil, transform.SameTree, err
		}
		nn.Annotations().Device = name
		nn.Annotations().DeviceSupported = supported
		return nn, transform.NewTree, nil
	})
}

// supportedBy reports whether device can evaluate n. Children evaluated on
// the same device must be supported as well.
func supportedBy(device sql.Device, n plan.Node) bool {
	if op := nodeOperator(n); op != nil && !device.Supports(op) {
		return false
	}
	for _, c := range n.Children() {
		ca := c.Annotations()
		if ca.Device == device.Name() && !ca.DeviceSupported {
			return false
		}
	}
	return true
}

// nodeOperator returns the operator a node invokes, if any.
func nodeOperator(n plan.Node) *sql.Operator {
	switch n := n.(type) {
	case *plan.Call:
		return n.Operator
	case *plan.Restrict:
		return n.Operator
	case *plan.Project:
		return n.Operator
	case *plan.Rename:
		return n.Operator
	case *plan.Extend:
		return n.Operator
	case *plan.Join:
		return n.Operator
	case *plan.Convert:
		return n.Conversion.Operator
	}
	return nil
}
