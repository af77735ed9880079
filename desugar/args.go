// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package desugar

import (
	"fmt"

	"github.com/SnellerInc/relflow/expr"
)

// Kwarg is a keyword argument.
// Value is an expr.Node, an *expr.Spread,
// or a literal value.
type Kwarg struct {
	Name  string
	Value any
}

// K returns a keyword argument.
func K(name string, value any) Kwarg {
	return Kwarg{Name: name, Value: value}
}

// Named is a positional argument whose output
// name is fixed by the caller before its value is
// resolved or rewritten. Unlike a Kwarg it is never
// bound to a declared parameter.
// Value is an expr.Node, an *expr.Spread,
// or a literal value. A spread value expands
// into one Named argument per column.
type Named struct {
	Name  string
	Value any
}

// CombineArgs merges positional and keyword
// arguments into a list of bindings with unique
// names, in argument order.
//
// Positional arguments are named by
// expr.SmartName, or by the name they carry
// if they are Named. Keyword values that are not
// expressions are wrapped into constants.
// Duplicate names and the reserved name IDColumn
// are rejected.
func CombineArgs(args []any, kwargs []Kwarg) ([]expr.Binding, error) {
	out := make([]expr.Binding, 0, len(args)+len(kwargs))
	seen := make(map[string]struct{}, len(args)+len(kwargs))
	add := func(name string, v any) error {
		switch v.(type) {
		case *expr.Spread:
			return &ArgumentError{Name: name, Msg: "unexpanded spread"}
		case expr.Relation:
			return &ArgumentError{Name: name, Msg: fmt.Sprintf("relation %s is not a column expression", v)}
		}
		if _, ok := seen[name]; ok {
			return &DuplicateNameError{Name: name}
		}
		if name == IDColumn {
			return &ReservedNameError{Name: name}
		}
		seen[name] = struct{}{}
		out = append(out, expr.Bind(expr.Lift(v), name))
		return nil
	}
	for i, a := range args {
		if nm, ok := a.(Named); ok {
			if err := add(nm.Name, nm.Value); err != nil {
				return nil, err
			}
			continue
		}
		n, ok := a.(expr.Node)
		if !ok {
			return nil, &ArgumentError{Msg: fmt.Sprintf("positional argument %d (%v) is not a column expression", i, a)}
		}
		name := expr.SmartName(n)
		if name == "" {
			return nil, &ArgumentError{Msg: fmt.Sprintf("positional argument %q has no name; pass it as a keyword argument", expr.ToString(n))}
		}
		if err := add(name, n); err != nil {
			return nil, err
		}
	}
	for _, kw := range kwargs {
		if err := add(kw.Name, kw.Value); err != nil {
			return nil, err
		}
	}
	return out, nil
}
