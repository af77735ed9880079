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

package plan

import (
	"fmt"
	"strings"

	"github.com/SnellerInc/relflow/expr"
	"github.com/SnellerInc/relflow/rowtx"
)

// Kind is the kind of an Op
type Kind int

const (
	// Input is a leaf relation
	Input Kind = iota
	// Select computes new columns
	// row by row
	Select
	// Filter keeps the rows
	// matching a condition
	Filter
	// Reduce aggregates the groups
	// formed by grouping keys
	Reduce
	// Apply runs a generated
	// row transformer
	Apply
	// Copy gives the rows of its input
	// a new relation identity
	Copy
	// View exposes its input unchanged;
	// its expressions are rewritten
	// before evaluation
	View
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Select:
		return "select"
	case Filter:
		return "filter"
	case Reduce:
		return "reduce"
	case Apply:
		return "apply"
	case Copy:
		return "copy"
	case View:
		return "view"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Op is a single recorded operation.
type Op struct {
	Kind Kind
	// Output is the relation produced by the Op.
	Output expr.Relation
	// Inputs are the relations the Op reads.
	Inputs []expr.Relation
	// Keys are the grouping keys of a Reduce.
	Keys []expr.Binding
	// Bindings are the output columns
	// of a Select or Reduce.
	Bindings []expr.Binding
	// Cond is the condition of a Filter.
	Cond expr.Node
	// Operator is the transformer run by an Apply.
	Operator *rowtx.Operator
}

func (o *Op) String() string {
	var dst strings.Builder
	dst.WriteString(o.Kind.String())
	dst.WriteByte(' ')
	dst.WriteString(o.Output.String())
	switch o.Kind {
	case Select, Reduce:
		if len(o.Keys) > 0 {
			dst.WriteString(" BY ")
			writeBindings(&dst, o.Keys)
		}
		dst.WriteString(": ")
		writeBindings(&dst, o.Bindings)
	case Filter:
		dst.WriteString(" WHERE ")
		dst.WriteString(expr.ToString(o.Cond))
	case Apply:
		dst.WriteString(" USING ")
		dst.WriteString(o.Operator.Name)
	}
	return dst.String()
}

func writeBindings(dst *strings.Builder, lst []expr.Binding) {
	for i := range lst {
		if i > 0 {
			dst.WriteString(", ")
		}
		dst.WriteString(lst[i].String())
	}
}

// expressions returns every expression held by o
func (o *Op) expressions() []expr.Node {
	var out []expr.Node
	for i := range o.Keys {
		out = append(out, o.Keys[i].Expr)
	}
	for i := range o.Bindings {
		out = append(out, o.Bindings[i].Expr)
	}
	if o.Cond != nil {
		out = append(out, o.Cond)
	}
	return out
}

// Recorded is implemented by relations
// that remember the Op producing them.
type Recorded interface {
	expr.Relation
	Op() *Op
}

// Graph is the set of operations
// needed to compute Root.
type Graph struct {
	// Ops are in dependency order:
	// every Op comes after the Ops
	// producing the relations it uses.
	Ops  []*Op
	Root expr.Relation
}

func (g *Graph) String() string {
	var dst strings.Builder
	for i := range g.Ops {
		dst.WriteString(g.Ops[i].String())
		dst.WriteByte('\n')
	}
	return dst.String()
}

type sources struct {
	out []expr.Relation
}

func (s *sources) Visit(n expr.Node) expr.Visitor {
	var src expr.Source
	switch n := n.(type) {
	case *expr.Column:
		src = n.Table
	case *expr.Pointer:
		src = n.Table
	}
	if r, ok := src.(expr.Relation); ok {
		s.out = append(s.out, r)
	}
	return s
}

// Build returns the Graph of operations
// that root depends on. Relations that do
// not implement Recorded terminate the search;
// a placeholder found in an expression is an error.
func Build(root Recorded) (*Graph, error) {
	g := &Graph{Root: root}
	state := make(map[expr.Relation]int)
	const (
		visiting = 1
		done     = 2
	)
	var visit func(r expr.Relation) error
	visit = func(r expr.Relation) error {
		switch state[r] {
		case visiting:
			return fmt.Errorf("plan: cycle through relation %s", r)
		case done:
			return nil
		}
		rec, ok := r.(Recorded)
		if !ok {
			state[r] = done
			return nil
		}
		state[r] = visiting
		op := rec.Op()
		deps := append([]expr.Relation{}, op.Inputs...)
		for _, e := range op.expressions() {
			if p := expr.Placeholders(e); len(p) > 0 {
				return fmt.Errorf("plan: %s: unresolved self-reference %q", op, p[0])
			}
			s := &sources{}
			expr.Walk(s, e)
			deps = append(deps, s.out...)
		}
		for _, d := range deps {
			if d == r {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		state[r] = done
		g.Ops = append(g.Ops, op)
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	return g, nil
}
