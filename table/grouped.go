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

package table

import (
	"fmt"

	"github.com/SnellerInc/relflow/desugar"
	"github.com/SnellerInc/relflow/expr"
	"github.com/SnellerInc/relflow/plan"
	"github.com/SnellerInc/relflow/rowtx"
)

// Grouped is a relation grouped by a list
// of key columns, awaiting reduction.
type Grouped struct {
	source *Table
	keys   []expr.Binding
}

var (
	_ desugar.Context = (*Grouped)(nil)
	_ desugar.Target  = (*Grouped)(nil)
	_ desugar.Alias   = (*Grouped)(nil)
)

var (
	groupBySig = &desugar.Signature{Name: "groupby", Params: []string{"self"}}
	reduceSig  = &desugar.Signature{
		Name:   "reduce",
		Params: []string{"self"},
		Bind:   map[*expr.This]string{expr.Self: "self"},
	}
)

// GroupBy groups the rows of t by the
// given columns of t.
func (t *Table) GroupBy(args ...any) (*Grouped, error) {
	r, err := intercept(t.session, groupBySig, t, nameArgs(args))
	if err != nil {
		return nil, err
	}
	keys, err := desugar.CombineArgs(r.Args[1:], r.Kwargs)
	if err != nil {
		return nil, fmt.Errorf("groupby: %w", err)
	}
	for _, k := range keys {
		c, ok := k.Expr.(*expr.Column)
		if !ok || c.Table != t {
			return nil, fmt.Errorf("groupby: %w", &desugar.ArgumentError{
				Name: k.As,
				Msg:  fmt.Sprintf("grouping key %q is not a column of %s", expr.ToString(k.Expr), t),
			})
		}
		if !t.has(c.Name) {
			return nil, fmt.Errorf("groupby: %s has no column %q", t, c.Name)
		}
	}
	return &Grouped{source: t, keys: keys}, nil
}

func (g *Grouped) String() string {
	return g.source.String() + "/groupby"
}

// Scope binds expr.Self to the relation being grouped.
func (g *Grouped) Scope() desugar.Scope {
	return desugar.Scope{expr.Self: g.source}
}

// Alias implements desugar.Alias.
func (g *Grouped) Alias() expr.Source { return g.source }

// Rewriters returns the substitutions active on
// the grouped relation followed by the aggregation
// flavor of inline call compilation.
func (g *Grouped) Rewriters() expr.Pipeline {
	return g.source.substitutions().With(desugar.ReduceCallsOf(g, g.source, g.source.session.gen))
}

// Project implements desugar.Target
// by reducing the groups with b.
func (g *Grouped) Project(b []expr.Binding) (expr.Relation, error) {
	out, err := g.reduce(b)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply implements desugar.Target.
func (g *Grouped) Apply(op *rowtx.Operator, input expr.Relation) (expr.Relation, error) {
	return g.source.Apply(op, input)
}

// Reduce returns a relation with one row
// per group and one column per argument.
// Outside of reducer expressions, arguments
// may only refer to the grouping columns.
func (g *Grouped) Reduce(args ...any) (*Table, error) {
	r, err := intercept(g.source.session, reduceSig, g, nameArgs(args))
	if err != nil {
		return nil, err
	}
	b, err := desugar.CombineArgs(r.Args[1:], r.Kwargs)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	return g.reduce(b)
}

type groupedCheck struct {
	g   *Grouped
	err error
}

func (c *groupedCheck) Visit(n expr.Node) expr.Visitor {
	if c.err != nil {
		return nil
	}
	switch n := n.(type) {
	case *expr.Reducer:
		return nil
	case *expr.Column:
		if n.Table == c.g.source && !c.g.isKey(n.Name) {
			c.err = &desugar.ArgumentError{
				Msg: fmt.Sprintf("column %q is neither a grouping column nor reduced", expr.ToString(n)),
			}
		}
	}
	return c
}

func (g *Grouped) isKey(name string) bool {
	for _, k := range g.keys {
		if k.Expr.(*expr.Column).Name == name {
			return true
		}
	}
	return false
}

func (g *Grouped) reduce(b []expr.Binding) (*Table, error) {
	if err := checkColumns(bindingExprs(b)...); err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	c := &groupedCheck{g: g}
	for i := range b {
		expr.Walk(c, b[i].Expr)
		if c.err != nil {
			return nil, fmt.Errorf("reduce: %w", c.err)
		}
	}
	s := g.source.session
	out := s.newTable(g.source.name+"/reduce", typedColumns(b))
	out.op = &plan.Op{
		Kind:     plan.Reduce,
		Output:   out,
		Inputs:   []expr.Relation{g.source},
		Keys:     g.keys,
		Bindings: b,
	}
	return out, nil
}
