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

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Table is a relation in a dataflow graph.
// Tables are immutable; every operation
// returns a new Table.
type Table struct {
	id      uuid.UUID
	name    string
	session *Session
	columns []Column
	op      *plan.Op

	// relations whose columns are
	// remapped onto this one
	aliases []expr.Source
	// columns that are inlined
	// rather than computed
	virtual map[string]expr.Node
	// relations treated as absent
	absent []expr.Source
}

var (
	_ expr.Relation   = (*Table)(nil)
	_ expr.Typed      = (*Table)(nil)
	_ plan.Recorded   = (*Table)(nil)
	_ desugar.Context = (*Table)(nil)
	_ desugar.Target  = (*Table)(nil)
)

func (t *Table) ID() uuid.UUID { return t.id }

func (t *Table) String() string { return t.name }

// Columns returns the column names of t.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	for i := range t.columns {
		out[i] = t.columns[i].Name
	}
	return out
}

// TypeOf returns the type of column name.
func (t *Table) TypeOf(name string) expr.TypeSet {
	if name == desugar.IDColumn {
		return expr.PointerType
	}
	for i := range t.columns {
		if t.columns[i].Name == name {
			return t.columns[i].Type
		}
	}
	return expr.AnyType
}

// Op returns the operation that produced t.
func (t *Table) Op() *plan.Op { return t.op }

// Col returns a reference to column name of t.
func (t *Table) Col(name string) *expr.Column {
	return expr.Col(t, name)
}

func (t *Table) has(name string) bool {
	if name == desugar.IDColumn {
		return true
	}
	for i := range t.columns {
		if t.columns[i].Name == name {
			return true
		}
	}
	return false
}

// Scope binds expr.Self to t.
func (t *Table) Scope() desugar.Scope {
	return desugar.Scope{expr.Self: t}
}

// substitutions returns the rewriters that
// are active on t regardless of the operation
func (t *Table) substitutions() expr.Pipeline {
	var p expr.Pipeline
	if len(t.aliases) > 0 {
		ts := make(desugar.TableSubstitution, len(t.aliases))
		for _, a := range t.aliases {
			ts[a] = t
		}
		p = append(p, ts)
	}
	if len(t.virtual) > 0 {
		cs := make(desugar.ColumnSubstitution, len(t.virtual))
		for name, e := range t.virtual {
			cs[desugar.ColumnKey{Table: t, Name: name}] = e
		}
		p = append(p, cs)
	}
	for _, d := range t.absent {
		p = append(p, desugar.Flood(d))
	}
	return p
}

// Rewriters returns the substitutions active
// on t followed by the compilation of inline
// calls against t.
func (t *Table) Rewriters() expr.Pipeline {
	return t.substitutions().With(desugar.SelectCalls(t, t.session.gen))
}

// Project implements desugar.Target.
func (t *Table) Project(b []expr.Binding) (expr.Relation, error) {
	out, err := t.project("select", b)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply implements desugar.Target.
func (t *Table) Apply(op *rowtx.Operator, input expr.Relation) (expr.Relation, error) {
	out, err := t.session.apply(op, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func split(args []any) ([]any, []desugar.Kwarg) {
	var pos []any
	var kw []desugar.Kwarg
	for _, a := range args {
		if k, ok := a.(desugar.Kwarg); ok {
			kw = append(kw, k)
		} else {
			pos = append(pos, a)
		}
	}
	return pos, kw
}

// nameArgs fixes the output name of each column
// argument before interception, so that a column keeps
// its name when a substitution replaces its reference.
// Expressions with a smart name and keyword arguments
// become desugar.Named, which keeps argument order and
// never binds a parameter of the operation. Spreads and
// arguments without a name are left positional.
func nameArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
		switch a := a.(type) {
		case desugar.Kwarg:
			out[i] = desugar.Named{Name: a.Name, Value: a.Value}
		case expr.Node:
			if n := expr.SmartName(a); n != "" {
				out[i] = desugar.Named{Name: n, Value: a}
			}
		}
	}
	return out
}

func intercept(s *Session, sig *desugar.Signature, recv any, args []any) (*desugar.Resolved, error) {
	pos, kw := split(args)
	r, err := desugar.Intercept(sig, append([]any{recv}, pos...), kw)
	if err != nil {
		level.Debug(s.logger).Log("msg", "desugaring failed", "op", sig.Name, "on", recv, "err", err)
		return nil, err
	}
	level.Debug(s.logger).Log("msg", "desugared call", "op", sig.Name, "on", recv,
		"args", len(pos), "kwargs", len(kw), "context", r.Context != nil)
	return r, nil
}

type columnCheck struct {
	err error
}

func (c *columnCheck) Visit(n expr.Node) expr.Visitor {
	if c.err != nil {
		return nil
	}
	if col, ok := n.(*expr.Column); ok {
		if t, ok := col.Table.(*Table); ok && !t.has(col.Name) {
			c.err = fmt.Errorf("%s has no column %q", t, col.Name)
		}
	}
	return c
}

func checkColumns(lst ...expr.Node) error {
	c := &columnCheck{}
	for _, n := range lst {
		expr.Walk(c, n)
		if c.err != nil {
			return c.err
		}
	}
	return nil
}

func bindingExprs(b []expr.Binding) []expr.Node {
	out := make([]expr.Node, len(b))
	for i := range b {
		out[i] = b[i].Expr
	}
	return out
}

func typedColumns(b []expr.Binding) []Column {
	out := make([]Column, len(b))
	for i := range b {
		out[i] = Column{Name: b[i].As, Type: expr.TypeOf(b[i].Expr, nil)}
	}
	return out
}

// project records a Select of resolved bindings
func (t *Table) project(name string, b []expr.Binding) (*Table, error) {
	if err := checkColumns(bindingExprs(b)...); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	out := t.session.newTable(t.name+"/"+name, typedColumns(b))
	out.op = &plan.Op{
		Kind:     plan.Select,
		Output:   out,
		Inputs:   []expr.Relation{t},
		Bindings: b,
	}
	return out, nil
}

var (
	selectSig      = &desugar.Signature{Name: "select", Params: []string{"self"}}
	withColumnsSig = &desugar.Signature{Name: "with_columns", Params: []string{"self"}}
	filterSig      = &desugar.Signature{Name: "filter", Params: []string{"self", "expression"}}
	defineSig      = &desugar.Signature{Name: "define", Params: []string{"self"}}
)

func (t *Table) selectWith(sig *desugar.Signature, args []any) (*Table, error) {
	r, err := intercept(t.session, sig, t, nameArgs(args))
	if err != nil {
		return nil, err
	}
	b, err := desugar.CombineArgs(r.Args[1:], r.Kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sig.Name, err)
	}
	return t.project(sig.Name, b)
}

// Select returns a relation with one row per
// row of t and one column per argument.
//
// Each argument is an expression, named after
// the column it refers to, a desugar.Kwarg naming
// an expression or a literal, or a spread such as
// expr.Self.Spread().
func (t *Table) Select(args ...any) (*Table, error) {
	return t.selectWith(selectSig, args)
}

// WithColumns returns t extended with the
// columns given by args, which replace the
// columns of t with the same names.
func (t *Table) WithColumns(args ...any) (*Table, error) {
	var names []string
	for _, a := range args {
		switch a := a.(type) {
		case desugar.Kwarg:
			names = append(names, a.Name)
		case expr.Node:
			if n := expr.SmartName(a); n != "" {
				names = append(names, n)
			}
		}
	}
	all := make([]any, 0, len(args)+1)
	all = append(all, expr.Self.Spread(names...))
	all = append(all, args...)
	return t.selectWith(withColumnsSig, all)
}

// Filter returns the rows of t for
// which cond evaluates to true.
//
// The type of cond must admit bool: a
// condition whose type excludes it, such as
// an int column or a method, is rejected with
// a *desugar.ArgumentError. Columns of unknown
// type are accepted.
func (t *Table) Filter(cond any) (*Table, error) {
	r, err := intercept(t.session, filterSig, t, []any{cond})
	if err != nil {
		return nil, err
	}
	n, ok := r.Args[1].(expr.Node)
	if !ok {
		return nil, fmt.Errorf("filter: %w", &desugar.ArgumentError{Name: "expression", Msg: fmt.Sprintf("%v is not a column expression", r.Args[1])})
	}
	if typ := expr.TypeOf(n, nil); typ&expr.BoolType == 0 {
		return nil, fmt.Errorf("filter: %w", &desugar.ArgumentError{Name: "expression", Msg: fmt.Sprintf("%q has type %s, not bool", expr.ToString(n), typ)})
	}
	if err := checkColumns(n); err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	out := t.session.newTable(t.name+"/filter", slices.Clone(t.columns))
	out.op = &plan.Op{
		Kind:   plan.Filter,
		Output: out,
		Inputs: []expr.Relation{t},
		Cond:   n,
	}
	return out, nil
}

// view returns a relation sharing the rows
// of t under a new identity; references to t
// are remapped onto it
func (t *Table) view(kind plan.Kind, cols []Column) *Table {
	out := t.session.newTable(t.name+"/"+kind.String(), cols)
	out.op = &plan.Op{Kind: kind, Output: out, Inputs: []expr.Relation{t}}
	out.aliases = append(slices.Clone(t.aliases), t)
	out.absent = slices.Clone(t.absent)
	if len(t.virtual) > 0 {
		out.virtual = maps.Clone(t.virtual)
	}
	return out
}

// Copy returns a copy of t with a new identity.
// Expressions passed to operations on the copy
// may refer to the columns of t; they are
// remapped onto the copy.
func (t *Table) Copy() *Table {
	out := t.view(plan.Copy, slices.Clone(t.columns))
	level.Debug(t.session.logger).Log("msg", "copied table", "from", t, "to", out)
	return out
}

// Define returns a view of t with an additional
// column name computed by e. The column is not
// materialized: references to it in operations
// invoked on the view are replaced by e.
func (t *Table) Define(name string, e any) (*Table, error) {
	r, err := intercept(t.session, defineSig, t, nameArgs([]any{desugar.K(name, e)}))
	if err != nil {
		return nil, err
	}
	b, err := desugar.CombineArgs(r.Args[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("define: %w", err)
	}
	if t.has(name) {
		return nil, fmt.Errorf("define: %w", &desugar.DuplicateNameError{Name: name})
	}
	if err := checkColumns(b[0].Expr); err != nil {
		return nil, fmt.Errorf("define: %w", err)
	}
	cols := append(slices.Clone(t.columns), Column{Name: name, Type: expr.TypeOf(b[0].Expr, nil)})
	out := t.view(plan.View, cols)
	if out.virtual == nil {
		out.virtual = make(map[string]expr.Node)
	}
	out.virtual[name] = b[0].Expr
	return out, nil
}

// Absent returns a view of t in which dep is
// treated as absent: references to columns of
// dep evaluate to null, and Require expressions
// guarded by them collapse to null.
func (t *Table) Absent(dep expr.Source) *Table {
	out := t.view(plan.View, slices.Clone(t.columns))
	out.absent = append(out.absent, dep)
	return out
}
