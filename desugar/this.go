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
	"github.com/SnellerInc/relflow/expr"

	"golang.org/x/exp/slices"
)

// Scope maps self-reference tokens to the
// sources they stand for in a single call.
type Scope map[*expr.This]expr.Source

// Clone returns a copy of s that
// can be extended without affecting s.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// This is a Rewriter that resolves
// self-references against Scope.
//
// Columns and pointers owned by a bound
// token are rebuilt against the source
// the token is bound to. A token missing
// from Scope is reported through Err and
// the node is left unchanged.
type This struct {
	Scope Scope

	err error
}

// Resolve returns a This rewriter for s.
func Resolve(s Scope) *This {
	return &This{Scope: s}
}

func (t *This) Walk(expr.Node) expr.Rewriter { return t }

func (t *This) Rewrite(n expr.Node) expr.Node {
	switch n := n.(type) {
	case *expr.Column:
		src, ok := t.source(n.Table, n)
		if !ok || src == n.Table {
			return n
		}
		return expr.Col(src, n.Name)
	case *expr.Pointer:
		// the arguments have already been resolved
		src, ok := t.source(n.Table, n)
		if !ok || src == n.Table {
			return n
		}
		return &expr.Pointer{Table: src, Args: n.Args, Optional: n.Optional}
	}
	return n
}

func (t *This) source(s expr.Source, at expr.Node) (expr.Source, bool) {
	tok, ok := s.(*expr.This)
	if !ok {
		return s, true
	}
	src, ok := t.Scope[tok]
	if !ok {
		if t.err == nil {
			t.err = &UnresolvedScopeError{Scope: tok, At: at}
		}
		return s, false
	}
	return src, true
}

// Err returns the first unresolved
// token encountered by t.
func (t *This) Err() error { return t.err }

// relation resolves the scope of a spread
func (s Scope) relation(sp *expr.Spread) (expr.Relation, error) {
	src, ok := s[sp.Scope]
	if !ok {
		return nil, &UnresolvedScopeError{Scope: sp.Scope}
	}
	rel, ok := src.(expr.Relation)
	if !ok {
		return nil, &ArgumentError{Msg: "cannot spread the columns of " + src.String()}
	}
	return rel, nil
}

// expand returns one column reference per
// column of the relation sp is bound to.
func (s Scope) expand(sp *expr.Spread) ([]*expr.Column, error) {
	rel, err := s.relation(sp)
	if err != nil {
		return nil, err
	}
	var out []*expr.Column
	for _, name := range rel.Columns() {
		if slices.Contains(sp.Without, name) {
			continue
		}
		out = append(out, expr.Col(rel, name))
	}
	return out, nil
}

func (s Scope) resolve(v any) (any, error) {
	n, ok := v.(expr.Node)
	if !ok {
		return v, nil
	}
	t := Resolve(s)
	n = expr.Rewrite(t, n)
	if err := t.Err(); err != nil {
		return nil, err
	}
	return n, nil
}

// ResolveArgs resolves the self-references
// in a list of positional arguments.
// Spreads are replaced by the columns they
// expand to; arguments that are not
// expressions are returned unchanged.
// Named arguments keep their names; a Named
// spread expands into Named columns.
func ResolveArgs(s Scope, args []any) ([]any, error) {
	out := make([]any, 0, len(args))
	for _, a := range args {
		if nm, ok := a.(Named); ok {
			if sp, ok := nm.Value.(*expr.Spread); ok {
				cols, err := s.expand(sp)
				if err != nil {
					return nil, err
				}
				for _, c := range cols {
					out = append(out, Named{Name: c.Name, Value: c})
				}
				continue
			}
			r, err := s.resolve(nm.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, Named{Name: nm.Name, Value: r})
			continue
		}
		if sp, ok := a.(*expr.Spread); ok {
			cols, err := s.expand(sp)
			if err != nil {
				return nil, err
			}
			for _, c := range cols {
				out = append(out, c)
			}
			continue
		}
		r, err := s.resolve(a)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ResolveKwargs resolves the self-references
// in a list of keyword arguments. The value of
// a keyword spread is replaced by one keyword
// argument per column, named after the column;
// the name of the spread argument itself is ignored.
func ResolveKwargs(s Scope, kwargs []Kwarg) ([]Kwarg, error) {
	out := make([]Kwarg, 0, len(kwargs))
	for _, kw := range kwargs {
		if sp, ok := kw.Value.(*expr.Spread); ok {
			cols, err := s.expand(sp)
			if err != nil {
				return nil, err
			}
			for _, c := range cols {
				out = append(out, Kwarg{Name: c.Name, Value: c})
			}
			continue
		}
		r, err := s.resolve(kw.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Kwarg{Name: kw.Name, Value: r})
	}
	return out, nil
}
