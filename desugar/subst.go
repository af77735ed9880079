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
)

// ColumnKey identifies a column of a source.
type ColumnKey struct {
	Table expr.Source
	Name  string
}

// ColumnSubstitution is a Rewriter that replaces
// references to the key columns with the mapped
// expressions. It is used to inline a column in
// place of references to it.
type ColumnSubstitution map[ColumnKey]expr.Node

func (s ColumnSubstitution) Walk(expr.Node) expr.Rewriter { return s }

func (s ColumnSubstitution) Rewrite(n expr.Node) expr.Node {
	c, ok := n.(*expr.Column)
	if !ok {
		return n
	}
	if e, ok := s[ColumnKey{Table: c.Table, Name: c.Name}]; ok {
		return e
	}
	return n
}

// TableSubstitution is a Rewriter that moves
// column references from the key sources to
// the same-named columns of the mapped sources.
// It is used when a relation is cloned under
// a new identity.
type TableSubstitution map[expr.Source]expr.Source

func (s TableSubstitution) Walk(expr.Node) expr.Rewriter { return s }

func (s TableSubstitution) Rewrite(n expr.Node) expr.Node {
	c, ok := n.(*expr.Column)
	if !ok {
		return n
	}
	if t, ok := s[c.Table]; ok {
		return expr.Col(t, c.Name)
	}
	return n
}

// NullFlood is a Rewriter that replaces every
// column owned by Table with the null constant.
//
// Indexed lookups are flooded in both their base
// and their keys with the optional flag preserved.
// A Require expression has its value and every one
// of its guards flooded, and collapses to null if
// any flooded guard is the null constant.
type NullFlood struct {
	Table expr.Source
}

// Flood returns a NullFlood for t.
func Flood(t expr.Source) *NullFlood {
	return &NullFlood{Table: t}
}

// Walk descends into every child, so all the guards of
// a Require have been rewritten by the time it is seen.
func (f *NullFlood) Walk(expr.Node) expr.Rewriter { return f }

func (f *NullFlood) Rewrite(n expr.Node) expr.Node {
	switch n := n.(type) {
	case *expr.Column:
		if n.Table == f.Table {
			return expr.Null()
		}
	case *expr.Require:
		for _, g := range n.Guards {
			if expr.IsNull(g) {
				return expr.Null()
			}
		}
	}
	return n
}
