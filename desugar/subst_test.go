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
	"testing"

	"github.com/SnellerInc/relflow/expr"
)

func TestColumnSubstitution(t *testing.T) {
	a, b := newRel("A", "x", "z"), newRel("B", "y")
	s := ColumnSubstitution{
		{Table: a, Name: "x"}: expr.Add(expr.Col(b, "y"), 2),
	}
	out := expr.Rewrite(s, expr.Add(expr.Col(a, "x"), expr.Col(a, "z")))
	if got := expr.ToString(out); got != "((B.y + 2) + A.z)" {
		t.Errorf("got %s", got)
	}
	// same name on another relation is left alone
	out = expr.Rewrite(s, expr.Col(b, "x"))
	if got := expr.ToString(out); got != "B.x" {
		t.Errorf("got %s", got)
	}
}

func TestTableSubstitution(t *testing.T) {
	a, b, c := newRel("A", "x"), newRel("B", "x"), newRel("C", "y")
	s := TableSubstitution{a: b}
	out := expr.Rewrite(s, expr.Requires(expr.Col(a, "x"), expr.Col(c, "y")))
	if got := expr.ToString(out); got != "REQUIRE(B.x, C.y)" {
		t.Errorf("got %s", got)
	}
	if !out.(*expr.Require).Value.Equals(expr.Col(b, "x")) {
		t.Error("column was not moved to the target relation")
	}
}

func TestNullFloodDisjoint(t *testing.T) {
	a, b, target := newRel("A", "x"), newRel("B", "k"), newRel("T", "v")
	testcases := []expr.Node{
		expr.Add(expr.Col(a, "x"), 1),
		expr.Requires(expr.Col(a, "x"), expr.Col(b, "k")),
		expr.Index(expr.Col(a, "x"), expr.Col(b, "k"), true),
		expr.Reduce(expr.ReduceSum, expr.Col(a, "x")),
		expr.PointerFrom(a, false, expr.Col(b, "k")),
	}
	for i, n := range testcases {
		out := expr.Rewrite(Flood(target), n)
		if out != n {
			t.Errorf("case %d: %s was rebuilt into %s", i, expr.ToString(n), expr.ToString(out))
		}
	}
}

// countingFlood records every column
// seen by the flood it wraps
type countingFlood struct {
	*NullFlood
	seen []string
}

func (c *countingFlood) Walk(expr.Node) expr.Rewriter { return c }

func (c *countingFlood) Rewrite(n expr.Node) expr.Node {
	if col, ok := n.(*expr.Column); ok {
		c.seen = append(c.seen, expr.ToString(col))
	}
	return c.NullFlood.Rewrite(n)
}

func TestNullFloodRequire(t *testing.T) {
	a, b, target := newRel("A", "v"), newRel("B", "g"), newRel("T", "g")
	testcases := []struct {
		in   expr.Node
		want string
		// columns that must have been visited
		seen []string
	}{
		{
			// the first guard nulls out; the rest
			// are still rewritten
			in:   expr.Requires(expr.Col(a, "v"), expr.Col(target, "g"), expr.Col(b, "g"), expr.Col(b, "h")),
			want: "NULL",
			seen: []string{"A.v", "T.g", "B.g", "B.h"},
		},
		{
			in:   expr.Requires(expr.Col(a, "v"), expr.Col(b, "g"), expr.Col(target, "g")),
			want: "NULL",
			seen: []string{"A.v", "B.g", "T.g"},
		},
		{
			// only the value depends on the target
			in:   expr.Requires(expr.Col(target, "v"), expr.Col(b, "g")),
			want: "REQUIRE(NULL, B.g)",
			seen: []string{"T.v", "B.g"},
		},
		{
			// a guard that becomes null transitively
			in:   expr.Requires(expr.Col(a, "v"), expr.Requires(expr.Col(b, "g"), expr.Col(target, "g"))),
			want: "NULL",
			seen: []string{"A.v", "B.g", "T.g"},
		},
		{
			in:   expr.Add(expr.Requires(expr.Col(a, "v"), expr.Col(target, "g")), 1),
			want: "(NULL + 1)",
			seen: []string{"A.v", "T.g"},
		},
		{
			// both base and keys are flooded
			in:   expr.Index(expr.Col(target, "v"), expr.Col(target, "k"), true),
			want: "NULL[NULL]?",
			seen: []string{"T.v", "T.k"},
		},
		{
			in:   expr.Index(expr.Col(a, "v"), expr.Col(target, "k"), false),
			want: "A.v[NULL]",
			seen: []string{"A.v", "T.k"},
		},
	}
	for i := range testcases {
		tc := &testcases[i]
		c := &countingFlood{NullFlood: Flood(target)}
		out := expr.Rewrite(c, tc.in)
		if got := expr.ToString(out); got != tc.want {
			t.Errorf("case %d: got %s, want %s", i, got, tc.want)
		}
		if len(c.seen) != len(tc.seen) {
			t.Errorf("case %d: visited %v, want %v", i, c.seen, tc.seen)
			continue
		}
		for j := range c.seen {
			if c.seen[j] != tc.seen[j] {
				t.Errorf("case %d: visited %v, want %v", i, c.seen, tc.seen)
				break
			}
		}
	}
}

func TestPipeline(t *testing.T) {
	a, b, target := newRel("A", "x"), newRel("B", "x"), newRel("T", "g")
	p := expr.Pipeline{
		TableSubstitution{a: b},
		ColumnSubstitution{{Table: b, Name: "x"}: expr.Requires(expr.Col(b, "y"), expr.Col(target, "g"))},
		Flood(target),
	}
	out := p.Apply(expr.Add(expr.Col(a, "x"), 1))
	if got := expr.ToString(out); got != "(NULL + 1)" {
		t.Errorf("got %s", got)
	}
	if p.Err() != nil {
		t.Error(p.Err())
	}
}
