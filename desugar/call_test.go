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
	"errors"
	"testing"

	"github.com/SnellerInc/relflow/expr"
	"github.com/SnellerInc/relflow/rowtx"
)

func TestSelectCalls(t *testing.T) {
	a := newRel("A", "f", "x", "y")
	tgt := &fakeTarget{name: "A"}
	c := SelectCalls(tgt, rowtx.New())
	call := expr.Invoke(expr.Col(a, "f"), expr.Col(a, "x"), expr.Col(a, "y"))
	out := expr.Rewrite(c, expr.Add(call, 1))
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	if got := expr.ToString(out); got != "(A_in1_out.result + 1)" {
		t.Fatalf("got %s", got)
	}
	if len(tgt.projected) != 1 {
		t.Fatalf("%d projections", len(tgt.projected))
	}
	b := tgt.projected[0]
	want := []expr.Binding{
		expr.Bind(expr.Col(a, "f"), rowtx.MethodColumn),
		expr.Bind(expr.Col(a, "x"), "arg_0"),
		expr.Bind(expr.Col(a, "y"), "arg_1"),
	}
	if len(b) != len(want) {
		t.Fatalf("got bindings %v", b)
	}
	for i := range want {
		if b[i].As != want[i].As || !b[i].Expr.Equals(want[i].Expr) {
			t.Errorf("binding %d: got %s, want %s", i, b[i], want[i])
		}
	}
	if len(tgt.applied) != 1 || tgt.applied[0].Arity != 2 || tgt.applied[0].Returns != expr.AnyType {
		t.Errorf("applied %v", tgt.applied)
	}
	if !expr.Resolved(out) {
		t.Error("placeholders in output")
	}
	// the call itself is untouched
	if got := expr.ToString(call); got != "A.f(A.x, A.y)" {
		t.Errorf("input modified: %s", got)
	}
}

func TestSelectCallsNested(t *testing.T) {
	a := newRel("A", "f", "g", "x")
	tgt := &fakeTarget{name: "A"}
	c := SelectCalls(tgt, rowtx.New())
	inner := expr.Invoke(expr.Col(a, "g"), expr.Col(a, "x"))
	out := expr.Rewrite(c, expr.Invoke(expr.Col(a, "f"), inner))
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	if len(tgt.projected) != 2 {
		t.Fatalf("%d projections", len(tgt.projected))
	}
	// the outer call receives the inner result
	arg := tgt.projected[1][1]
	if got := expr.ToString(arg.Expr); got != "A_in1_out.result" {
		t.Errorf("outer argument is %s", got)
	}
	if got := expr.ToString(out); got != "A_in2_out.result" {
		t.Errorf("got %s", got)
	}
}

func TestSelectCallsMemo(t *testing.T) {
	a := newRel("A", "f", "x")
	tgt := &fakeTarget{name: "A"}
	c := SelectCalls(tgt, rowtx.New())
	call := func() expr.Node { return expr.Invoke(expr.Col(a, "f"), expr.Col(a, "x")) }
	out := expr.Rewrite(c, expr.Mul(call(), call()))
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	if len(tgt.projected) != 1 {
		t.Errorf("identical calls compiled %d times", len(tgt.projected))
	}
	bin := out.(*expr.Binary)
	if bin.Left != bin.Right {
		t.Errorf("got %s", expr.ToString(out))
	}
}

func TestSelectCallsReturnType(t *testing.T) {
	a := newRel("A", "f")
	tgt := &fakeTarget{name: "A"}
	g := rowtx.New()
	c := SelectCalls(tgt, g)
	c.Hint = expr.HintFn(func(n expr.Node) expr.TypeSet {
		return expr.MethodOf(expr.IntType)
	})
	expr.Rewrite(c, expr.Invoke(expr.Col(a, "f")))
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	if len(tgt.applied) != 1 || tgt.applied[0].Returns != expr.IntType || tgt.applied[0].Arity != 0 {
		t.Fatalf("applied %v", tgt.applied)
	}
	want, err := g.Generate(0, expr.IntType)
	if err != nil {
		t.Fatal(err)
	}
	if tgt.applied[0] != want {
		t.Error("operator was not taken from the generator cache")
	}
}

func TestSelectCallsMismatch(t *testing.T) {
	a := newRel("A", "f", "x", "y")
	tgt := &fakeTarget{name: "A"}
	c := SelectCalls(tgt, rowtx.New(rowtx.WithMaxArity(1)))
	in := expr.Invoke(expr.Col(a, "f"), expr.Col(a, "x"), expr.Col(a, "y"))
	out := expr.Rewrite(c, in)
	if !errors.Is(c.Err(), rowtx.ErrMismatch) {
		t.Fatalf("got %v", c.Err())
	}
	if out != expr.Node(in) {
		t.Error("failed call was replaced")
	}
	if len(tgt.projected) != 0 {
		t.Error("projected an input for a failed call")
	}

	boom := errors.New("boom")
	c = SelectCalls(&fakeTarget{fail: boom}, rowtx.New())
	expr.Rewrite(c, expr.Invoke(expr.Col(a, "f")))
	if !errors.Is(c.Err(), boom) {
		t.Errorf("got %v", c.Err())
	}
}

func TestReduceCalls(t *testing.T) {
	a := newRel("A", "f", "x", "h", "k")
	grp, src := &fakeTarget{name: "grp"}, &fakeTarget{name: "src"}
	r := ReduceCallsOf(grp, src, rowtx.New())
	n := expr.Add(
		expr.Reduce(expr.ReduceSum, expr.Invoke(expr.Col(a, "f"), expr.Col(a, "x"))),
		expr.Invoke(expr.Col(a, "h"), expr.Col(a, "k")),
	)
	out := expr.Rewrite(r, n)
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	if got := expr.ToString(out); got != "(SUM(src_in1_out.result) + grp_in1_out.result)" {
		t.Fatalf("got %s", got)
	}
	if len(src.projected) != 1 || len(grp.projected) != 1 {
		t.Fatalf("projected %d before and %d after aggregation", len(src.projected), len(grp.projected))
	}
	if got := expr.ToString(src.projected[0][0].Expr); got != "A.f" {
		t.Errorf("source method column is %s", got)
	}
	if got := expr.ToString(grp.projected[0][0].Expr); got != "A.h" {
		t.Errorf("grouped method column is %s", got)
	}
}
