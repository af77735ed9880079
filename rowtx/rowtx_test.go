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

package rowtx

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/SnellerInc/relflow/expr"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGenerateCached(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := New(WithRegisterer(reg))
	a, err := g.Generate(2, expr.IntType)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Generate(2, expr.IntType)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected the cached operator")
	}
	c, err := g.Generate(2, expr.IntType.Optional())
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Fatal("different return types share an operator")
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d", g.Len())
	}
	if n := testutil.ToFloat64(g.metrics.hits); n != 1 {
		t.Errorf("%v hits", n)
	}
	if n := testutil.ToFloat64(g.metrics.misses); n != 2 {
		t.Errorf("%v misses", n)
	}
	if n, err := testutil.GatherAndCount(reg, "relflow_rowtx_cache_misses_total"); err != nil || n != 1 {
		t.Errorf("gathered %d series: %v", n, err)
	}
}

func TestOperator(t *testing.T) {
	op, err := New().Generate(3, expr.AnyType)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"method", "arg_0", "arg_1", "arg_2"}
	if diff := cmp.Diff(want, op.Inputs()); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
	if op.String() != "method_call_3_any" {
		t.Errorf("name is %s", op)
	}
	op, err = New().Generate(0, expr.StringType)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"method"}, op.Inputs()); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
}

func TestGenerateMismatch(t *testing.T) {
	g := New(WithMaxArity(2))
	cases := []struct {
		arity int
		ret   expr.TypeSet
	}{
		{-1, expr.AnyType},
		{3, expr.AnyType},
		{1, 0},
		{1, expr.MethodOf(expr.IntType)},
		{1, expr.NumericType},
		{1, expr.NumericType.Optional()},
	}
	for _, c := range cases {
		op, err := g.Generate(c.arity, c.ret)
		if !errors.Is(err, ErrMismatch) {
			t.Errorf("Generate(%d, %s): got %v, %v", c.arity, c.ret, op, err)
			continue
		}
		var me *MismatchError
		if !errors.As(err, &me) || me.Arity != c.arity || me.Returns != c.ret {
			t.Errorf("Generate(%d, %s): got %v", c.arity, c.ret, err)
		}
	}
	if g.Len() != 0 {
		t.Errorf("cached %d operators", g.Len())
	}
	if n := testutil.ToFloat64(g.metrics.mismatches); n != float64(len(cases)) {
		t.Errorf("%v mismatches", n)
	}
	for _, ret := range []expr.TypeSet{expr.NoneType, expr.BoolType.Optional(), expr.PointerType} {
		if _, err := g.Generate(2, ret); err != nil {
			t.Errorf("Generate(2, %s): %v", ret, err)
		}
	}
}

func TestGenerateConcurrent(t *testing.T) {
	g := New()
	const n = 32
	ops := make([]*Operator, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op, err := g.Generate(4, expr.FloatType)
			if err != nil {
				t.Error(err)
				return
			}
			ops[i] = op
		}(i)
	}
	wg.Wait()
	for i := range ops {
		if ops[i] != ops[0] {
			t.Fatalf("request %d got a different operator", i)
		}
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d", g.Len())
	}
	misses := testutil.ToFloat64(g.metrics.misses)
	if misses != 1 {
		t.Errorf("generated %v operators", misses)
	}
	// every request is either a hit or a miss
	if hits := testutil.ToFloat64(g.metrics.hits); hits+misses != n {
		t.Errorf("%v hits + %v misses for %d requests", hits, misses, n)
	}
}

func TestGenerateLogs(t *testing.T) {
	var buf bytes.Buffer
	g := New(WithLogger(log.NewLogfmtLogger(&buf)))
	if _, err := g.Generate(1, expr.BoolType); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(1, expr.BoolType); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, "generated row transformer") != 1 {
		t.Errorf("got log output %q", out)
	}
	if !strings.Contains(out, "operator=method_call_1_bool") {
		t.Errorf("got log output %q", out)
	}
}

func TestKey(t *testing.T) {
	k := Key{Arity: 2, Returns: expr.IntType}
	if k.String() != "2:4" {
		t.Errorf("got %s", k)
	}
	if ArgName(10) != "arg_10" {
		t.Errorf("got %s", ArgName(10))
	}
}
