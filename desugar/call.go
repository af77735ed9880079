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
	"github.com/SnellerInc/relflow/rowtx"
)

// Target is a relation that inline calls
// are compiled against.
type Target interface {
	// Project returns a new relation computing
	// bindings against the target.
	Project(bindings []expr.Binding) (expr.Relation, error)
	// Apply returns the output relation
	// of running op over input.
	Apply(op *rowtx.Operator, input expr.Relation) (expr.Relation, error)
}

// Generator produces the row transformers
// that execute inline calls.
// *rowtx.Generator implements Generator.
type Generator interface {
	Generate(arity int, ret expr.TypeSet) (*rowtx.Operator, error)
}

type compiled struct {
	call *expr.Call
	out  *expr.Column
}

// Calls is a Rewriter that compiles every
// *expr.Call into a reference to the result
// column of a generated operator run over
// a relation projected from Target.
//
// Identical calls within one Calls rewriter
// are compiled once.
type Calls struct {
	Target    Target
	Generator Generator
	// Hint refines the inferred return type
	// of calls; it may be nil.
	Hint expr.Hint

	memo map[uint64][]compiled
	err  error
}

// SelectCalls returns a Calls rewriter
// compiling calls against t.
func SelectCalls(t Target, g Generator) *Calls {
	return &Calls{Target: t, Generator: g}
}

func (c *Calls) Walk(expr.Node) expr.Rewriter { return c }

func (c *Calls) Rewrite(n expr.Node) expr.Node {
	call, ok := n.(*expr.Call)
	if !ok || c.err != nil {
		return n
	}
	out, err := c.compile(call)
	if err != nil {
		c.err = err
		return n
	}
	return out
}

// Err returns the first compilation error.
func (c *Calls) Err() error { return c.err }

// compile expects the arguments and callee
// of call to have been rewritten already
func (c *Calls) compile(call *expr.Call) (*expr.Column, error) {
	h := expr.Fingerprint(call)
	for _, m := range c.memo[h] {
		if m.call.Equals(call) {
			return m.out, nil
		}
	}
	bindings := make([]expr.Binding, 0, len(call.Args)+1)
	bindings = append(bindings, expr.Bind(call.Callee, rowtx.MethodColumn))
	for i := range call.Args {
		bindings = append(bindings, expr.Bind(call.Args[i], rowtx.ArgName(i)))
	}
	ret := expr.TypeOf(call, c.Hint)
	op, err := c.Generator.Generate(len(call.Args), ret)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr.ToString(call), err)
	}
	input, err := c.Target.Project(bindings)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr.ToString(call), err)
	}
	output, err := c.Target.Apply(op, input)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr.ToString(call), err)
	}
	out := expr.Col(output, rowtx.ResultColumn)
	if c.memo == nil {
		c.memo = make(map[uint64][]compiled)
	}
	c.memo[h] = append(c.memo[h], compiled{call: call, out: out})
	return out, nil
}

// ReduceCalls is the aggregation flavor of Calls.
//
// Calls outside of reducers are compiled against
// the grouped relation. The arguments of each
// *expr.Reducer are compiled against Source, the
// relation before aggregation, so that a call can
// be evaluated per row and then reduced.
type ReduceCalls struct {
	*Calls
	Source *Calls
}

// ReduceCallsOf returns a ReduceCalls rewriter for
// the grouped relation grouped, whose rows come from source.
func ReduceCallsOf(grouped, source Target, g Generator) *ReduceCalls {
	return &ReduceCalls{
		Calls:  SelectCalls(grouped, g),
		Source: SelectCalls(source, g),
	}
}

func (r *ReduceCalls) Walk(n expr.Node) expr.Rewriter {
	if _, ok := n.(*expr.Reducer); ok {
		return r.Source
	}
	return r
}

// Err returns the first error of either flavor.
func (r *ReduceCalls) Err() error {
	if err := r.Calls.Err(); err != nil {
		return err
	}
	return r.Source.Err()
}
