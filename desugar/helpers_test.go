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

	"github.com/google/uuid"
)

type testRel struct {
	name string
	id   uuid.UUID
	cols []string
}

func newRel(name string, cols ...string) *testRel {
	return &testRel{name: name, id: uuid.New(), cols: cols}
}

func (r *testRel) String() string    { return r.name }
func (r *testRel) ID() uuid.UUID     { return r.id }
func (r *testRel) Columns() []string { return r.cols }

// ctxRel is a relation that is also a Context
type ctxRel struct {
	*testRel
	rw func(self *ctxRel) expr.Pipeline
}

func newCtx(name string, cols ...string) *ctxRel {
	return &ctxRel{testRel: newRel(name, cols...)}
}

func (c *ctxRel) Scope() Scope { return Scope{expr.Self: c} }

func (c *ctxRel) Rewriters() expr.Pipeline {
	if c.rw == nil {
		return nil
	}
	return c.rw(c)
}

type aliasOf struct {
	target expr.Source
}

func (a *aliasOf) Alias() expr.Source { return a.target }

// fakeTarget records the relations
// that call compilation asks for
type fakeTarget struct {
	name      string
	projected [][]expr.Binding
	applied   []*rowtx.Operator
	fail      error
}

func (f *fakeTarget) Project(b []expr.Binding) (expr.Relation, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.projected = append(f.projected, b)
	names := make([]string, len(b))
	for i := range b {
		names[i] = b[i].As
	}
	return newRel(fmt.Sprintf("%s_in%d", f.name, len(f.projected)), names...), nil
}

func (f *fakeTarget) Apply(op *rowtx.Operator, in expr.Relation) (expr.Relation, error) {
	f.applied = append(f.applied, op)
	return newRel(in.String()+"_out", rowtx.ResultColumn), nil
}
