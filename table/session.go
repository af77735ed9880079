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

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

// Session holds the state shared by
// the relations of one or more graphs.
// A Session may be used concurrently.
type Session struct {
	logger      log.Logger
	gen         *rowtx.Generator
	compression plan.Compression
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger of the session.
func WithLogger(l log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithGenerator sets the generator used to
// compile inline calls. The default is rowtx.Default.
func WithGenerator(g *rowtx.Generator) Option {
	return func(s *Session) { s.gen = g }
}

// WithCompression sets the compression
// used by Session.Encode.
func WithCompression(c plan.Compression) Option {
	return func(s *Session) { s.compression = c }
}

// NewSession returns a new Session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		logger:      log.NewNopLogger(),
		gen:         rowtx.Default,
		compression: plan.Zstd,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Column describes a column of an input relation.
// A zero Type means the column may hold any value.
type Column struct {
	Name string
	Type expr.TypeSet
}

// Input returns a new leaf relation.
func (s *Session) Input(name string, cols ...Column) (*Table, error) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Name == desugar.IDColumn {
			return nil, fmt.Errorf("input %s: %w", name, &desugar.ReservedNameError{Name: c.Name})
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("input %s: %w", name, &desugar.DuplicateNameError{Name: c.Name})
		}
		seen[c.Name] = true
	}
	cols = append([]Column(nil), cols...)
	for i := range cols {
		if cols[i].Type == 0 {
			cols[i].Type = expr.AnyType
		}
	}
	t := s.newTable(name, cols)
	t.op = &plan.Op{Kind: plan.Input, Output: t}
	level.Debug(s.logger).Log("msg", "created input", "table", name, "columns", len(cols))
	return t, nil
}

func (s *Session) newTable(name string, cols []Column) *Table {
	return &Table{
		id:      uuid.New(),
		name:    name,
		session: s,
		columns: cols,
	}
}

// Plan returns the graph of operations t depends on.
func (s *Session) Plan(t *Table) (*plan.Graph, error) {
	return plan.Build(t)
}

// Encode returns the engine envelope
// for the graph computing t.
func (s *Session) Encode(t *Table) ([]byte, error) {
	g, err := s.Plan(t)
	if err != nil {
		return nil, err
	}
	buf, err := plan.Encode(g, s.compression)
	if err != nil {
		return nil, err
	}
	level.Debug(s.logger).Log("msg", "encoded plan", "table", t.name, "ops", len(g.Ops), "bytes", len(buf))
	return buf, nil
}

// apply records a run of op over input
func (s *Session) apply(op *rowtx.Operator, input expr.Relation) (*Table, error) {
	in, ok := input.(*Table)
	if !ok || in.session != s {
		return nil, fmt.Errorf("apply %s: input %s does not belong to this session", op, input)
	}
	for _, name := range op.Inputs() {
		if !in.has(name) {
			return nil, fmt.Errorf("apply %s: input %s has no column %q", op, in, name)
		}
	}
	out := s.newTable(in.name+"/"+op.Name,
		[]Column{{Name: rowtx.ResultColumn, Type: op.Returns}})
	out.op = &plan.Op{
		Kind:     plan.Apply,
		Output:   out,
		Inputs:   []expr.Relation{in},
		Operator: op,
	}
	return out, nil
}
