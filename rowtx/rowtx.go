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

// Package rowtx generates the operators
// that execute inline method calls.
//
// A row transformer takes an input relation
// with a method column and the argument
// columns arg_0 through arg_{n-1}, invokes
// the method on every row, and emits a relation
// with a single result column. Operators are
// keyed by arity and return type and are
// cached process-wide, so the same signature
// always produces the same *Operator.
package rowtx

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/SnellerInc/relflow/expr"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

const (
	// MethodColumn is the input column
	// holding the method to invoke.
	MethodColumn = "method"
	// ResultColumn is the only output column.
	ResultColumn = "result"

	// DefaultMaxArity is the largest
	// number of arguments a generator
	// accepts unless configured otherwise.
	DefaultMaxArity = 16
)

// ArgName returns the name of the
// input column holding argument i.
func ArgName(i int) string {
	return "arg_" + strconv.Itoa(i)
}

// ErrMismatch is matched by every
// *MismatchError via errors.Is.
var ErrMismatch = errors.New("rowtx: unsupported operator signature")

// MismatchError is returned when an
// operator is requested for an arity
// or return type the generator cannot
// produce.
type MismatchError struct {
	Arity   int
	Returns expr.TypeSet
	Msg     string
}

func (m *MismatchError) Error() string {
	return fmt.Sprintf("rowtx: cannot generate operator for %d argument(s) returning %s: %s",
		m.Arity, m.Returns, m.Msg)
}

func (m *MismatchError) Is(err error) bool {
	return err == ErrMismatch
}

// Key identifies an operator signature.
type Key struct {
	Arity   int
	Returns expr.TypeSet
}

func (k Key) String() string {
	return strconv.Itoa(k.Arity) + ":" + strconv.FormatUint(uint64(k.Returns), 16)
}

// Operator is a generated row transformer.
type Operator struct {
	Arity   int
	Returns expr.TypeSet
	// Name is the name under which
	// the engine knows the operator.
	Name string
}

// Inputs returns the columns the
// input relation of o must provide.
func (o *Operator) Inputs() []string {
	out := make([]string, 0, o.Arity+1)
	out = append(out, MethodColumn)
	for i := 0; i < o.Arity; i++ {
		out = append(out, ArgName(i))
	}
	return out
}

func (o *Operator) String() string { return o.Name }

type metrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	mismatches prometheus.Counter
}

func newMetrics(r prometheus.Registerer) *metrics {
	f := promauto.With(r)
	return &metrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "relflow",
			Subsystem: "rowtx",
			Name:      "cache_hits_total",
			Help:      "Number of operator requests served from the cache.",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "relflow",
			Subsystem: "rowtx",
			Name:      "cache_misses_total",
			Help:      "Number of operators generated.",
		}),
		mismatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: "relflow",
			Subsystem: "rowtx",
			Name:      "mismatches_total",
			Help:      "Number of operator requests for unsupported signatures.",
		}),
	}
}

// Generator produces and caches
// row transformers. A Generator is
// safe for concurrent use.
type Generator struct {
	maxArity int
	logger   log.Logger
	reg      prometheus.Registerer
	metrics  *metrics

	ops   sync.Map // Key -> *Operator
	count atomic.Int64
	group singleflight.Group
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxArity sets the largest supported arity.
func WithMaxArity(n int) Option {
	return func(g *Generator) { g.maxArity = n }
}

// WithLogger sets the logger used
// to report generated operators.
func WithLogger(l log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithRegisterer registers the generator
// metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(g *Generator) { g.reg = r }
}

// New returns a new Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		maxArity: DefaultMaxArity,
		logger:   log.NewNopLogger(),
	}
	for _, o := range opts {
		o(g)
	}
	g.metrics = newMetrics(g.reg)
	return g
}

// Default is the process-wide Generator.
var Default = New()

func (g *Generator) check(k Key) error {
	mismatch := func(msg string) error {
		return &MismatchError{Arity: k.Arity, Returns: k.Returns, Msg: msg}
	}
	if k.Arity < 0 {
		return mismatch("negative arity")
	}
	if k.Arity > g.maxArity {
		return mismatch(fmt.Sprintf("arity exceeds the maximum of %d", g.maxArity))
	}
	if k.Returns == 0 {
		return mismatch("empty return type")
	}
	if !k.Returns.Only(expr.AnyType) {
		return mismatch("methods cannot return methods")
	}
	if k.Returns == expr.AnyType {
		return nil
	}
	// one value type, optionally nullable
	r := k.Returns.Required()
	if r&(r-1) != 0 {
		return mismatch("return type must be a single type or any")
	}
	return nil
}

// Generate returns the operator for
// the given arity and return type,
// generating it on first use.
//
// Concurrent requests for the same signature
// that miss the cache construct exactly one
// operator, which all of them receive.
func (g *Generator) Generate(arity int, ret expr.TypeSet) (*Operator, error) {
	k := Key{Arity: arity, Returns: ret}
	if op, ok := g.ops.Load(k); ok {
		g.metrics.hits.Inc()
		return op.(*Operator), nil
	}
	if err := g.check(k); err != nil {
		g.metrics.mismatches.Inc()
		return nil, err
	}
	// callers that join an in-flight generation
	// are counted as hits once it completes
	ran := false
	v, err, _ := g.group.Do(k.String(), func() (any, error) {
		ran = true
		if op, ok := g.ops.Load(k); ok {
			g.metrics.hits.Inc()
			return op, nil
		}
		op := &Operator{
			Arity:   arity,
			Returns: ret,
			Name:    fmt.Sprintf("method_call_%d_%s", arity, ret),
		}
		g.ops.Store(k, op)
		g.count.Add(1)
		g.metrics.misses.Inc()
		level.Debug(g.logger).Log("msg", "generated row transformer", "operator", op.Name)
		return op, nil
	})
	if err != nil {
		return nil, err
	}
	if !ran {
		g.metrics.hits.Inc()
	}
	return v.(*Operator), nil
}

// Len returns the number of cached operators.
func (g *Generator) Len() int {
	return int(g.count.Load())
}
