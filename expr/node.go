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

package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Visitor is an interface that must
// be satisfied by the argument to Visit.
//
// A Visitor's Visit method is invoked for each node encountered by Walk. If
// the result visitor w is not nil, Walk visits each of the children of node
// with the visitor w, followed by a call of w.Visit(nil).
//
// (see also: ast.Visitor)
type Visitor interface {
	Visit(Node) Visitor
}

// Rewriter accepts a Node and returns
// a new node (or just its argument)
type Rewriter interface {
	// Rewrite is applied to nodes
	// in depth-first order, and each
	// node is re-written to use the
	// returned value.
	Rewrite(Node) Node

	// Walk is called during node traversal
	// and the returned Rewriter is used for
	// all the children of Node.
	// If the returned rewriter is nil,
	// then traversal does not proceed past Node.
	Walk(Node) Rewriter
}

type nonleaf interface {
	rewrite(r Rewriter) Node
}

// Rewrite recursively applies a Rewriter in depth-first order.
//
// The children of n are rewritten first and
// n is rebuilt from the rewritten children
// before r.Rewrite is applied to it. The input
// tree is never modified.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	nl, ok := n.(nonleaf)
	if ok {
		rc := r.Walk(n)
		if rc != nil {
			n = nl.rewrite(rc)
		}
	}
	n = r.Rewrite(n)
	return n
}

// Walk traverses an AST in depth-first order: It starts by calling
// v.Visit(node); node must not be nil. If the visitor w returned by
// v.Visit(node) is not nil, Walk is invoked recursively with visitor w for
// each of the non-nil children of node, followed by a call of w.Visit(nil).
//
// (see also: ast.Walk)
func Walk(v Visitor, n Node) {
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

// rewriteList rewrites each element of lst
// and returns the original slice if nothing changed
func rewriteList(r Rewriter, lst []Node) ([]Node, bool) {
	var out []Node
	for i := range lst {
		n := Rewrite(r, lst[i])
		if out == nil && n != lst[i] {
			out = make([]Node, len(lst))
			copy(out, lst[:i])
		}
		if out != nil {
			out[i] = n
		}
	}
	if out == nil {
		return lst, false
	}
	return out, true
}

func walkList(v Visitor, lst []Node) {
	for i := range lst {
		Walk(v, lst[i])
	}
}

// Printable is the interface satisfied
// by anything that has a textual representation
// in expression syntax.
type Printable interface {
	text(dst *strings.Builder)
}

// ToString returns the string
// representation of this AST node
// and its children.
func ToString(p Printable) string {
	if p == nil {
		return "<nil>"
	}
	var dst strings.Builder
	p.text(&dst)
	return dst.String()
}

// Node is an expression AST node
type Node interface {
	Printable
	// Equals returns whether this node
	// is structurally equivalent to another node.
	// Owning relations are compared by identity.
	Equals(Node) bool

	walk(Visitor)
}

// Equal returns whether a and b are equivalent.
// a or b may be nil.
func Equal(a, b Node) bool {
	if a == nil {
		return b == nil
	}
	return b != nil && a.Equals(b)
}

// Source is the owner of a column.
// A Source is either a concrete Relation
// or a *This placeholder that must be
// resolved before the expression is evaluated.
//
// Sources are compared by identity.
type Source interface {
	fmt.Stringer
}

// Relation is an identity-bearing
// handle to a columnar dataset.
type Relation interface {
	Source
	// ID is the unique identity of the relation.
	ID() uuid.UUID
	// Columns returns the names of the
	// columns of the relation in order.
	Columns() []string
}

// This is a symbolic self-reference.
// It stands for the relation an expression
// is evaluated against and is bound to
// one only for the duration of a single call.
type This struct {
	name string
}

// Self is the default self-reference token.
var Self = NewThis("this")

// NewThis returns a new scope token
// distinct from every other token.
func NewThis(name string) *This {
	return &This{name: name}
}

func (t *This) String() string { return t.name }

// Col returns a reference to the column
// name of whatever relation t is bound to.
func (t *This) Col(name string) *Column {
	return &Column{Table: t, Name: name}
}

// Spread returns a spread over the columns
// of the relation t is bound to, omitting
// the columns in without.
func (t *This) Spread(without ...string) *Spread {
	return &Spread{Scope: t, Without: without}
}

// Spread is an argument, not a Node, that
// expands to one column reference per column
// of the relation its scope resolves to.
type Spread struct {
	Scope   *This
	Without []string
}

func (s *Spread) String() string {
	if len(s.Without) == 0 {
		return "*" + s.Scope.String()
	}
	return "*" + s.Scope.String() + ".without(" + strings.Join(s.Without, ", ") + ")"
}

// Column is a reference to the column
// Name of the relation Table.
type Column struct {
	Table Source
	Name  string
}

// Col returns a reference to a column of t.
func Col(t Source, name string) *Column {
	return &Column{Table: t, Name: name}
}

func (c *Column) text(dst *strings.Builder) {
	dst.WriteString(c.Table.String())
	dst.WriteByte('.')
	dst.WriteString(c.Name)
}

func (c *Column) Equals(e Node) bool {
	ec, ok := e.(*Column)
	return ok && ec.Table == c.Table && ec.Name == c.Name
}

func (c *Column) walk(v Visitor) {}

// Const is a literal value.
// A Const with a nil Value is the null constant.
type Const struct {
	Value any
}

// Lit returns a constant holding v.
func Lit(v any) *Const { return &Const{Value: v} }

// Null returns the null constant.
func Null() *Const { return &Const{} }

// IsNull returns whether n is the null constant.
func IsNull(n Node) bool {
	c, ok := n.(*Const)
	return ok && c.Value == nil
}

// Lift returns v if it is a Node
// and a constant holding v otherwise.
func Lift(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	return Lit(v)
}

func (c *Const) text(dst *strings.Builder) {
	switch v := c.Value.(type) {
	case nil:
		dst.WriteString("NULL")
	case string:
		dst.WriteString(strconv.Quote(v))
	case bool:
		if v {
			dst.WriteString("TRUE")
		} else {
			dst.WriteString("FALSE")
		}
	default:
		fmt.Fprint(dst, v)
	}
}

func (c *Const) Equals(e Node) bool {
	ec, ok := e.(*Const)
	return ok && reflect.DeepEqual(c.Value, ec.Value)
}

func (c *Const) walk(v Visitor) {}

// Ix is a lookup into Base at the row
// identified by Keys. If Optional is set,
// a missing row produces null rather than
// an error.
type Ix struct {
	Base     Node
	Keys     Node
	Optional bool
}

// Index returns an indexed lookup of base by keys.
func Index(base Node, keys any, optional bool) *Ix {
	return &Ix{Base: base, Keys: Lift(keys), Optional: optional}
}

func (i *Ix) text(dst *strings.Builder) {
	i.Base.text(dst)
	dst.WriteByte('[')
	i.Keys.text(dst)
	dst.WriteByte(']')
	if i.Optional {
		dst.WriteByte('?')
	}
}

func (i *Ix) Equals(e Node) bool {
	ei, ok := e.(*Ix)
	return ok && ei.Optional == i.Optional &&
		i.Base.Equals(ei.Base) && i.Keys.Equals(ei.Keys)
}

func (i *Ix) walk(v Visitor) {
	Walk(v, i.Base)
	Walk(v, i.Keys)
}

func (i *Ix) rewrite(r Rewriter) Node {
	base := Rewrite(r, i.Base)
	keys := Rewrite(r, i.Keys)
	if base == i.Base && keys == i.Keys {
		return i
	}
	return &Ix{Base: base, Keys: keys, Optional: i.Optional}
}

// Require evaluates to null if any
// of Guards evaluates to null, and
// to Value otherwise.
type Require struct {
	Value  Node
	Guards []Node
}

// Requires returns a Require expression.
func Requires(value any, guards ...any) *Require {
	r := &Require{Value: Lift(value), Guards: make([]Node, len(guards))}
	for i := range guards {
		r.Guards[i] = Lift(guards[i])
	}
	return r
}

func (r *Require) text(dst *strings.Builder) {
	dst.WriteString("REQUIRE(")
	r.Value.text(dst)
	for i := range r.Guards {
		dst.WriteString(", ")
		r.Guards[i].text(dst)
	}
	dst.WriteByte(')')
}

func (r *Require) Equals(e Node) bool {
	er, ok := e.(*Require)
	return ok && r.Value.Equals(er.Value) && slices.EqualFunc(r.Guards, er.Guards, Equal)
}

func (r *Require) walk(v Visitor) {
	Walk(v, r.Value)
	walkList(v, r.Guards)
}

func (r *Require) rewrite(rw Rewriter) Node {
	val := Rewrite(rw, r.Value)
	guards, changed := rewriteList(rw, r.Guards)
	if !changed && val == r.Value {
		return r
	}
	return &Require{Value: val, Guards: guards}
}

// ReduceOp is one of the reduction operations
type ReduceOp int

const (
	// ReduceNone is the zero value; it
	// is not a valid reduction
	ReduceNone ReduceOp = iota
	ReduceCount
	ReduceSum
	ReduceMin
	ReduceMax
	// ReduceArgMin produces the row pointer
	// of the minimal argument
	ReduceArgMin
	// ReduceArgMax produces the row pointer
	// of the maximal argument
	ReduceArgMax
	// ReduceAny picks an arbitrary value
	ReduceAny
	// ReduceUnique requires all the values
	// in the group to be equal
	ReduceUnique
	ReduceTuple
	ReduceSortedTuple
)

func (o ReduceOp) String() string {
	switch o {
	case ReduceCount:
		return "COUNT"
	case ReduceSum:
		return "SUM"
	case ReduceMin:
		return "MIN"
	case ReduceMax:
		return "MAX"
	case ReduceArgMin:
		return "ARGMIN"
	case ReduceArgMax:
		return "ARGMAX"
	case ReduceAny:
		return "ANY"
	case ReduceUnique:
		return "UNIQUE"
	case ReduceTuple:
		return "TUPLE"
	case ReduceSortedTuple:
		return "SORTED_TUPLE"
	default:
		return "none"
	}
}

// Reducer is an aggregation over
// the rows of a group.
type Reducer struct {
	Op   ReduceOp
	Args []Node
}

// Reduce returns a reducer expression.
func Reduce(op ReduceOp, args ...any) *Reducer {
	r := &Reducer{Op: op, Args: make([]Node, len(args))}
	for i := range args {
		r.Args[i] = Lift(args[i])
	}
	return r
}

func (r *Reducer) text(dst *strings.Builder) {
	dst.WriteString(r.Op.String())
	textArgs(dst, r.Args)
}

func (r *Reducer) Equals(e Node) bool {
	er, ok := e.(*Reducer)
	return ok && er.Op == r.Op && slices.EqualFunc(r.Args, er.Args, Equal)
}

func (r *Reducer) walk(v Visitor) { walkList(v, r.Args) }

func (r *Reducer) rewrite(rw Rewriter) Node {
	args, changed := rewriteList(rw, r.Args)
	if !changed {
		return r
	}
	return &Reducer{Op: r.Op, Args: args}
}

// Method is a statically-dispatched
// scalar operation. Dispatch maps the
// argument type to the name of the
// implementation the engine should run,
// and Returns computes the result type
// from the argument types.
type Method struct {
	Op       string
	Dispatch map[TypeSet]string
	Returns  func(args []TypeSet) TypeSet
	Args     []Node
}

func (m *Method) text(dst *strings.Builder) {
	dst.WriteString(m.Op)
	textArgs(dst, m.Args)
}

// Equals compares the operation name and
// arguments; the dispatch table is assumed
// to be a function of the name.
func (m *Method) Equals(e Node) bool {
	em, ok := e.(*Method)
	return ok && em.Op == m.Op && slices.EqualFunc(m.Args, em.Args, Equal)
}

func (m *Method) walk(v Visitor) { walkList(v, m.Args) }

func (m *Method) rewrite(r Rewriter) Node {
	args, changed := rewriteList(r, m.Args)
	if !changed {
		return m
	}
	return &Method{Op: m.Op, Dispatch: m.Dispatch, Returns: m.Returns, Args: args}
}

// Call is an inline per-row invocation
// of the method produced by Callee.
// Calls are compiled into generated
// operators before evaluation.
type Call struct {
	Callee Node
	Args   []Node
}

// Invoke returns a call of callee with args.
func Invoke(callee Node, args ...any) *Call {
	c := &Call{Callee: callee, Args: make([]Node, len(args))}
	for i := range args {
		c.Args[i] = Lift(args[i])
	}
	return c
}

func (c *Call) text(dst *strings.Builder) {
	c.Callee.text(dst)
	textArgs(dst, c.Args)
}

func (c *Call) Equals(e Node) bool {
	ec, ok := e.(*Call)
	return ok && c.Callee.Equals(ec.Callee) && slices.EqualFunc(c.Args, ec.Args, Equal)
}

func (c *Call) walk(v Visitor) {
	Walk(v, c.Callee)
	walkList(v, c.Args)
}

func (c *Call) rewrite(r Rewriter) Node {
	callee := Rewrite(r, c.Callee)
	args, changed := rewriteList(r, c.Args)
	if !changed && callee == c.Callee {
		return c
	}
	return &Call{Callee: callee, Args: args}
}

// Pointer constructs a row identity
// in Table from the values of Args.
type Pointer struct {
	Table    Source
	Args     []Node
	Optional bool
}

// PointerFrom returns a pointer expression.
func PointerFrom(t Source, optional bool, args ...any) *Pointer {
	p := &Pointer{Table: t, Optional: optional, Args: make([]Node, len(args))}
	for i := range args {
		p.Args[i] = Lift(args[i])
	}
	return p
}

func (p *Pointer) text(dst *strings.Builder) {
	dst.WriteString(p.Table.String())
	dst.WriteString(".pointer_from")
	textArgs(dst, p.Args)
	if p.Optional {
		dst.WriteByte('?')
	}
}

func (p *Pointer) Equals(e Node) bool {
	ep, ok := e.(*Pointer)
	return ok && ep.Table == p.Table && ep.Optional == p.Optional &&
		slices.EqualFunc(p.Args, ep.Args, Equal)
}

func (p *Pointer) walk(v Visitor) { walkList(v, p.Args) }

func (p *Pointer) rewrite(r Rewriter) Node {
	args, changed := rewriteList(r, p.Args)
	if !changed {
		return p
	}
	return &Pointer{Table: p.Table, Args: args, Optional: p.Optional}
}

// BinaryOp is a binary operator
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

func (o BinaryOp) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "?"
	}
}

func (o BinaryOp) comparison() bool {
	return o >= OpEq && o <= OpGe
}

func (o BinaryOp) logical() bool {
	return o == OpAnd || o == OpOr
}

// Binary is an arithmetic, comparison,
// or logical operation on two expressions.
type Binary struct {
	Op          BinaryOp
	Left, Right Node
}

// Apply returns left op right.
// Non-Node operands are lifted into constants.
func Apply(op BinaryOp, left, right any) *Binary {
	return &Binary{Op: op, Left: Lift(left), Right: Lift(right)}
}

func Add(left, right any) *Binary { return Apply(OpAdd, left, right) }
func Sub(left, right any) *Binary { return Apply(OpSub, left, right) }
func Mul(left, right any) *Binary { return Apply(OpMul, left, right) }
func Div(left, right any) *Binary { return Apply(OpDiv, left, right) }

// Compare returns a comparison of left and right.
func Compare(op BinaryOp, left, right any) *Binary {
	if !op.comparison() {
		panic("expr.Compare: " + op.String() + " is not a comparison")
	}
	return Apply(op, left, right)
}

func And(left, right any) *Binary { return Apply(OpAnd, left, right) }
func Or(left, right any) *Binary  { return Apply(OpOr, left, right) }

func (b *Binary) text(dst *strings.Builder) {
	dst.WriteByte('(')
	b.Left.text(dst)
	dst.WriteByte(' ')
	dst.WriteString(b.Op.String())
	dst.WriteByte(' ')
	b.Right.text(dst)
	dst.WriteByte(')')
}

func (b *Binary) Equals(e Node) bool {
	eb, ok := e.(*Binary)
	return ok && eb.Op == b.Op && b.Left.Equals(eb.Left) && b.Right.Equals(eb.Right)
}

func (b *Binary) walk(v Visitor) {
	Walk(v, b.Left)
	Walk(v, b.Right)
}

func (b *Binary) rewrite(r Rewriter) Node {
	left := Rewrite(r, b.Left)
	right := Rewrite(r, b.Right)
	if left == b.Left && right == b.Right {
		return b
	}
	return &Binary{Op: b.Op, Left: left, Right: right}
}

func textArgs(dst *strings.Builder, args []Node) {
	dst.WriteByte('(')
	for i := range args {
		if i > 0 {
			dst.WriteString(", ")
		}
		args[i].text(dst)
	}
	dst.WriteByte(')')
}

// SmartName returns the name an expression
// gets when it is used as a positional argument,
// or "" if the expression has no canonical name.
func SmartName(n Node) string {
	switch n := n.(type) {
	case *Column:
		return n.Name
	case *Ix:
		return SmartName(n.Base)
	case *Reducer:
		if (n.Op == ReduceAny || n.Op == ReduceUnique) && len(n.Args) == 1 {
			return SmartName(n.Args[0])
		}
	}
	return ""
}

// Binding is an expression bound
// to an output column name.
type Binding struct {
	Expr Node
	As   string
}

// Bind creates a binding from an expression
// and an output column name.
func Bind(e Node, as string) Binding {
	return Binding{Expr: e, As: as}
}

func (b Binding) String() string {
	return ToString(b.Expr) + " AS " + b.As
}
