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
	"strings"
)

// TypeSet is a set of types that
// an expression could evaluate to.
//
// The low 16 bits hold value types.
// When MethodType is set, the high 16 bits
// hold the set of types the method returns.
type TypeSet uint32

const (
	NoneType TypeSet = 1 << iota
	BoolType
	IntType
	FloatType
	StringType
	PointerType
	// MethodType is the type of columns
	// that hold callable methods
	MethodType

	// NumericType is the return type
	// of number operations
	NumericType = IntType | FloatType
	// AnyType is the TypeSet that
	// contains all value types.
	AnyType = NoneType | BoolType | IntType | FloatType | StringType | PointerType

	valueMask  TypeSet = 0xffff
	returnBits         = 16
)

// MethodOf returns the type of a
// method column returning ret.
func MethodOf(ret TypeSet) TypeSet {
	return MethodType | (ret&valueMask)<<returnBits
}

// Returns returns the type produced by
// calling a method of type t, or 0 if t
// is not exclusively a method type.
func (t TypeSet) Returns() TypeSet {
	if t&valueMask != MethodType {
		return 0
	}
	return t >> returnBits
}

// Only returns whether or not t
// contains only the types in set.
func (t TypeSet) Only(set TypeSet) bool {
	return (t &^ set) == 0
}

// Contains returns whether t includes all of set.
func (t TypeSet) Contains(set TypeSet) bool {
	return t&set == set
}

// Optional returns t extended with NoneType.
func (t TypeSet) Optional() TypeSet { return t | NoneType }

// Required returns t without NoneType.
func (t TypeSet) Required() TypeSet { return t &^ NoneType }

var typeNames = []struct {
	t    TypeSet
	name string
}{
	{BoolType, "bool"},
	{IntType, "int"},
	{FloatType, "float"},
	{StringType, "str"},
	{PointerType, "pointer"},
}

func (t TypeSet) String() string {
	if t == 0 {
		return "empty"
	}
	if t.Contains(MethodType) {
		return "method -> " + t.Returns().String()
	}
	if t.Contains(AnyType) {
		return "any"
	}
	if t == NoneType {
		return "none"
	}
	var parts []string
	for _, tn := range typeNames {
		if t&tn.t != 0 {
			parts = append(parts, tn.name)
		}
	}
	s := strings.Join(parts, "|")
	if t&NoneType != 0 {
		if len(parts) > 1 {
			s = "(" + s + ")"
		}
		s += "?"
	}
	return s
}

// Hint is an argument that can be
// supplied to type inference to refine
// the type of columns that would otherwise
// be unknown.
type Hint interface {
	TypeOf(e Node) TypeSet
}

// HintFn is a function that implements Hint
type HintFn func(Node) TypeSet

func (h HintFn) TypeOf(e Node) TypeSet {
	return h(e)
}

// NoHint is the empty Hint
func NoHint(Node) TypeSet {
	return AnyType
}

// Typed is implemented by relations
// that know the types of their columns.
type Typed interface {
	TypeOf(column string) TypeSet
}

// TypeOf attempts to return the set
// of types that a node could evaluate
// to at runtime.
func TypeOf(n Node, h Hint) TypeSet {
	if h == nil {
		h = HintFn(NoHint)
	}
	switch n := n.(type) {
	case *Column:
		if t, ok := n.Table.(Typed); ok {
			return t.TypeOf(n.Name)
		}
		return h.TypeOf(n)
	case *Const:
		return constType(n.Value)
	case *Ix:
		t := TypeOf(n.Base, h)
		if n.Optional {
			t = t.Optional()
		}
		return t
	case *Require:
		return TypeOf(n.Value, h).Optional()
	case *Reducer:
		return reducerType(n, h)
	case *Method:
		if n.Returns == nil {
			return AnyType
		}
		args := make([]TypeSet, len(n.Args))
		for i := range n.Args {
			args[i] = TypeOf(n.Args[i], h)
		}
		return n.Returns(args)
	case *Call:
		if ret := TypeOf(n.Callee, h).Returns(); ret != 0 {
			return ret
		}
		return AnyType
	case *Pointer:
		if n.Optional {
			return PointerType.Optional()
		}
		return PointerType
	case *Binary:
		return binaryType(n, h)
	}
	return AnyType
}

func constType(v any) TypeSet {
	switch v.(type) {
	case nil:
		return NoneType
	case bool:
		return BoolType
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return IntType
	case float32, float64:
		return FloatType
	case string:
		return StringType
	}
	return AnyType
}

func reducerType(r *Reducer, h Hint) TypeSet {
	if r.Op == ReduceCount {
		return IntType
	}
	if len(r.Args) == 0 {
		return AnyType
	}
	arg := TypeOf(r.Args[0], h)
	switch r.Op {
	case ReduceSum:
		if t := arg.Required() & NumericType; t != 0 {
			return t
		}
		return NumericType
	case ReduceMin, ReduceMax, ReduceAny, ReduceUnique:
		return arg
	case ReduceArgMin, ReduceArgMax:
		return PointerType
	}
	return AnyType
}

func binaryType(b *Binary, h Hint) TypeSet {
	if b.Op.comparison() || b.Op.logical() {
		return BoolType
	}
	l, r := TypeOf(b.Left, h), TypeOf(b.Right, h)
	var out TypeSet
	lr, rr := l.Required(), r.Required()
	if lr == 0 || rr == 0 {
		// arithmetic on null is null
		return NoneType
	}
	switch {
	case b.Op == OpAdd && lr == StringType && rr == StringType:
		out = StringType
	case b.Op == OpDiv && lr.Only(NumericType) && rr.Only(NumericType):
		out = FloatType
	case lr == IntType && rr == IntType:
		out = IntType
	case lr.Only(NumericType) && rr.Only(NumericType):
		out = FloatType
	default:
		return AnyType
	}
	if (l|r)&NoneType != 0 {
		out = out.Optional()
	}
	return out
}
