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
)

// Encoder converts expression trees
// into tagged trees of JSON-compatible
// values. Every node becomes a map with
// a "type" field naming the node kind.
type Encoder struct {
	// Source returns the wire name of
	// a column owner. If Source is nil,
	// relations are named by ID and
	// placeholders by their token name.
	Source func(Source) string
}

func (e *Encoder) source(s Source) string {
	if e.Source != nil {
		return e.Source(s)
	}
	if r, ok := s.(Relation); ok {
		return r.ID().String()
	}
	return "?" + s.String()
}

func settype(dst map[string]any, str string) map[string]any {
	dst["type"] = str
	return dst
}

func (e *Encoder) list(lst []Node) []any {
	out := make([]any, len(lst))
	for i := range lst {
		out[i] = e.Encode(lst[i])
	}
	return out
}

// Encode returns the tagged representation of n.
func (e *Encoder) Encode(n Node) any {
	switch n := n.(type) {
	case nil:
		return nil
	case *Column:
		return settype(map[string]any{
			"table": e.source(n.Table),
			"name":  n.Name,
		}, "column")
	case *Const:
		return settype(map[string]any{"value": n.Value}, "const")
	case *Ix:
		return settype(map[string]any{
			"base":     e.Encode(n.Base),
			"keys":     e.Encode(n.Keys),
			"optional": n.Optional,
		}, "ix")
	case *Require:
		return settype(map[string]any{
			"value":  e.Encode(n.Value),
			"guards": e.list(n.Guards),
		}, "require")
	case *Reducer:
		return settype(map[string]any{
			"op":   n.Op.String(),
			"args": e.list(n.Args),
		}, "reducer")
	case *Method:
		dispatch := make(map[string]string, len(n.Dispatch))
		for t, impl := range n.Dispatch {
			dispatch[t.String()] = impl
		}
		return settype(map[string]any{
			"op":       n.Op,
			"dispatch": dispatch,
			"args":     e.list(n.Args),
		}, "method")
	case *Call:
		return settype(map[string]any{
			"callee": e.Encode(n.Callee),
			"args":   e.list(n.Args),
		}, "call")
	case *Pointer:
		return settype(map[string]any{
			"table":    e.source(n.Table),
			"args":     e.list(n.Args),
			"optional": n.Optional,
		}, "pointer")
	case *Binary:
		return settype(map[string]any{
			"op":    n.Op.String(),
			"left":  e.Encode(n.Left),
			"right": e.Encode(n.Right),
		}, "binary")
	}
	panic(fmt.Sprintf("expr.Encoder: unexpected node %T", n))
}
