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

	"golang.org/x/exp/slices"
)

// Context is implemented by relations
// that rewrite the expressions passed to
// operations invoked on them.
type Context interface {
	// Scope returns the self-reference
	// bindings that calls on the context
	// inherit.
	Scope() Scope
	// Rewriters returns the rewriters to run,
	// in order, over the resolved arguments.
	// A fresh pipeline is returned for every call.
	Rewriters() expr.Pipeline
}

// Alias is implemented by arguments that
// stand for another source when they are
// bound to a scope token, such as a grouped
// relation standing for the relation it groups.
type Alias interface {
	Alias() expr.Source
}

// Signature declares how an operation
// binds its arguments.
type Signature struct {
	// Name is the name of the operation.
	Name string
	// Params are the names of the
	// positional parameters, receiver first.
	Params []string
	// Bind maps scope tokens to the
	// name of the parameter the token
	// refers to for the duration of the call.
	Bind map[*expr.This]string
}

// Resolved holds the rewritten arguments of a call.
type Resolved struct {
	Args   []any
	Kwargs []Kwarg
	// Context is the context the call
	// was made on, or nil.
	Context Context
}

// Intercept resolves and rewrites the arguments
// of a call to the operation described by sig.
//
// The arguments are bound to the declared parameter
// names: positional arguments other than Named by
// position, then keyword arguments by name. A keyword
// argument naming a parameter that is already bound
// is rejected. If the first argument is a Context, its
// scope is inherited and its rewriters are later run over
// every argument. The bindings declared by sig.Bind are
// added to the scope, self-references and spreads are
// resolved against it, and any placeholder left over is
// reported as an *UnresolvedScopeError.
func Intercept(sig *Signature, args []any, kwargs []Kwarg) (*Resolved, error) {
	named := make(map[string]any, len(args)+len(kwargs))
	var first any
	for i, a := range args {
		if i == 0 {
			first = a
		}
		if _, ok := a.(Named); ok || i >= len(sig.Params) {
			continue
		}
		named[sig.Params[i]] = a
	}
	for i, kw := range kwargs {
		if _, ok := named[kw.Name]; ok && slices.Contains(sig.Params, kw.Name) {
			return nil, fmt.Errorf("%s: %w", sig.Name, &ArgumentError{Name: kw.Name, Msg: "got multiple values for argument"})
		}
		named[kw.Name] = kw.Value
		if first == nil && i == 0 {
			first = kw.Value
		}
	}
	if len(args) == 0 && len(kwargs) == 0 {
		return nil, fmt.Errorf("%s: no arguments", sig.Name)
	}

	scope := make(Scope)
	ctx, _ := first.(Context)
	if ctx != nil {
		scope = ctx.Scope().Clone()
	}
	for tok, param := range sig.Bind {
		v, ok := named[param]
		if !ok {
			return nil, fmt.Errorf("%s: scope %q is bound to missing parameter %q", sig.Name, tok, param)
		}
		if a, ok := v.(Alias); ok {
			scope[tok] = a.Alias()
			continue
		}
		src, ok := v.(expr.Source)
		if !ok {
			return nil, fmt.Errorf("%s: parameter %q bound to scope %q is not a relation", sig.Name, param, tok)
		}
		scope[tok] = src
	}

	rargs, err := ResolveArgs(scope, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sig.Name, err)
	}
	rkwargs, err := ResolveKwargs(scope, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sig.Name, err)
	}
	if err := checkResolved(rargs, rkwargs); err != nil {
		return nil, fmt.Errorf("%s: %w", sig.Name, err)
	}

	if ctx != nil {
		p := ctx.Rewriters()
		for i := range rargs {
			switch a := rargs[i].(type) {
			case expr.Node:
				rargs[i] = p.Apply(a)
			case Named:
				if n, ok := a.Value.(expr.Node); ok {
					rargs[i] = Named{Name: a.Name, Value: p.Apply(n)}
				}
			}
		}
		for i := range rkwargs {
			if n, ok := rkwargs[i].Value.(expr.Node); ok {
				rkwargs[i].Value = p.Apply(n)
			}
		}
		if err := p.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", sig.Name, err)
		}
	}
	return &Resolved{Args: rargs, Kwargs: rkwargs, Context: ctx}, nil
}

func checkResolved(args []any, kwargs []Kwarg) error {
	check := func(v any) error {
		if nm, ok := v.(Named); ok {
			v = nm.Value
		}
		n, ok := v.(expr.Node)
		if !ok {
			return nil
		}
		if p := expr.Placeholders(n); len(p) > 0 {
			return &UnresolvedScopeError{Scope: p[0], At: n}
		}
		return nil
	}
	for _, a := range args {
		if err := check(a); err != nil {
			return err
		}
	}
	for _, kw := range kwargs {
		if err := check(kw.Value); err != nil {
			return err
		}
	}
	return nil
}
