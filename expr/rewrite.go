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
	"golang.org/x/exp/slices"
)

// Pipeline is a list of Rewriters
// applied as successive passes over
// an expression: the output of each
// pass is the input of the next one.
type Pipeline []Rewriter

// Apply runs every pass of p over n.
func (p Pipeline) Apply(n Node) Node {
	for i := range p {
		n = Rewrite(p[i], n)
	}
	return n
}

// Err returns the first error reported
// by a pass of p that implements Failing.
func (p Pipeline) Err() error {
	for i := range p {
		if f, ok := p[i].(Failing); ok {
			if err := f.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// With returns a copy of p with rw appended.
func (p Pipeline) With(rw ...Rewriter) Pipeline {
	out := slices.Clone(p)
	return append(out, rw...)
}

// Failing is implemented by Rewriters
// that can fail. Since Rewrite cannot
// return an error, a failing Rewriter
// records the first error it encountered
// and leaves the offending node unchanged.
type Failing interface {
	Rewriter
	Err() error
}

// RewriteFunc adapts a function into
// a Rewriter that is applied to every node.
type RewriteFunc func(Node) Node

func (f RewriteFunc) Rewrite(n Node) Node { return f(n) }
func (f RewriteFunc) Walk(Node) Rewriter  { return f }
