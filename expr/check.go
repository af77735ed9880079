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

type placeholderWalk struct {
	found []*This
}

func (p *placeholderWalk) add(s Source) {
	t, ok := s.(*This)
	if !ok {
		return
	}
	for i := range p.found {
		if p.found[i] == t {
			return
		}
	}
	p.found = append(p.found, t)
}

func (p *placeholderWalk) Visit(n Node) Visitor {
	switch n := n.(type) {
	case *Column:
		p.add(n.Table)
	case *Pointer:
		p.add(n.Table)
	}
	return p
}

// Placeholders returns the scope tokens
// still referenced by n, in the order
// they are first encountered.
func Placeholders(n Node) []*This {
	if n == nil {
		return nil
	}
	p := &placeholderWalk{}
	Walk(p, n)
	return p.found
}

// Resolved returns whether n is free
// of self-reference placeholders.
func Resolved(n Node) bool {
	return len(Placeholders(n)) == 0
}

type sourceWalk struct {
	target Source
	found  bool
}

func (s *sourceWalk) Visit(n Node) Visitor {
	if s.found {
		return nil
	}
	switch n := n.(type) {
	case *Column:
		s.found = n.Table == s.target
	case *Pointer:
		s.found = n.Table == s.target
	}
	return s
}

// References returns whether n contains
// a column or pointer owned by src.
func References(n Node, src Source) bool {
	if n == nil {
		return false
	}
	s := &sourceWalk{target: src}
	Walk(s, n)
	return s.found
}
