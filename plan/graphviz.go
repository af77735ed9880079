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

package plan

import (
	"fmt"
	"io"
)

// Graphviz dumps the graph 'g'
// to 'dst' as dot(1)-compatible text.
func Graphviz(g *Graph, dst io.Writer) error {
	_, err := io.WriteString(dst, "digraph plan {\n")
	if err != nil {
		return err
	}
	ids := make(map[string]int, len(g.Ops))
	for i, op := range g.Ops {
		ids[op.Output.ID().String()] = i
		_, err = fmt.Fprintf(dst, "n%d [label=%q];\n", i, op.String())
		if err != nil {
			return err
		}
	}
	for i, op := range g.Ops {
		for _, in := range op.Inputs {
			j, ok := ids[in.ID().String()]
			if !ok {
				continue
			}
			_, err = fmt.Fprintf(dst, "n%d -> n%d;\n", j, i)
			if err != nil {
				return err
			}
		}
	}
	_, err = io.WriteString(dst, "}\n")
	return err
}
