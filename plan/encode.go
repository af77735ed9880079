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
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SnellerInc/relflow/compr"
	"github.com/SnellerInc/relflow/expr"

	"github.com/dchest/siphash"
)

// Compression names the compr codec
// applied to an encoded Graph.
type Compression string

const (
	NoCompression Compression = "none"
	Zstd          Compression = "zstd"
	S2            Compression = "s2"
)

// ParseCompression returns the Compression named s.
// The empty string means NoCompression.
func ParseCompression(s string) (Compression, error) {
	if s == "" {
		return NoCompression, nil
	}
	if _, err := compr.ByName(s); err != nil {
		return "", fmt.Errorf("plan: %w", err)
	}
	return Compression(s), nil
}

var magic = [4]byte{'R', 'F', 'P', '1'}

const (
	// magic, codec tag, checksum, document length
	headerSize = len(magic) + 1 + 8 + 4

	// documents larger than this are rejected
	maxDocument = 1 << 30

	k0, k1 = 0x1b873593cc9e2d51, 0x5bd1e9956b7e1a3f
)

// ErrCorrupt is returned by Decode
// for envelopes that fail verification.
var ErrCorrupt = errors.New("plan: corrupt envelope")

type wireBinding struct {
	Name string `json:"name"`
	Expr any    `json:"expr"`
}

type wireOperator struct {
	Name    string   `json:"name"`
	Arity   int      `json:"arity"`
	Returns string   `json:"returns"`
	Inputs  []string `json:"inputs"`
}

type wireOp struct {
	Kind     string        `json:"kind"`
	Output   string        `json:"output"`
	Name     string        `json:"name"`
	Columns  []string      `json:"columns"`
	Inputs   []string      `json:"inputs,omitempty"`
	Keys     []wireBinding `json:"keys,omitempty"`
	Bindings []wireBinding `json:"bindings,omitempty"`
	Cond     any           `json:"cond,omitempty"`
	Operator *wireOperator `json:"operator,omitempty"`
}

type wireGraph struct {
	Root string   `json:"root"`
	Ops  []wireOp `json:"ops"`
}

func bindings(enc *expr.Encoder, lst []expr.Binding) []wireBinding {
	if len(lst) == 0 {
		return nil
	}
	out := make([]wireBinding, len(lst))
	for i := range lst {
		out[i] = wireBinding{Name: lst[i].As, Expr: enc.Encode(lst[i].Expr)}
	}
	return out
}

// Marshal returns the JSON document describing g.
func Marshal(g *Graph) ([]byte, error) {
	enc := &expr.Encoder{}
	w := wireGraph{Root: g.Root.ID().String()}
	for _, op := range g.Ops {
		wo := wireOp{
			Kind:     op.Kind.String(),
			Output:   op.Output.ID().String(),
			Name:     op.Output.String(),
			Columns:  op.Output.Columns(),
			Keys:     bindings(enc, op.Keys),
			Bindings: bindings(enc, op.Bindings),
		}
		for _, in := range op.Inputs {
			wo.Inputs = append(wo.Inputs, in.ID().String())
		}
		if op.Cond != nil {
			wo.Cond = enc.Encode(op.Cond)
		}
		if o := op.Operator; o != nil {
			wo.Operator = &wireOperator{
				Name:    o.Name,
				Arity:   o.Arity,
				Returns: o.Returns.String(),
				Inputs:  o.Inputs(),
			}
		}
		w.Ops = append(w.Ops, wo)
	}
	return json.Marshal(&w)
}

// Encode serializes g into an envelope:
// a magic number, the tag of the codec named
// by c, the SipHash of the JSON document, the
// length of the document, and the document
// itself compressed with the codec.
func Encode(g *Graph, c Compression) ([]byte, error) {
	if c == "" {
		c = NoCompression
	}
	codec, err := compr.ByName(string(c))
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	doc, err := Marshal(g)
	if err != nil {
		return nil, err
	}
	if len(doc) > maxDocument {
		return nil, fmt.Errorf("plan: document of %d bytes is too large", len(doc))
	}
	out := make([]byte, headerSize, headerSize+len(doc))
	copy(out, magic[:])
	out[len(magic)] = codec.Tag()
	binary.LittleEndian.PutUint64(out[len(magic)+1:], siphash.Hash(k0, k1, doc))
	binary.LittleEndian.PutUint32(out[len(magic)+9:], uint32(len(doc)))
	return codec.Compress(doc, out), nil
}

// Decode verifies an envelope produced
// by Encode and returns the JSON document.
func Decode(buf []byte) ([]byte, error) {
	if len(buf) < headerSize || !bytes.Equal(buf[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	codec, err := compr.ByTag(buf[len(magic)])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	sum := binary.LittleEndian.Uint64(buf[len(magic)+1:])
	size := binary.LittleEndian.Uint32(buf[len(magic)+9:])
	if size > maxDocument {
		return nil, fmt.Errorf("%w: document length %d", ErrCorrupt, size)
	}
	doc := make([]byte, size)
	if err := codec.Decompress(buf[headerSize:], doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, codec.Name(), err)
	}
	if siphash.Hash(k0, k1, doc) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return doc, nil
}
