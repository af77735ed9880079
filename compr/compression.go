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

// Package compr provides the compression
// codecs available to encoded plans.
package compr

import (
	"fmt"
	"unsafe"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses
// whole buffers.
type Codec interface {
	// Name is the name of the algorithm.
	Name() string
	// Tag identifies the algorithm
	// in serialized headers.
	Tag() byte
	// Compress appends the compressed contents
	// of src to dst and returns the result.
	Compress(src, dst []byte) []byte
	// Decompress decompresses src into dst.
	// It errors out unless the decompressed
	// data is exactly len(dst) bytes.
	//
	// Decompress is safe to call from
	// multiple goroutines simultaneously.
	Decompress(src, dst []byte) error
}

type none struct{}

func (none) Name() string { return "none" }
func (none) Tag() byte    { return 0 }

func (none) Compress(src, dst []byte) []byte { return append(dst, src...) }

func (none) Decompress(src, dst []byte) error {
	if len(src) != len(dst) {
		return fmt.Errorf("expected %d bytes; got %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (zstdCodec) Name() string { return "zstd" }
func (zstdCodec) Tag() byte    { return 1 }

func (z zstdCodec) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCodec) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := z.dec.DecodeAll(src, into)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), len(ret))
	}
	// the decoder should not have had to
	// realloc the buffer
	if len(ret) > 0 && &ret[0] != &dst[0] {
		return fmt.Errorf("zstd decompress: output buffer realloc'd")
	}
	return nil
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }
func (s2Codec) Tag() byte    { return 2 }

func (s2Codec) Compress(src, dst []byte) []byte {
	tail := dst[len(dst):cap(dst)]
	// s2 requires non-overlapping src and dst
	if overlaps(src, tail) {
		tail = nil
	}
	got := s2.Encode(tail, src)
	if len(dst) == 0 {
		return got
	}
	if len(tail) > 0 && len(got) > 0 && &tail[0] == &got[0] {
		return dst[:len(dst)+len(got)]
	}
	return append(dst, got...)
}

func (s2Codec) Decompress(src, dst []byte) error {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("expected %d bytes decompressed; got %d", len(dst), n)
	}
	if n == 0 {
		return nil
	}
	ret, err := s2.Decode(dst, src)
	if err != nil {
		return err
	}
	if &ret[0] != &dst[0] {
		return fmt.Errorf("s2 decompress: output buffer realloc'd")
	}
	return nil
}

var codecs []Codec

func init() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	codecs = []Codec{none{}, zstdCodec{enc: enc, dec: dec}, s2Codec{}}
}

// Names returns the names of every codec.
func Names() []string {
	out := make([]string, len(codecs))
	for i := range codecs {
		out[i] = codecs[i].Name()
	}
	return out
}

// ByName returns the codec called name.
func ByName(name string) (Codec, error) {
	for _, c := range codecs {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("compr: unknown compression %q", name)
}

// ByTag returns the codec identified by tag.
func ByTag(tag byte) (Codec, error) {
	for _, c := range codecs {
		if c.Tag() == tag {
			return c, nil
		}
	}
	return nil, fmt.Errorf("compr: unknown compression tag %d", tag)
}

func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	a0 := uintptr(unsafe.Pointer(&a[0]))
	a1 := a0 + uintptr(len(a))
	b0 := uintptr(unsafe.Pointer(&b[0]))
	b1 := b0 + uintptr(len(b))
	return a0 < b1 && b0 < a1
}
