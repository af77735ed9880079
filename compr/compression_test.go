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

package compr

import (
	"bytes"
	"testing"
)

func TestCodecs(t *testing.T) {
	ctl := bytes.Repeat([]byte(`{"kind":"select"}`), 200)
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			if err != nil {
				t.Fatal(err)
			}
			if c.Name() != name {
				t.Fatalf("bad codec name %q", c.Name())
			}
			if tc, err := ByTag(c.Tag()); err != nil || tc.Name() != name {
				t.Fatalf("ByTag(%d) = %v, %v", c.Tag(), tc, err)
			}
			src := append([]byte(nil), ctl...)
			prefix := []byte("hdr")
			out := c.Compress(src, append([]byte(nil), prefix...))
			if !bytes.HasPrefix(out, prefix) {
				t.Fatal("compress clobbered dst")
			}
			dst := make([]byte, len(src))
			if err := c.Decompress(out[len(prefix):], dst); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst, ctl) {
				t.Fatal("mismatch")
			}
			if err := c.Decompress(out[len(prefix):], make([]byte, len(src)-1)); err == nil {
				t.Error("expected an error for a short buffer")
			}
		})
	}
	if _, err := ByName("lz4"); err == nil {
		t.Error("expected an error")
	}
	if _, err := ByTag(0xff); err == nil {
		t.Error("expected an error")
	}
}

func TestS2Overlapping(t *testing.T) {
	c, err := ByName("s2")
	if err != nil {
		t.Fatal(err)
	}
	ctl := bytes.Repeat([]byte("foo"), 1000)
	src := append([]byte(nil), ctl...)
	dst := make([]byte, len(src))
	cmp := c.Compress(src[10:], src[:8])
	if err := c.Decompress(cmp[8:], dst[10:]); err != nil {
		t.Error(err)
	} else if string(ctl[10:]) != string(dst[10:]) {
		t.Error("mismatch")
	}
}

func TestOverlaps(t *testing.T) {
	// trivial case
	a := make([]byte, 10)
	b := make([]byte, 20)
	if overlaps(a, b) {
		t.Error("overlaps(a, b) should be false")
	}
	// a and b are adjacent (no overlap)
	a = make([]byte, 10, 30)
	b = a[10:]
	if overlaps(a, b) {
		t.Error("overlaps(a, b) should be false")
	} else if overlaps(b, a) {
		t.Error("overlaps(b, a) should be false")
	}
	// a and b overlap by 5
	b = a[5:]
	if !overlaps(a, b) {
		t.Error("overlaps(a, b) should be true")
	} else if !overlaps(b, a) {
		t.Error("overlaps(b, a) should be true")
	}
}
