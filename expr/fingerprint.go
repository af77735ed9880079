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
	"encoding/json"
	"fmt"

	"github.com/dchest/siphash"
)

const (
	k0, k1 = 0x5d1ec810febed702, 0x40fd7fee17262f71
)

// Fingerprint returns a structural hash of n.
// Equal expressions have equal fingerprints;
// relations contribute their identity, and
// placeholders their token address.
func Fingerprint(n Node) uint64 {
	enc := Encoder{Source: fingerprintSource}
	buf, err := json.Marshal(enc.Encode(n))
	if err != nil {
		// constants that cannot be marshaled
		// fall back to their textual form
		buf = []byte(fmt.Sprintf("%#v", ToString(n)))
	}
	return siphash.Hash(k0, k1, buf)
}

func fingerprintSource(s Source) string {
	if r, ok := s.(Relation); ok {
		return r.ID().String()
	}
	return fmt.Sprintf("%p", s)
}
