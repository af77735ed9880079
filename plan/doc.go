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

// Package plan records the dataflow
// operations built by package table
// and hands them off to the engine.
//
// Each relation remembers the Op that
// produced it. Build collects the operations
// a relation depends on, either as inputs or
// through the columns its expressions refer to,
// into a Graph in dependency order. Encode
// serializes a Graph into the envelope the
// engine consumes.
package plan
