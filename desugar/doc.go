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

// Package desugar rewrites column expressions
// before they reach the dataflow engine.
//
// Every public relation operation passes its
// arguments through Intercept. Intercept resolves
// self-references (expr.This placeholders) against
// the scope of the call and expands spreads. It then
// runs the rewriters that are active on the relation
// the operation was invoked on, which include the
// compilation of inline method calls into generated
// row transformers.
//
// All errors are reported at graph construction time.
package desugar
