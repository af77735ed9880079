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

// Package table is the public interface
// for building dataflow relation graphs.
//
// Relations are created from a Session and
// derived from each other with operations such
// as Select, Filter, and GroupBy/Reduce. Every
// operation passes its expression arguments
// through desugar.Intercept before recording
// itself, so expressions may use self-references
// (expr.Self), spreads, and inline method calls
// freely; the recorded plan contains only
// resolved expressions.
package table
