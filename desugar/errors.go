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

package desugar

import (
	"errors"
	"fmt"

	"github.com/SnellerInc/relflow/expr"
)

var (
	// ErrUnresolvedScope is matched by *UnresolvedScopeError.
	ErrUnresolvedScope = errors.New("unresolved self-reference")
	// ErrDuplicateName is matched by *DuplicateNameError.
	ErrDuplicateName = errors.New("duplicate column name")
	// ErrReservedName is matched by *ReservedNameError.
	ErrReservedName = errors.New("reserved column name")
	// ErrArgument is matched by *ArgumentError.
	ErrArgument = errors.New("invalid argument")
)

// IDColumn is the reserved name of
// the row identity column.
const IDColumn = "id"

// UnresolvedScopeError is returned when an
// expression refers to a scope token that
// no enclosing call has bound.
type UnresolvedScopeError struct {
	Scope *expr.This
	// At is the expression in which
	// the token was found, if known.
	At expr.Node
}

func (u *UnresolvedScopeError) Error() string {
	if u.At == nil {
		return fmt.Sprintf("self-reference %q is not bound in this call", u.Scope)
	}
	return fmt.Sprintf("%q: self-reference %q is not bound in this call", expr.ToString(u.At), u.Scope)
}

func (u *UnresolvedScopeError) Is(err error) bool { return err == ErrUnresolvedScope }

// DuplicateNameError is returned when two
// arguments normalize to the same column name.
type DuplicateNameError struct {
	Name string
}

func (d *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate expression value given for %q", d.Name)
}

func (d *DuplicateNameError) Is(err error) bool { return err == ErrDuplicateName }

// ReservedNameError is returned when
// an argument is named IDColumn.
type ReservedNameError struct {
	Name string
}

func (r *ReservedNameError) Error() string {
	return fmt.Sprintf("can't use %q as a column name", r.Name)
}

func (r *ReservedNameError) Is(err error) bool { return err == ErrReservedName }

// ArgumentError is returned for arguments
// that cannot be turned into named column
// expressions.
type ArgumentError struct {
	Name string
	Msg  string
}

func (a *ArgumentError) Error() string {
	if a.Name == "" {
		return a.Msg
	}
	return fmt.Sprintf("argument %q: %s", a.Name, a.Msg)
}

func (a *ArgumentError) Is(err error) bool { return err == ErrArgument }
