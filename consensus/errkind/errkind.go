// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package errkind implements the closed error-kind taxonomy of spec §7:
// every error a core component surfaces across an actor boundary
// carries one of these kinds, so callers (chiefly the chain manager)
// can dispatch on it without parsing message text.
package errkind

import "github.com/pkg/errors"

// Kind is one of the closed set of error categories core components
// surface. KindOther carries a source error it does not recognize,
// per spec §9 ("reserve an 'other' variant with a carried source
// error for storage/wire faults").
type Kind int

const (
	KindOther Kind = iota
	KindConsensusViolation
	KindDoubleSpend
	KindMissingData
	KindAltBranchAbsent
	KindStorageFault
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConsensusViolation:
		return "consensus_violation"
	case KindDoubleSpend:
		return "double_spend"
	case KindMissingData:
		return "missing_data"
	case KindAltBranchAbsent:
		return "alt_branch_absent"
	case KindStorageFault:
		return "storage_fault"
	case KindCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Error wraps a source error with a Kind so callers crossing an actor
// boundary can dispatch without string matching.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. If err is nil, New returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Wrap wraps err with kind and an additional message, using pkg/errors
// the way the teacher's codebase wraps errors throughout.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
