// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"cmp"
	"fmt"

	"github.com/cockroachdb/redact"
)

// OpID identifies a position in a replicated operation log: the term of the
// leader that appended the operation and its index within the log.
//
// The zero value is the empty position, meaning "unknown".
type OpID struct {
	Term  int64
	Index int64
}

// MakeOpID constructs an OpID.
func MakeOpID(term, index int64) OpID {
	return OpID{Term: term, Index: index}
}

// Empty returns true for the zero OpID.
func (id OpID) Empty() bool {
	return id.Term == 0 && id.Index == 0
}

// Compare orders OpIDs by term, then by index.
func (id OpID) Compare(other OpID) int {
	if c := cmp.Compare(id.Term, other.Term); c != 0 {
		return c
	}
	return cmp.Compare(id.Index, other.Index)
}

// String implements fmt.Stringer.
func (id OpID) String() string {
	return fmt.Sprintf("%d.%d", id.Term, id.Index)
}

// SafeFormat implements redact.SafeFormatter.
func (id OpID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d.%d", redact.SafeInt(id.Term), redact.SafeInt(id.Index))
}
