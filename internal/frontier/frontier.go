// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package frontier implements the user frontier stored in sstable boundaries
// by a replicated store: the op id of the last replicated operation applied
// to the file and the hybrid time watermark of its contents.
package frontier

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/manifest"
	"google.golang.org/protobuf/encoding/protowire"
)

// HybridTime is a physical-plus-logical timestamp. Zero is invalid.
type HybridTime uint64

// String implements fmt.Stringer.
func (ht HybridTime) String() string {
	if ht == 0 {
		return "invalid"
	}
	return fmt.Sprintf("%d", uint64(ht))
}

// Frontier is a manifest.UserFrontier. Unset components (the empty OpID or a
// zero HybridTime) never win a merge: the other side's value is taken.
type Frontier struct {
	OpID       base.OpID
	HybridTime HybridTime
}

var _ manifest.UserFrontier = (*Frontier)(nil)

// Make returns a frontier holding the given values.
func Make(opID base.OpID, ht HybridTime) *Frontier {
	return &Frontier{OpID: opID, HybridTime: ht}
}

// Clone implements manifest.UserFrontier.
func (f *Frontier) Clone() manifest.UserFrontier {
	c := *f
	return &c
}

// Update implements manifest.UserFrontier. Each component is merged
// independently.
func (f *Frontier) Update(other manifest.UserFrontier, typ manifest.UpdateUserValueType) {
	o, ok := other.(*Frontier)
	if !ok {
		panic(errors.AssertionFailedf("frontier: cannot merge %T", other))
	}
	if f.OpID.Empty() {
		f.OpID = o.OpID
	} else if !o.OpID.Empty() {
		c := o.OpID.Compare(f.OpID)
		if (typ == manifest.UpdateSmallest && c < 0) || (typ == manifest.UpdateLargest && c > 0) {
			f.OpID = o.OpID
		}
	}
	switch {
	case f.HybridTime == 0:
		f.HybridTime = o.HybridTime
	case o.HybridTime == 0:
	case typ == manifest.UpdateSmallest:
		f.HybridTime = min(f.HybridTime, o.HybridTime)
	case typ == manifest.UpdateLargest:
		f.HybridTime = max(f.HybridTime, o.HybridTime)
	}
}

// Equals implements manifest.UserFrontier.
func (f *Frontier) Equals(other manifest.UserFrontier) bool {
	o, ok := other.(*Frontier)
	return ok && *o == *f
}

// Field numbers of the encoded frontier.
const (
	fieldOpID       protowire.Number = 1
	fieldHybridTime protowire.Number = 2

	opIDFieldTerm  protowire.Number = 1
	opIDFieldIndex protowire.Number = 2
)

// Encode implements manifest.UserFrontier. Unset components are omitted.
func (f *Frontier) Encode() ([]byte, error) {
	var buf []byte
	if !f.OpID.Empty() {
		var op []byte
		op = protowire.AppendTag(op, opIDFieldTerm, protowire.VarintType)
		op = protowire.AppendVarint(op, uint64(f.OpID.Term))
		op = protowire.AppendTag(op, opIDFieldIndex, protowire.VarintType)
		op = protowire.AppendVarint(op, uint64(f.OpID.Index))
		buf = protowire.AppendTag(buf, fieldOpID, protowire.BytesType)
		buf = protowire.AppendBytes(buf, op)
	}
	if f.HybridTime != 0 {
		buf = protowire.AppendTag(buf, fieldHybridTime, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(f.HybridTime))
	}
	return buf, nil
}

// String implements fmt.Stringer.
func (f *Frontier) String() string {
	return redact.StringWithoutMarkers(f)
}

// SafeFormat implements redact.SafeFormatter.
func (f *Frontier) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("{ op_id: %v hybrid_time: %s }", f.OpID, redact.SafeString(f.HybridTime.String()))
}
