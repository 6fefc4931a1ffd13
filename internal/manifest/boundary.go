// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"fmt"

	"github.com/lsmkit/vedit/internal/base"
)

// UpdateUserValueType selects the merge rule used when combining two frontier
// values.
type UpdateUserValueType int8

const (
	// UpdateSmallest keeps the smaller of the two values.
	UpdateSmallest UpdateUserValueType = iota
	// UpdateLargest keeps the larger of the two values.
	UpdateLargest
)

func (t UpdateUserValueType) String() string {
	switch t {
	case UpdateSmallest:
		return "smallest"
	case UpdateLargest:
		return "largest"
	default:
		return fmt.Sprintf("UpdateUserValueType(%d)", int8(t))
	}
}

// UserFrontier is a monotonic summary value attached to a file boundary by
// the layer above the storage engine, for example the replicated op id and
// hybrid time up to which a file's contents are known to extend. The manifest
// code does not interpret frontiers: it merges, clones, compares and encodes
// them through this interface.
type UserFrontier interface {
	// Clone returns a deep copy of the frontier.
	Clone() UserFrontier
	// Update merges other into the receiver using the min (UpdateSmallest) or
	// max (UpdateLargest) rule of the frontier's domain.
	Update(other UserFrontier, typ UpdateUserValueType)
	// Equals returns true if both frontiers hold the same value.
	Equals(other UserFrontier) bool
	// Encode returns the persisted form of the frontier. The result must be
	// accepted by the BoundaryValuesExtractor used to decode the MANIFEST.
	Encode() ([]byte, error)
	fmt.Stringer
}

// BoundaryValuesExtractor rebuilds frontier values from their persisted form
// while a VersionEdit is decoded. Implementations must be deterministic and
// safe for concurrent use if shared between decoders.
type BoundaryValuesExtractor interface {
	DecodeFrontier(data []byte) (UserFrontier, error)
}

// UpdateBoundariesType selects which of a file's boundaries an update applies
// to.
type UpdateBoundariesType int8

const (
	// UpdateBoundariesAll updates both the smallest and largest boundaries.
	UpdateBoundariesAll UpdateBoundariesType = iota
	// UpdateBoundariesSmallest updates only the smallest boundary.
	UpdateBoundariesSmallest
	// UpdateBoundariesLargest updates only the largest boundary.
	UpdateBoundariesLargest
)

// BoundaryValues is the smallest or largest marker of a file: the boundary
// key, a sequence number and an optional frontier.
//
// Boundaries order by key, then by sequence number.
type BoundaryValues struct {
	Key      base.InternalKey
	SeqNum   base.SeqNum
	Frontier UserFrontier
}

// Clone returns a copy of b that shares no memory with it.
func (b BoundaryValues) Clone() BoundaryValues {
	c := BoundaryValues{Key: b.Key.Clone(), SeqNum: b.SeqNum}
	if b.Frontier != nil {
		c.Frontier = b.Frontier.Clone()
	}
	return c
}

// Compare orders boundaries by key, then by sequence number.
func (b *BoundaryValues) Compare(cmp base.Compare, other *BoundaryValues) int {
	if c := base.InternalCompare(cmp, b.Key, other.Key); c != 0 {
		return c
	}
	switch {
	case b.SeqNum < other.SeqNum:
		return -1
	case b.SeqNum > other.SeqNum:
		return +1
	}
	return 0
}

// Equal returns true if both boundaries hold the same key, sequence number and
// frontier.
func (b *BoundaryValues) Equal(cmp base.Compare, other *BoundaryValues) bool {
	if b.Compare(cmp, other) != 0 {
		return false
	}
	if b.Frontier == nil || other.Frontier == nil {
		return b.Frontier == nil && other.Frontier == nil
	}
	return b.Frontier.Equals(other.Frontier)
}

// updateExceptKey merges the sequence number and frontier of source into b.
// The smaller sequence number wins for the smallest boundary and the larger
// for the largest.
func (b *BoundaryValues) updateExceptKey(source *BoundaryValues, typ UpdateUserValueType) {
	switch typ {
	case UpdateSmallest:
		b.SeqNum = min(b.SeqNum, source.SeqNum)
	case UpdateLargest:
		b.SeqNum = max(b.SeqNum, source.SeqNum)
	}
	if source.Frontier == nil {
		return
	}
	if b.Frontier == nil {
		b.Frontier = source.Frontier.Clone()
		return
	}
	b.Frontier.Update(source.Frontier, typ)
}

// Pretty returns a formatter for the boundary.
func (b BoundaryValues) Pretty(f base.FormatKey) fmt.Formatter {
	return prettyBoundary{b, f}
}

type prettyBoundary struct {
	BoundaryValues
	formatKey base.FormatKey
}

func (b prettyBoundary) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "%s seq:%s", b.Key.Pretty(b.formatKey), b.SeqNum)
	if b.Frontier != nil {
		fmt.Fprintf(s, " frontier:%s", b.Frontier)
	}
}
