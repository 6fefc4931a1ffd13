// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/invariants"
)

// FileMetadata describes a single sstable. One FileMetadata exists per
// physical file; it is created when the file is flushed, compacted or
// imported, shared by every version that contains the file, and retired when
// the last of those versions is released.
//
// Fields fall into three groups with different synchronization rules:
//
//   - The identity and boundary fields (FD, Smallest, Largest, LastOpID,
//     Imported) are set before the metadata is published in an edit and are
//     immutable afterwards.
//   - refs and the table reader handle are safe for concurrent use.
//   - BeingCompacted and MarkedForCompaction are protected by the caller's
//     version set mutex. The data-entry statistics are only reachable through
//     an ApplyCapability, see Stats.
type FileMetadata struct {
	// refs is the number of versions referencing the file. When it falls to
	// zero the reader handle is detached and handed to an ObsoleteFilesSet.
	refs atomic.Int32

	FD FileDescriptor
	// BeingCompacted is true while a compaction has picked the file as an
	// input. It prevents the file from being picked again.
	BeingCompacted bool
	// Smallest and Largest are the boundaries of the file.
	//
	// INVARIANT: Smallest.SeqNum <= Largest.SeqNum for any file added to a
	// VersionEdit.
	Smallest BoundaryValues
	Largest  BoundaryValues
	// LastOpID is the replicated op id up to which the file's contents are
	// durable. Recovery uses it to bound log replay.
	LastOpID base.OpID
	// Imported is true if the file came from another store instance rather
	// than a local flush or compaction.
	Imported bool
	// MarkedForCompaction is set when the file should be rewritten by a
	// compaction at the next opportunity.
	MarkedForCompaction bool

	// boundsSet is true once Smallest and Largest hold real keys.
	boundsSet bool

	readerHandle atomic.Pointer[readerHandleBox]

	// compensatedFileSize is the file size adjusted for deletion entries. It
	// is computed the first time the file is observed and immutable afterwards.
	compensatedFileSize writeOnceUint64

	// stats must only be accessed through Stats.
	stats FileStats
}

// FileStats are data-entry statistics of a file used to compensate deletion
// entries during compaction picking. They change over the lifetime of the file
// but are only read or written on the log-and-apply path.
type FileStats struct {
	NumEntries   uint64
	NumDeletions uint64
	RawKeySize   uint64
	RawValueSize uint64
	// InitFromFile is true once the statistics have been loaded from the
	// file's properties.
	InitFromFile bool
}

type readerHandleBox struct {
	h ReaderHandle
}

// Ref increments the file's reference count.
func (m *FileMetadata) Ref() {
	m.refs.Add(1)
}

// Unref decrements the file's reference count. When the count reaches zero the
// file's reader handle is detached and the file, along with the handle, is
// added to obsoleteFiles. The handle is released by the owner of
// obsoleteFiles, outside of any lock held by the caller.
func (m *FileMetadata) Unref(obsoleteFiles ObsoleteFilesSet) {
	v := m.refs.Add(-1)
	if v < 0 {
		panic(errors.AssertionFailedf("vedit: invalid FileMetadata refcounting for file %s", m.FD.Number()))
	}
	if v == 0 {
		var h ReaderHandle
		if box := m.readerHandle.Swap(nil); box != nil {
			h = box.h
		}
		obsoleteFiles.AddFile(m, h)
	}
}

// Refs returns the current reference count.
func (m *FileMetadata) Refs() int32 {
	return m.refs.Load()
}

// AttachReaderHandle sets the handle of the open table reader for the file.
// The FileMetadata does not own the handle: it is released through the
// ObsoleteFilesSet once the file is unreferenced. Attaching a handle when one
// is already attached is a programming error.
func (m *FileMetadata) AttachReaderHandle(h ReaderHandle) {
	if h == nil {
		return
	}
	if !m.readerHandle.CompareAndSwap(nil, &readerHandleBox{h: h}) {
		panic(errors.AssertionFailedf("vedit: file %s already has a reader handle", m.FD.Number()))
	}
}

// ReaderHandle returns the attached reader handle, or nil.
func (m *FileMetadata) ReaderHandle() ReaderHandle {
	if box := m.readerHandle.Load(); box != nil {
		return box.h
	}
	return nil
}

// CompensatedFileSize returns the compensated file size, or zero if it has not
// been computed yet.
func (m *FileMetadata) CompensatedFileSize() uint64 {
	return m.compensatedFileSize.Load()
}

// SetCompensatedFileSize records the compensated file size the first time it
// is computed and returns true if this call stored it. Later calls leave the
// value untouched. Concurrent first writers must compute the same value.
func (m *FileMetadata) SetCompensatedFileSize(size uint64) bool {
	return m.compensatedFileSize.Set(size)
}

// Stats returns the mutable data-entry statistics. The capability proves the
// caller is on the log-and-apply path; the returned pointer must not be
// retained past the LogAndApplySerializer.Do call that granted it.
func (m *FileMetadata) Stats(c *ApplyCapability) *FileStats {
	c.check()
	return &m.stats
}

// UpdateBoundaries extends the file's boundaries with a key written to the
// file. The first call sets both boundaries. Later calls replace the largest key and merge the sequence number
// and frontier of source into both boundaries.
//
// REQUIRES: keys are passed in sorted order; the last key is the largest.
func (m *FileMetadata) UpdateBoundaries(cmp base.Compare, key base.InternalKey, source BoundaryValues) {
	if !m.boundsSet {
		m.boundsSet = true
		m.Smallest = BoundaryValues{Key: key, SeqNum: source.SeqNum}
		m.Largest = BoundaryValues{Key: key, SeqNum: source.SeqNum}
		if source.Frontier != nil {
			m.Smallest.Frontier = source.Frontier.Clone()
			m.Largest.Frontier = source.Frontier.Clone()
		}
		return
	}
	if invariants.Enabled && base.InternalCompare(cmp, key, m.Largest.Key) < 0 {
		panic(errors.AssertionFailedf("vedit: file %s: key %s added after larger key %s",
			m.FD.Number(), key, m.Largest.Key))
	}
	m.Largest.Key = key
	m.UpdateBoundariesExceptKey(source, UpdateBoundariesAll)
}

// UpdateBoundariesExceptKey merges the sequence number and frontier of source
// into the boundaries selected by typ, leaving the boundary keys unchanged.
func (m *FileMetadata) UpdateBoundariesExceptKey(source BoundaryValues, typ UpdateBoundariesType) {
	if typ != UpdateBoundariesLargest {
		m.Smallest.updateExceptKey(&source, UpdateSmallest)
	}
	if typ != UpdateBoundariesSmallest {
		m.Largest.updateExceptKey(&source, UpdateLargest)
	}
}

// cleaned returns a copy of the persisted fields of m: descriptor, boundaries,
// replication position, compaction marker and imported flag.
func (m *FileMetadata) cleaned() *FileMetadata {
	return &FileMetadata{
		FD:                  m.FD,
		Smallest:            m.Smallest.Clone(),
		Largest:             m.Largest.Clone(),
		LastOpID:            m.LastOpID,
		MarkedForCompaction: m.MarkedForCompaction,
		Imported:            m.Imported,
		boundsSet:           m.boundsSet,
	}
}

// Validate checks the persisted fields of the file for consistency.
func (m *FileMetadata) Validate(cmp base.Compare, formatKey base.FormatKey) error {
	if uint64(m.FD.Number()) > FileNumberMask {
		return base.CorruptionErrorf("file number %d exceeds mask", uint64(m.FD.Number()))
	}
	if m.Smallest.SeqNum > m.Largest.SeqNum {
		return base.CorruptionErrorf("file %s has inconsistent seqnum bounds: %s vs %s",
			m.FD.Number(), m.Smallest.SeqNum, m.Largest.SeqNum)
	}
	if cmp(m.Smallest.Key.UserKey, m.Largest.Key.UserKey) > 0 {
		return base.CorruptionErrorf("file %s has inconsistent bounds: %s vs %s",
			m.FD.Number(), m.Smallest.Key.Pretty(formatKey), m.Largest.Key.Pretty(formatKey))
	}
	return nil
}

// String implements fmt.Stringer.
func (m *FileMetadata) String() string {
	return m.DebugString(base.DefaultFormatter)
}

// DebugString returns a one-line description of the file.
func (m *FileMetadata) DebugString(format base.FormatKey) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s:[%s-%s]", m.FD.Number(), m.Smallest.Key.Pretty(format), m.Largest.Key.Pretty(format))
	fmt.Fprintf(&b, " seqnums:[%s-%s]", m.Smallest.SeqNum, m.Largest.SeqNum)
	if m.FD.PathID() != 0 {
		fmt.Fprintf(&b, " path:%d", m.FD.PathID())
	}
	fmt.Fprintf(&b, " size:%d", m.FD.TotalFileSize)
	if m.FD.BaseFileSize != m.FD.TotalFileSize {
		fmt.Fprintf(&b, " base:%d", m.FD.BaseFileSize)
	}
	if !m.LastOpID.Empty() {
		fmt.Fprintf(&b, " op:%s", m.LastOpID)
	}
	if m.Smallest.Frontier != nil || m.Largest.Frontier != nil {
		fmt.Fprintf(&b, " frontiers:[%v-%v]", m.Smallest.Frontier, m.Largest.Frontier)
	}
	if m.MarkedForCompaction {
		b.WriteString(" marked")
	}
	if m.Imported {
		b.WriteString(" imported")
	}
	return b.String()
}

// writeOnceUint64 is a cell that can be set once to a non-zero value.
type writeOnceUint64 struct {
	v atomic.Uint64
}

func (w *writeOnceUint64) Load() uint64 {
	return w.v.Load()
}

// Set stores v if the cell is unset and returns true if this call stored it.
// Racing writers must agree on the value.
func (w *writeOnceUint64) Set(v uint64) bool {
	if v == 0 {
		return false
	}
	if w.v.CompareAndSwap(0, v) {
		return true
	}
	if invariants.Enabled {
		if old := w.v.Load(); old != v {
			panic(errors.AssertionFailedf("vedit: write-once value changed from %d to %d", old, v))
		}
	}
	return false
}
