// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"cmp"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
)

// NumLevels is the number of levels a VersionEdit can refer to.
const NumLevels = 7

// Optional holds a value that is either absent or present. A present zero
// value is distinct from an absent one, both in memory and on the wire.
type Optional[T any] struct {
	v  T
	ok bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{v: v, ok: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.v, o.ok
}

// IsSet returns true if the value is present.
func (o Optional[T]) IsSet() bool {
	return o.ok
}

// DeletedFileEntry holds the state for a file deletion from a level. The file
// itself might still be referenced by another level.
type DeletedFileEntry struct {
	Level   int
	FileNum base.FileNum
}

// NewFileEntry holds the state for a new file or one moved from a different
// level.
type NewFileEntry struct {
	Level int
	Meta  *FileMetadata
}

// VersionEdit holds the state for an edit to a Version along with other
// on-disk state (log numbers, next file number, the last sequence number and
// column family changes).
//
// A VersionEdit is built and consumed by a single goroutine.
type VersionEdit struct {
	// ComparatorName is set in the first edit of a MANIFEST and used to check
	// that the comparer given at open matches the one the store was created
	// with.
	ComparatorName Optional[string]
	// LogNumber is the smallest WAL number holding mutations that have not
	// been flushed to an sstable.
	LogNumber Optional[uint64]
	// PrevLogNumber is a historic LevelDB field kept for compatibility.
	PrevLogNumber Optional[uint64]
	// NextFileNumber is the next number to hand out. A single counter is used
	// for WALs, MANIFESTs and sstables.
	NextFileNumber Optional[uint64]
	// MaxColumnFamily is the largest column family id allocated so far.
	MaxColumnFamily Optional[uint32]
	// LastSequence is an upper bound on the sequence numbers assigned in
	// flushed WALs.
	LastSequence Optional[base.SeqNum]
	// FlushedOpID is the replicated op id up to which a flush made data
	// durable. The empty OpID means unset.
	FlushedOpID base.OpID

	// A file num may be present in both deleted files and new files when it
	// is moved from a lower level to a higher level.
	DeletedFiles map[DeletedFileEntry]struct{}
	// NewFiles preserves insertion order; consumers may rely on it to group
	// files produced together.
	NewFiles []NewFileEntry

	// ColumnFamily is the column family the edit applies to. Zero is the
	// default column family.
	ColumnFamily uint32
	// IsColumnFamilyDrop is set if the edit drops ColumnFamily.
	IsColumnFamilyDrop bool
	// ColumnFamilyName is set if the edit creates ColumnFamily with this name.
	ColumnFamilyName Optional[string]
}

// Clear resets the edit to its zero state.
func (v *VersionEdit) Clear() {
	*v = VersionEdit{}
}

// SetComparatorName sets the comparator name.
func (v *VersionEdit) SetComparatorName(name string) { v.ComparatorName = Some(name) }

// SetLogNumber sets the log number.
func (v *VersionEdit) SetLogNumber(num uint64) { v.LogNumber = Some(num) }

// SetPrevLogNumber sets the previous log number.
func (v *VersionEdit) SetPrevLogNumber(num uint64) { v.PrevLogNumber = Some(num) }

// SetNextFile sets the next file number.
func (v *VersionEdit) SetNextFile(num uint64) { v.NextFileNumber = Some(num) }

// SetLastSequence sets the last sequence number.
func (v *VersionEdit) SetLastSequence(seq base.SeqNum) { v.LastSequence = Some(seq) }

// SetMaxColumnFamily sets the largest allocated column family id.
func (v *VersionEdit) SetMaxColumnFamily(id uint32) { v.MaxColumnFamily = Some(id) }

// SetFlushedOpID sets the flushed op id.
func (v *VersionEdit) SetFlushedOpID(id base.OpID) { v.FlushedOpID = id }

// InitNewDB resets the edit to the first record of a new store: the default
// comparator, log number 0, next file number 2 and last sequence 0.
func (v *VersionEdit) InitNewDB() {
	v.Clear()
	v.SetComparatorName(base.DefaultComparer.Name)
	v.SetLogNumber(0)
	v.SetNextFile(2)
	v.SetLastSequence(0)
}

func checkNewFile(level int, m *FileMetadata) {
	if level < 0 || level >= NumLevels {
		panic(errors.AssertionFailedf("vedit: invalid level %d for file %s", errors.Safe(level), m.FD.Number()))
	}
	if m.Smallest.SeqNum > m.Largest.SeqNum {
		panic(errors.AssertionFailedf("vedit: file %s has smallest seqnum %s > largest seqnum %s",
			m.FD.Number(), m.Smallest.SeqNum, m.Largest.SeqNum))
	}
}

// AddFile adds the file at the given level. The metadata is taken as is,
// including any attached reader handle.
//
// REQUIRES: m.Smallest.SeqNum <= m.Largest.SeqNum.
func (v *VersionEdit) AddFile(level int, m *FileMetadata) {
	checkNewFile(level, m)
	v.NewFiles = append(v.NewFiles, NewFileEntry{Level: level, Meta: m})
}

// AddCleanedFile adds a copy of the persisted fields of m at the given level.
// The copy carries no reader handle, reference count or statistics.
//
// REQUIRES: m.Smallest.SeqNum <= m.Largest.SeqNum.
func (v *VersionEdit) AddCleanedFile(level int, m *FileMetadata) {
	checkNewFile(level, m)
	v.NewFiles = append(v.NewFiles, NewFileEntry{Level: level, Meta: m.cleaned()})
}

// AddTestFile adds a file built only from a descriptor and boundaries. Its
// LastOpID is set to (1, largest.SeqNum) as no real replication position is
// known.
//
// REQUIRES: smallest.SeqNum <= largest.SeqNum.
func (v *VersionEdit) AddTestFile(
	level int, fd FileDescriptor, smallest, largest BoundaryValues, markedForCompaction bool,
) {
	m := &FileMetadata{
		FD:                  fd,
		Smallest:            smallest,
		Largest:             largest,
		LastOpID:            base.MakeOpID(1, int64(largest.SeqNum)),
		MarkedForCompaction: markedForCompaction,
		boundsSet:           true,
	}
	checkNewFile(level, m)
	v.NewFiles = append(v.NewFiles, NewFileEntry{Level: level, Meta: m})
}

// DeleteFile deletes the file from the given level.
func (v *VersionEdit) DeleteFile(level int, fileNum base.FileNum) {
	if v.DeletedFiles == nil {
		v.DeletedFiles = make(map[DeletedFileEntry]struct{})
	}
	v.DeletedFiles[DeletedFileEntry{Level: level, FileNum: fileNum}] = struct{}{}
}

// NumEntries returns the number of added and deleted files.
func (v *VersionEdit) NumEntries() int {
	return len(v.NewFiles) + len(v.DeletedFiles)
}

// SetColumnFamily sets the id of the column family the edit applies to.
func (v *VersionEdit) SetColumnFamily(id uint32) {
	v.ColumnFamily = id
}

// IsColumnFamilyAdd returns true if the edit creates a column family.
func (v *VersionEdit) IsColumnFamilyAdd() bool {
	return v.ColumnFamilyName.IsSet()
}

// IsColumnFamilyManipulation returns true if the edit creates or drops a
// column family.
func (v *VersionEdit) IsColumnFamilyManipulation() bool {
	return v.IsColumnFamilyAdd() || v.IsColumnFamilyDrop
}

func (v *VersionEdit) checkColumnFamilyManipulation(op string) {
	if v.IsColumnFamilyManipulation() {
		panic(errors.AssertionFailedf("vedit: %s on an edit that already adds or drops a column family", errors.Safe(op)))
	}
	if n := v.NumEntries(); n != 0 {
		panic(errors.AssertionFailedf("vedit: %s on an edit with %d file entries", errors.Safe(op), errors.Safe(n)))
	}
}

// AddColumnFamily marks the edit as creating a column family with the given
// name. The column family id is set with SetColumnFamily.
//
// REQUIRES: NumEntries() == 0 and the edit neither adds nor drops a column
// family yet.
func (v *VersionEdit) AddColumnFamily(name string) {
	v.checkColumnFamilyManipulation("AddColumnFamily")
	v.ColumnFamilyName = Some(name)
}

// DropColumnFamily marks the edit as dropping the column family. The column
// family id is set with SetColumnFamily.
//
// REQUIRES: NumEntries() == 0 and the edit neither adds nor drops a column
// family yet.
func (v *VersionEdit) DropColumnFamily() {
	v.checkColumnFamilyManipulation("DropColumnFamily")
	v.IsColumnFamilyDrop = true
}

// GetDeletedFiles returns the deleted files ordered by level and file number.
func (v *VersionEdit) GetDeletedFiles() []DeletedFileEntry {
	entries := make([]DeletedFileEntry, 0, len(v.DeletedFiles))
	for e := range v.DeletedFiles {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b DeletedFileEntry) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.FileNum, b.FileNum)
	})
	return entries
}

// GetNewFiles returns the added files in insertion order. The returned slice
// must not be modified.
func (v *VersionEdit) GetNewFiles() []NewFileEntry {
	return slices.Clip(v.NewFiles)
}

// Validate checks the edit for consistency. It is run on every decoded edit
// and before an edit is logged.
func (v *VersionEdit) Validate(cmp base.Compare, formatKey base.FormatKey) error {
	if v.IsColumnFamilyAdd() && v.IsColumnFamilyDrop {
		return base.CorruptionErrorf("edit both adds and drops column family %d", v.ColumnFamily)
	}
	for e := range v.DeletedFiles {
		if e.Level < 0 || e.Level >= NumLevels {
			return base.CorruptionErrorf("deleted file %s has invalid level %d", e.FileNum, e.Level)
		}
		if uint64(e.FileNum) > FileNumberMask {
			return base.CorruptionErrorf("deleted file number %d exceeds mask", uint64(e.FileNum))
		}
	}
	for _, nf := range v.NewFiles {
		if nf.Level < 0 || nf.Level >= NumLevels {
			return base.CorruptionErrorf("new file %s has invalid level %d", nf.Meta.FD.Number(), nf.Level)
		}
		if err := nf.Meta.Validate(cmp, formatKey); err != nil {
			return err
		}
	}
	return nil
}
