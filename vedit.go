// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vedit provides the MANIFEST layer of an LSM storage engine: the
// version edits that record every change to the set of live table files,
// their durable encoding, and the log that persists them.
package vedit // import "github.com/lsmkit/vedit"

import (
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/frontier"
	"github.com/lsmkit/vedit/internal/manifest"
	"github.com/lsmkit/vedit/internal/readercache"
)

// SeqNum exports the base.SeqNum type.
type SeqNum = base.SeqNum

// FileNum exports the base.FileNum type.
type FileNum = base.FileNum

// OpID exports the base.OpID type.
type OpID = base.OpID

// InternalKey exports the base.InternalKey type.
type InternalKey = base.InternalKey

// InternalKeyKind exports the base.InternalKeyKind type.
type InternalKeyKind = base.InternalKeyKind

// These constants are part of the file format, and should not be changed.
const (
	InternalKeyKindDelete       = base.InternalKeyKindDelete
	InternalKeyKindSet          = base.InternalKeyKindSet
	InternalKeyKindMerge        = base.InternalKeyKindMerge
	InternalKeyKindLogData      = base.InternalKeyKindLogData
	InternalKeyKindSingleDelete = base.InternalKeyKindSingleDelete
	InternalKeyKindRangeDelete  = base.InternalKeyKindRangeDelete
	InternalKeyKindSeparator    = base.InternalKeyKindSeparator
	InternalKeyKindMax          = base.InternalKeyKindMax
	InternalKeyKindInvalid      = base.InternalKeyKindInvalid
)

// SeqNumMax is the largest valid sequence number.
const SeqNumMax = base.SeqNumMax

// MakeInternalKey constructs an internal key from a specified user key,
// sequence number and kind.
func MakeInternalKey(userKey []byte, seqNum SeqNum, kind InternalKeyKind) InternalKey {
	return base.MakeInternalKey(userKey, seqNum, kind)
}

// MakeOpID constructs an OpID.
func MakeOpID(term, index int64) OpID {
	return base.MakeOpID(term, index)
}

// Comparer exports the base.Comparer type.
type Comparer = base.Comparer

// DefaultComparer exports the base.DefaultComparer variable.
var DefaultComparer = base.DefaultComparer

// Logger exports the base.Logger type.
type Logger = base.Logger

// VersionEdit exports the manifest.VersionEdit type.
type VersionEdit = manifest.VersionEdit

// DeletedFileEntry exports the manifest.DeletedFileEntry type.
type DeletedFileEntry = manifest.DeletedFileEntry

// NewFileEntry exports the manifest.NewFileEntry type.
type NewFileEntry = manifest.NewFileEntry

// NumLevels is the number of levels a file may be added to.
const NumLevels = manifest.NumLevels

// FileMetadata exports the manifest.FileMetadata type.
type FileMetadata = manifest.FileMetadata

// FileDescriptor exports the manifest.FileDescriptor type.
type FileDescriptor = manifest.FileDescriptor

// BoundaryValues exports the manifest.BoundaryValues type.
type BoundaryValues = manifest.BoundaryValues

// UserFrontier exports the manifest.UserFrontier type.
type UserFrontier = manifest.UserFrontier

// BoundaryValuesExtractor exports the manifest.BoundaryValuesExtractor type.
type BoundaryValuesExtractor = manifest.BoundaryValuesExtractor

// ApplyCapability exports the manifest.ApplyCapability type.
type ApplyCapability = manifest.ApplyCapability

// ObsoleteFiles exports the manifest.ObsoleteFiles type.
type ObsoleteFiles = manifest.ObsoleteFiles

// ReaderCache exports the readercache.Cache type.
type ReaderCache = readercache.Cache

// ReaderOpenFn exports the readercache.OpenFn type.
type ReaderOpenFn = readercache.OpenFn

// FrontierExtractor decodes the frontiers of a replicated store: an op id and
// a hybrid time watermark per file boundary.
var FrontierExtractor BoundaryValuesExtractor = frontier.Extractor{}

// MakeFileDescriptor packs a file number and path id together with the file
// sizes.
func MakeFileDescriptor(fileNum FileNum, pathID uint32, totalSize, baseSize uint64) FileDescriptor {
	return manifest.MakeFileDescriptor(fileNum, pathID, totalSize, baseSize)
}

// NewObsoleteFiles constructs an empty ObsoleteFiles.
func NewObsoleteFiles(logger Logger) *ObsoleteFiles {
	return manifest.NewObsoleteFiles(logger)
}

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}

// ErrEncodingFault exports the manifest.ErrEncodingFault error.
var ErrEncodingFault = manifest.ErrEncodingFault
