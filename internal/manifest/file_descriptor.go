// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
)

// FileNumberMask is the largest file number that can be packed together with
// a path id. The two high bits of a packed value hold the path id.
const FileNumberMask uint64 = 1<<62 - 1

// MaxPathID is the largest path id that can be packed.
const MaxPathID uint32 = 3

// PackFileNumberAndPathID combines a file number and a path id into the
// persisted 64-bit form pathID*(FileNumberMask+1) + number.
//
// REQUIRES: number <= FileNumberMask, pathID <= MaxPathID.
func PackFileNumberAndPathID(number base.FileNum, pathID uint32) uint64 {
	if uint64(number) > FileNumberMask {
		panic(errors.AssertionFailedf("file number %d exceeds mask %#x", errors.Safe(uint64(number)), errors.Safe(FileNumberMask)))
	}
	if pathID > MaxPathID {
		panic(errors.AssertionFailedf("path id %d exceeds %d", errors.Safe(pathID), errors.Safe(MaxPathID)))
	}
	return uint64(pathID)*(FileNumberMask+1) + uint64(number)
}

// FileDescriptor identifies an sstable and records its size. An sstable is
// either a single file, or a base (metadata) file plus separate data files;
// BaseFileSize is the size of the base file and TotalFileSize the size of all
// of them.
//
// A FileDescriptor is a plain value. Many copies exist across versions, so the
// open table reader for a file is attached to its FileMetadata instead.
type FileDescriptor struct {
	packedNumberAndPathID uint64
	TotalFileSize         uint64
	BaseFileSize          uint64
}

// MakeFileDescriptor constructs a FileDescriptor.
func MakeFileDescriptor(
	number base.FileNum, pathID uint32, totalFileSize, baseFileSize uint64,
) FileDescriptor {
	return FileDescriptor{
		packedNumberAndPathID: PackFileNumberAndPathID(number, pathID),
		TotalFileSize:         totalFileSize,
		BaseFileSize:          baseFileSize,
	}
}

// Number returns the file number.
func (fd FileDescriptor) Number() base.FileNum {
	return base.FileNum(fd.packedNumberAndPathID & FileNumberMask)
}

// PathID returns the index of the storage directory holding the file.
func (fd FileDescriptor) PathID() uint32 {
	return uint32(fd.packedNumberAndPathID / (FileNumberMask + 1))
}

// Packed returns the persisted form of the file number and path id.
func (fd FileDescriptor) Packed() uint64 {
	return fd.packedNumberAndPathID
}

// String implements fmt.Stringer.
func (fd FileDescriptor) String() string {
	return fmt.Sprintf("%s path:%d size:%d base:%d",
		fd.Number(), fd.PathID(), fd.TotalFileSize, fd.BaseFileSize)
}
