// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"cmp"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
)

// ReaderHandle is a reference to an open table reader held by a ReaderCache.
type ReaderHandle interface {
	// FileNum returns the number of the file the reader was opened for.
	FileNum() base.FileNum
}

// ReaderCache is the cache that hands out ReaderHandles. Release may perform
// I/O (closing the reader) and must not be called while holding locks used for
// reference counting.
type ReaderCache interface {
	Release(ReaderHandle)
}

// ObsoleteFilesSet accumulates files that now have zero references.
type ObsoleteFilesSet interface {
	// AddFile records a file whose reference count fell to zero, along with
	// the reader handle detached from it (nil if none was attached).
	AddFile(m *FileMetadata, h ReaderHandle)
}

// assertNoObsoleteFiles is an ObsoleteFilesSet implementation that panics if
// its methods are called. It is used where dropping a reference must never
// retire a file, for example when releasing a version that is not the last
// holder of its files.
type assertNoObsoleteFiles struct{}

// Assert that assertNoObsoleteFiles implements ObsoleteFilesSet.
var _ ObsoleteFilesSet = assertNoObsoleteFiles{}

// AddFile implements ObsoleteFilesSet.
func (assertNoObsoleteFiles) AddFile(m *FileMetadata, _ ReaderHandle) {
	panic(errors.AssertionFailedf("file %s dereferenced to zero unexpectedly", m.FD.Number()))
}

// AssertNoObsoleteFiles returns an ObsoleteFilesSet that panics when a file is
// retired.
func AssertNoObsoleteFiles() ObsoleteFilesSet { return assertNoObsoleteFiles{} }

// ObsoleteFile is a retired file awaiting disposal.
type ObsoleteFile struct {
	FileNum base.FileNum
	PathID  uint32
	Size    uint64
	Handle  ReaderHandle
}

// ObsoleteFiles is an ObsoleteFilesSet that queues retired files. Release
// disposes of the queued reader handles outside of the queue's lock and
// returns the files, which are then candidates for deletion.
type ObsoleteFiles struct {
	mu      sync.Mutex
	pending []ObsoleteFile
	logger  base.Logger
}

// Assert that *ObsoleteFiles implements ObsoleteFilesSet.
var _ ObsoleteFilesSet = (*ObsoleteFiles)(nil)

// NewObsoleteFiles constructs an empty ObsoleteFiles.
func NewObsoleteFiles(logger base.Logger) *ObsoleteFiles {
	if logger == nil {
		logger = base.NoopLogger{}
	}
	return &ObsoleteFiles{logger: logger}
}

// AddFile implements ObsoleteFilesSet.
func (o *ObsoleteFiles) AddFile(m *FileMetadata, h ReaderHandle) {
	f := ObsoleteFile{
		FileNum: m.FD.Number(),
		PathID:  m.FD.PathID(),
		Size:    m.FD.TotalFileSize,
		Handle:  h,
	}
	o.mu.Lock()
	o.pending = append(o.pending, f)
	o.mu.Unlock()
}

// Len returns the number of files awaiting disposal.
func (o *ObsoleteFiles) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Release releases the reader handle of every queued file to cache and
// returns the queued files sorted by file number. Each handle is released
// exactly once. cache may be nil only if no queued file holds a handle;
// otherwise Release panics and the queue is left intact.
func (o *ObsoleteFiles) Release(cache ReaderCache) []ObsoleteFile {
	o.mu.Lock()
	files := o.pending
	if cache == nil {
		for i := range files {
			if files[i].Handle != nil {
				o.mu.Unlock()
				panic(errors.AssertionFailedf(
					"vedit: obsolete file %s holds a reader handle but no ReaderCache was given",
					files[i].FileNum))
			}
		}
	}
	o.pending = nil
	o.mu.Unlock()

	for i := range files {
		if files[i].Handle == nil {
			continue
		}
		cache.Release(files[i].Handle)
		files[i].Handle = nil
	}
	slices.SortFunc(files, func(a, b ObsoleteFile) int {
		return cmp.Compare(a.FileNum, b.FileNum)
	})
	if len(files) > 0 {
		o.logger.Infof("released %d obsolete files", len(files))
	}
	return files
}
