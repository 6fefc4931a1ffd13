// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manifest holds the records that describe a transition of the set of
// on-disk sstables: the per-file metadata (FileMetadata) and the batch of
// changes to that set (VersionEdit), along with the binary encoding written to
// the MANIFEST.
//
// A VersionEdit is built by a single writer (a flush, a compaction, or a
// column family lifecycle change), encoded, appended to the MANIFEST and then
// discarded. FileMetadata records outlive the edit that created them: they are
// shared by every in-memory version that references the file, and are reference
// counted. When the last reference goes away, the file's table reader handle is
// handed to an ObsoleteFilesSet and released later, outside of any lock held
// for the reference counting.
package manifest
