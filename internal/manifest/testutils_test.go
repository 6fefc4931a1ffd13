// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
)

// testFrontier is a UserFrontier holding a single counter.
type testFrontier struct {
	v          uint64
	failEncode bool
}

var _ UserFrontier = (*testFrontier)(nil)

func (f *testFrontier) Clone() UserFrontier {
	c := *f
	return &c
}

func (f *testFrontier) Update(other UserFrontier, typ UpdateUserValueType) {
	o := other.(*testFrontier)
	switch typ {
	case UpdateSmallest:
		f.v = min(f.v, o.v)
	case UpdateLargest:
		f.v = max(f.v, o.v)
	}
}

func (f *testFrontier) Equals(other UserFrontier) bool {
	o, ok := other.(*testFrontier)
	return ok && o.v == f.v
}

func (f *testFrontier) Encode() ([]byte, error) {
	if f.failEncode {
		return nil, errors.New("frontier cannot be encoded")
	}
	return binary.AppendUvarint(nil, f.v), nil
}

func (f *testFrontier) String() string {
	return fmt.Sprintf("{%d}", f.v)
}

type testExtractor struct{}

func (testExtractor) DecodeFrontier(data []byte) (UserFrontier, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 || n != len(data) {
		return nil, errors.Newf("invalid frontier %x", data)
	}
	return &testFrontier{v: v}, nil
}

type testHandle struct {
	num base.FileNum
}

func (h *testHandle) FileNum() base.FileNum { return h.num }

// testCache records every released handle.
type testCache struct {
	mu       sync.Mutex
	released []base.FileNum
}

func (c *testCache) Release(h ReaderHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, h.FileNum())
}

func (c *testCache) Released() []base.FileNum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]base.FileNum(nil), c.released...)
}

func ikey(s string) base.InternalKey {
	k, err := base.ParseInternalKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// boundary builds a BoundaryValues from an internal key string, using the
// key's sequence number as the boundary sequence number.
func boundary(s string) BoundaryValues {
	k := ikey(s)
	return BoundaryValues{Key: k, SeqNum: k.SeqNum()}
}

func newTestFile(num base.FileNum, smallest, largest string) *FileMetadata {
	return &FileMetadata{
		FD:       MakeFileDescriptor(num, 0, 1024, 1024),
		Smallest: boundary(smallest),
		Largest:  boundary(largest),

		boundsSet: true,
	}
}
