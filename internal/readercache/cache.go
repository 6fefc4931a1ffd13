// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package readercache implements a cache of open table readers keyed by file
// number. It hands out the manifest.ReaderHandles that FileMetadata carries
// and takes them back when obsolete files are released.
package readercache

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/manifest"
	"github.com/prometheus/client_golang/prometheus"
)

// Reader is an open table reader.
type Reader interface {
	io.Closer
}

// OpenFn opens the reader for a file. It is guaranteed that there are no
// concurrent calls with the same file number.
type OpenFn func(ctx context.Context, fd manifest.FileDescriptor) (Reader, error)

// Options configure a Cache.
type Options struct {
	// Capacity is the number of readers kept open across all shards.
	Capacity int
	// Shards is the number of independently locked shards.
	Shards int
	// Open is called on a miss.
	Open OpenFn
	// Logger receives reader close failures.
	Logger base.Logger
	// Registerer, if set, receives the cache's prometheus collectors.
	Registerer prometheus.Registerer
}

// EnsureDefaults fills in defaults for unset fields.
func (o *Options) EnsureDefaults() {
	if o.Capacity <= 0 {
		o.Capacity = 1000
	}
	if o.Shards <= 0 {
		o.Shards = 4
	}
	if o.Shards > o.Capacity {
		o.Shards = o.Capacity
	}
	if o.Logger == nil {
		o.Logger = base.NoopLogger{}
	}
}

// Cache implements a sharded cache of open readers using the CLOCK-Pro
// algorithm. Readers are opened on demand and closed once they are evicted
// and every Handle on them has been released.
type Cache struct {
	shards  []shard
	open    OpenFn
	logger  base.Logger
	metrics cacheMetrics
}

var _ manifest.ReaderCache = (*Cache)(nil)

// New creates a Cache.
func New(opts Options) (*Cache, error) {
	opts.EnsureDefaults()
	if opts.Open == nil {
		return nil, errors.New("readercache: Open must be set")
	}
	c := &Cache{
		open:    opts.Open,
		logger:  opts.Logger,
		metrics: makeCacheMetrics(),
	}
	if opts.Registerer != nil {
		if err := c.metrics.register(opts.Registerer); err != nil {
			return nil, errors.Wrap(err, "readercache: registering metrics")
		}
	}
	c.shards = make([]shard, opts.Shards)
	shardCapacity := (opts.Capacity + opts.Shards - 1) / opts.Shards
	for i := range c.shards {
		c.shards[i].init(c, shardCapacity)
	}
	return c, nil
}

// Close the cache, closing all resident readers. There must not be any
// outstanding handles.
func (c *Cache) Close() {
	for i := range c.shards {
		c.shards[i].close()
	}
	c.shards = nil
}

// FindOrCreate returns a handle on the reader for the file, opening it if it
// is not resident. The handle must be released through Release, either
// directly or by attaching it to the file's FileMetadata and releasing the
// file once it becomes obsolete.
func (c *Cache) FindOrCreate(ctx context.Context, fd manifest.FileDescriptor) (*Handle, error) {
	s := c.getShard(fd.Number())
	e := s.findOrCreateEntry(ctx, fd)
	if err := e.err; err != nil {
		s.unrefEntry(e)
		return nil, err
	}
	return &Handle{shard: s, entry: e}, nil
}

// Release implements manifest.ReaderCache. Releasing a handle twice is a
// programming error.
func (c *Cache) Release(h manifest.ReaderHandle) {
	handle, ok := h.(*Handle)
	if !ok {
		panic(errors.AssertionFailedf("readercache: cannot release %T", h))
	}
	if handle.released.Swap(true) {
		panic(errors.AssertionFailedf("readercache: handle for file %s released twice", handle.FileNum()))
	}
	c.metrics.releases.Inc()
	handle.shard.unrefEntry(handle.entry)
}

// Evict removes the file from the cache. Its reader is closed once every
// handle on it has been released.
func (c *Cache) Evict(fileNum base.FileNum) {
	c.getShard(fileNum).evict(fileNum)
}

func (c *Cache) getShard(fileNum base.FileNum) *shard {
	return &c.shards[uint64(fileNum)%uint64(len(c.shards))]
}

// Handle holds a reference on an open reader; the reader is kept open even if
// the cache decides to evict it.
type Handle struct {
	shard    *shard
	entry    *entry
	released atomic.Bool
}

var _ manifest.ReaderHandle = (*Handle)(nil)

// FileNum implements manifest.ReaderHandle.
func (h *Handle) FileNum() base.FileNum {
	return h.entry.fd.Number()
}

// Reader returns the open reader. It can only be used until the handle is
// released.
func (h *Handle) Reader() Reader {
	return h.entry.reader
}
