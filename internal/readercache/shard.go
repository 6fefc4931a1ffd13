// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package readercache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/invariants"
	"github.com/lsmkit/vedit/internal/manifest"
)

func fibonacciHash(k *base.FileNum, seed uintptr) uintptr {
	const m = 11400714819323198485
	h := uint64(seed)
	h ^= uint64(*k) * m
	return uintptr(h)
}

var nodeMapOptions = []swiss.Option[base.FileNum, *node]{
	swiss.WithHash[base.FileNum, *node](fibonacciHash),
}

type shard struct {
	hits   atomic.Int64
	misses atomic.Int64

	capacity int

	mu struct {
		sync.RWMutex
		nodes swiss.Map[base.FileNum, *node]

		handHot  *node
		handCold *node
		handTest *node

		coldTarget int
		sizeHot    int
		sizeCold   int
		sizeTest   int
	}
	releasingCh     chan *entry
	releaseLoopExit sync.WaitGroup

	cache *Cache
}

func (s *shard) init(c *Cache, capacity int) {
	s.cache = c
	s.capacity = capacity
	s.mu.nodes.Init(16, nodeMapOptions...)
	s.mu.coldTarget = capacity
	s.releasingCh = make(chan *entry, 100)
	s.releaseLoopExit.Add(1)
	go s.releaseLoop()
}

// releaseLoop runs in the background for each shard, closing the readers of
// entries that are pushed to releasingCh.
func (s *shard) releaseLoop() {
	defer s.releaseLoopExit.Done()
	for e := range s.releasingCh {
		s.closeEntry(e)
	}
}

func (s *shard) closeEntry(e *entry) {
	<-e.initialized
	if e.err != nil {
		return
	}
	if err := e.reader.Close(); err != nil {
		s.cache.logger.Errorf("closing reader for file %s: %v", e.fd.Number(), err)
	}
	s.cache.metrics.openReaders.Dec()
}

func (s *shard) unrefEntry(e *entry) {
	v := e.refs.Add(-1)
	if invariants.Enabled {
		invariants.CheckNonNegative("reader cache entry refs", v)
	}
	if v == 0 {
		s.releasingCh <- e
	}
}

// unlinkNode removes a node from the shard, leaving the shard reference on its
// entry in place.
//
// s.mu must be held when calling this.
func (s *shard) unlinkNode(n *node) {
	s.mu.nodes.Delete(n.fileNum)

	switch n.status {
	case hot:
		s.mu.sizeHot--
	case cold:
		s.mu.sizeCold--
	case test:
		s.mu.sizeTest--
	}

	if n == s.mu.handHot {
		s.mu.handHot = s.mu.handHot.prev()
	}
	if n == s.mu.handCold {
		s.mu.handCold = s.mu.handCold.prev()
	}
	if n == s.mu.handTest {
		s.mu.handTest = s.mu.handTest.prev()
	}

	if n.unlink() == n {
		// This was the last entry in the cache.
		s.mu.handHot = nil
		s.mu.handCold = nil
		s.mu.handTest = nil
	}

	n.links.prev = nil
	n.links.next = nil
}

func (s *shard) clearNode(n *node) {
	if e := n.entry; e != nil {
		n.entry = nil
		s.unrefEntry(e)
	}
}

// findOrCreateEntry returns an initialized entry for the file, taking a
// reference on it. If the file is not already in the cache, its reader is
// opened (evicting as necessary).
//
// The caller is responsible for unrefing the entry.
func (s *shard) findOrCreateEntry(ctx context.Context, fd manifest.FileDescriptor) *entry {
	fileNum := fd.Number()
	// Fast-path for a hit in the cache.
	s.mu.RLock()
	if n, ok := s.mu.nodes.Get(fileNum); ok && n.entry != nil {
		e := n.entry
		e.refs.Add(1)
		s.mu.RUnlock()
		if !n.referenced.Load() {
			n.referenced.Store(true)
		}
		s.hit()
		<-e.initialized
		return e
	}
	s.mu.RUnlock()

	s.mu.Lock()

	n, _ := s.mu.nodes.Get(fileNum)
	switch {
	case n == nil:
		// Slow-path miss of a non-existent node.
		n = &node{}
		s.addNode(n, fileNum, cold)
		s.mu.sizeCold++

	case n.entry != nil:
		// Slow-path hit of a hot or cold node.
		e := n.entry
		e.refs.Add(1)
		n.referenced.Store(true)
		s.hit()
		s.mu.Unlock()
		<-e.initialized
		return e

	default:
		// Slow-path miss of a test node.
		s.unlinkNode(n)
		s.mu.coldTarget++
		if s.mu.coldTarget > s.capacity {
			s.mu.coldTarget = s.capacity
		}

		n.referenced.Store(false)
		s.addNode(n, fileNum, hot)
		s.mu.sizeHot++
	}

	e := &entry{
		fd:          fd,
		initialized: make(chan struct{}),
	}
	// One reference for the shard, one for the caller.
	e.refs.Store(2)
	n.entry = e
	s.misses.Add(1)
	s.cache.metrics.misses.Inc()

	s.mu.Unlock()

	e.reader, e.err = s.cache.open(ctx, fd)
	if e.err == nil {
		s.cache.metrics.openReaders.Inc()
	} else {
		e.err = errors.Wrapf(e.err, "opening reader for file %s", fileNum)
		s.mu.Lock()
		// Look up the node again as it might have already been removed.
		if n, ok := s.mu.nodes.Get(fileNum); ok && n.entry == e {
			s.unlinkNode(n)
			s.clearNode(n)
		}
		s.mu.Unlock()
	}
	close(e.initialized)
	return e
}

func (s *shard) hit() {
	s.hits.Add(1)
	s.cache.metrics.hits.Inc()
}

func (s *shard) addNode(n *node, fileNum base.FileNum, status nodeStatus) {
	n.fileNum = fileNum
	n.status = status

	s.evictNodes()
	s.mu.nodes.Put(n.fileNum, n)

	n.links.next = n
	n.links.prev = n
	if s.mu.handHot == nil {
		// First element.
		s.mu.handHot = n
		s.mu.handCold = n
		s.mu.handTest = n
	} else {
		s.mu.handHot.link(n)
	}

	if s.mu.handCold == s.mu.handHot {
		s.mu.handCold = s.mu.handCold.prev()
	}
}

func (s *shard) evictNodes() {
	for s.capacity <= s.mu.sizeHot+s.mu.sizeCold && s.mu.handCold != nil {
		s.runHandCold()
	}
}

func (s *shard) runHandCold() {
	n := s.mu.handCold
	if n.status == cold {
		if n.referenced.Load() {
			n.referenced.Store(false)
			n.status = hot
			s.mu.sizeCold--
			s.mu.sizeHot++
		} else {
			s.clearNode(n)
			n.status = test
			s.mu.sizeCold--
			s.mu.sizeTest++
			for s.capacity < s.mu.sizeTest && s.mu.handTest != nil {
				s.runHandTest()
			}
		}
	}

	s.mu.handCold = s.mu.handCold.next()

	for s.capacity-s.mu.coldTarget <= s.mu.sizeHot && s.mu.handHot != nil {
		s.runHandHot()
	}
}

func (s *shard) runHandHot() {
	if s.mu.handHot == s.mu.handTest && s.mu.handTest != nil {
		s.runHandTest()
		if s.mu.handHot == nil {
			return
		}
	}

	n := s.mu.handHot
	if n.status == hot {
		if n.referenced.Load() {
			n.referenced.Store(false)
		} else {
			n.status = cold
			s.mu.sizeHot--
			s.mu.sizeCold++
		}
	}

	s.mu.handHot = s.mu.handHot.next()
}

func (s *shard) runHandTest() {
	if s.mu.sizeCold > 0 && s.mu.handTest == s.mu.handCold && s.mu.handCold != nil {
		s.runHandCold()
		if s.mu.handTest == nil {
			return
		}
	}

	n := s.mu.handTest
	if n.status == test {
		s.mu.coldTarget--
		if s.mu.coldTarget < 0 {
			s.mu.coldTarget = 0
		}
		s.unlinkNode(n)
		s.clearNode(n)
	}

	s.mu.handTest = s.mu.handTest.next()
}

// evict removes the file from the shard. If the file has an open reader with no
// outstanding handles, it is closed before the function returns; otherwise it
// is closed when the last handle is released.
func (s *shard) evict(fileNum base.FileNum) {
	s.mu.Lock()
	var e *entry
	if n, ok := s.mu.nodes.Get(fileNum); ok {
		s.unlinkNode(n)
		e = n.entry
		n.entry = nil
	}
	s.mu.Unlock()

	if e != nil && e.refs.Add(-1) == 0 {
		s.closeEntry(e)
	}
}

// close releases all resident readers. There must not be any outstanding
// handles.
func (s *shard) close() {
	s.mu.Lock()
	for s.mu.handHot != nil {
		n := s.mu.handHot
		if e := n.entry; e != nil {
			if e.refs.Add(-1) != 0 {
				s.mu.Unlock()
				panic(errors.AssertionFailedf("reader for file %s has outstanding handles", n.fileNum))
			}
			s.releasingCh <- e
		}
		s.unlinkNode(n)
	}
	s.mu.Unlock()

	close(s.releasingCh)
	s.releaseLoopExit.Wait()
}

// residentCounts returns the number of nodes with an entry and the number of
// test nodes.
func (s *shard) residentCounts() (withEntry, test int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.sizeHot + s.mu.sizeCold, s.mu.sizeTest
}
