// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package readercache

import (
	"sync/atomic"

	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/manifest"
)

// node is an entry in the cache. Normally half the nodes in the cache have an
// open reader, and half do not.
type node struct {
	fileNum base.FileNum
	entry   *entry

	links struct {
		next *node
		prev *node
	}
	status nodeStatus
	// referenced is atomically set to indicate that this entry has been accessed
	// since the last time one of the clock hands swept it.
	referenced atomic.Bool
}

type nodeStatus int8

const (
	test nodeStatus = iota
	cold
	hot
)

func (p nodeStatus) String() string {
	switch p {
	case test:
		return "test"
	case cold:
		return "cold"
	case hot:
		return "hot"
	}
	return "unknown"
}

func (n *node) next() *node {
	if n == nil {
		return nil
	}
	return n.links.next
}

func (n *node) prev() *node {
	if n == nil {
		return nil
	}
	return n.links.prev
}

func (n *node) link(s *node) {
	s.links.prev = n.links.prev
	s.links.prev.links.next = s
	s.links.next = n
	s.links.next.links.prev = s
}

func (n *node) unlink() *node {
	next := n.links.next
	n.links.prev.links.next = n.links.next
	n.links.next.links.prev = n.links.prev
	n.links.prev = n
	n.links.next = n
	return next
}

// entry holds an open table reader.
type entry struct {
	fd manifest.FileDescriptor
	// reader and err can only be used after initialized is closed.
	reader Reader
	err    error

	initialized chan struct{}
	// refs counts the shard's reference (while the entry is resident) plus one
	// per outstanding Handle.
	refs atomic.Int32
}
