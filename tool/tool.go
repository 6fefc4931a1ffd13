// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tool implements the MANIFEST introspection commands of the vedit
// command line tool.
package tool

import (
	"github.com/lsmkit/vedit"
	"github.com/spf13/cobra"
)

// Comparer exports the vedit.Comparer type.
type Comparer = vedit.Comparer

// T is the container for all of the introspection tools.
type T struct {
	Commands  []*cobra.Command
	manifest  *manifestT
	comparers map[string]*Comparer
	extractor vedit.BoundaryValuesExtractor
}

// Option configures a T.
type Option func(*T)

// Comparers registers the given comparers for use by the introspection tools.
func Comparers(cmps ...*Comparer) Option {
	return func(t *T) {
		for _, c := range cmps {
			t.comparers[c.Name] = c
		}
	}
}

// Extractor sets the decoder for frontiers stored in file boundaries. The
// default decodes op id and hybrid time frontiers.
func Extractor(e vedit.BoundaryValuesExtractor) Option {
	return func(t *T) {
		t.extractor = e
	}
}

// New creates a new introspection tool.
func New(opts ...Option) *T {
	t := &T{
		comparers: make(map[string]*Comparer),
		extractor: vedit.FrontierExtractor,
	}
	t.comparers[vedit.DefaultComparer.Name] = vedit.DefaultComparer
	for _, opt := range opts {
		opt(t)
	}

	t.manifest = newManifest(t.comparers, t.extractor)
	t.Commands = []*cobra.Command{
		t.manifest.Root,
	}
	return t
}
