// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vedit

import (
	"context"
	"strings"
	"testing"

	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/readercache"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	var nilOpts *Options
	o := nilOpts.EnsureDefaults()
	require.Equal(t, DefaultComparer, o.Comparer)
	require.Equal(t, DefaultComparer.Name, o.ComparerName)
	require.Equal(t, defaultReaderCacheCapacity, o.ReaderCache.Capacity)
	require.Equal(t, defaultReaderCacheShards, o.ReaderCache.Shards)
	require.NotNil(t, o.Logger)
	require.NoError(t, o.Validate())
}

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions(strings.NewReader(`
comparer: leveldb.BytewiseComparator
reader_cache:
  capacity: 64
  shards: 8
verbose: true
`))
	require.NoError(t, err)
	require.Equal(t, "leveldb.BytewiseComparator", o.ComparerName)
	require.Equal(t, 64, o.ReaderCache.Capacity)
	require.Equal(t, 8, o.ReaderCache.Shards)
	require.True(t, o.Verbose)

	o.Logger = base.NoopLogger{}
	o.EnsureDefaults()
	require.NoError(t, o.Validate())

	// The YAML form parses back to the same values.
	o2, err := ParseOptions(strings.NewReader(o.String()))
	require.NoError(t, err)
	require.Equal(t, o.ComparerName, o2.ComparerName)
	require.Equal(t, o.ReaderCache, o2.ReaderCache)
	require.Equal(t, o.Verbose, o2.Verbose)
}

func TestParseOptionsErrors(t *testing.T) {
	_, err := ParseOptions(strings.NewReader("bogus: 1\n"))
	require.ErrorContains(t, err, "vedit: parsing options")

	_, err = ParseOptions(strings.NewReader("reader_cache: [1, 2]\n"))
	require.Error(t, err)

	o, err := ParseOptions(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, &Options{}, o)
}

func TestOptionsValidate(t *testing.T) {
	o := &Options{ComparerName: "other", Logger: base.NoopLogger{}}
	o.EnsureDefaults()
	require.ErrorContains(t, o.Validate(), `comparer "leveldb.BytewiseComparator" does not match configured comparer name "other"`)

	o = &Options{Logger: base.NoopLogger{}}
	o.ReaderCache.Capacity = 2
	o.ReaderCache.Shards = 3
	o.EnsureDefaults()
	require.ErrorContains(t, o.Validate(), "3 shards but a capacity of only 2")
}

func TestOptionsNewReaderCache(t *testing.T) {
	o := &Options{Logger: base.NoopLogger{}}
	o.ReaderCache.Capacity = 4
	o.ReaderCache.Shards = 2
	o.EnsureDefaults()

	var opened []FileNum
	c, err := o.NewReaderCache(func(_ context.Context, fd FileDescriptor) (readercache.Reader, error) {
		opened = append(opened, fd.Number())
		return nopReader{}, nil
	})
	require.NoError(t, err)
	h, err := c.FindOrCreate(context.Background(), MakeFileDescriptor(9, 0, 1, 1))
	require.NoError(t, err)
	c.Release(h)
	c.Close()
	require.Equal(t, []FileNum{9}, opened)
}

type nopReader struct{}

func (nopReader) Close() error { return nil }
