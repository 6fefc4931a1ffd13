// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package readercache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/manifest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testReader struct {
	fileNum base.FileNum
	closed  *testClosed
	failErr error
}

func (r *testReader) Close() error {
	r.closed.add(r.fileNum)
	return r.failErr
}

type testClosed struct {
	mu    sync.Mutex
	files []base.FileNum
}

func (c *testClosed) add(n base.FileNum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, n)
}

func (c *testClosed) count(n base.FileNum) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var k int
	for _, f := range c.files {
		if f == n {
			k++
		}
	}
	return k
}

func (c *testClosed) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

func newTestCache(t *testing.T, capacity, shards int, closed *testClosed) *Cache {
	c, err := New(Options{
		Capacity: capacity,
		Shards:   shards,
		Open: func(_ context.Context, fd manifest.FileDescriptor) (Reader, error) {
			return &testReader{fileNum: fd.Number(), closed: closed}, nil
		},
	})
	require.NoError(t, err)
	return c
}

func fd(n base.FileNum) manifest.FileDescriptor {
	return manifest.MakeFileDescriptor(n, 0, 100, 100)
}

func TestBasic(t *testing.T) {
	closed := &testClosed{}
	c := newTestCache(t, 10, 1, closed)
	ctx := context.Background()

	for i := range 100 {
		n := base.FileNum(i % 10)
		h, err := c.FindOrCreate(ctx, fd(n))
		require.NoError(t, err)
		require.Equal(t, n, h.FileNum())
		require.Equal(t, n, h.Reader().(*testReader).fileNum)
		c.Release(h)
	}
	m := c.Metrics()
	require.Equal(t, int64(10), m.Misses)
	require.Equal(t, int64(90), m.Hits)
	require.Equal(t, int64(10), m.Count)
	require.Equal(t, 0, closed.len())

	c.Close()
	require.Equal(t, 10, closed.len())
}

func TestEvictionBoundsOpenReaders(t *testing.T) {
	closed := &testClosed{}
	c := newTestCache(t, 8, 2, closed)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))

	for range 1000 {
		h, err := c.FindOrCreate(ctx, fd(base.FileNum(rng.IntN(64))))
		require.NoError(t, err)
		c.Release(h)
		require.LessOrEqual(t, c.Metrics().Count, int64(8))
	}
	m := c.Metrics()
	c.Close()
	require.Equal(t, int(m.Misses), closed.len())
}

func TestEvict(t *testing.T) {
	closed := &testClosed{}
	c := newTestCache(t, 10, 1, closed)
	ctx := context.Background()

	h, err := c.FindOrCreate(ctx, fd(1))
	require.NoError(t, err)
	c.Release(h)
	c.Evict(1)
	require.Equal(t, 1, closed.count(1))

	// An evicted file with an outstanding handle stays open until the handle is
	// released.
	h, err = c.FindOrCreate(ctx, fd(1))
	require.NoError(t, err)
	c.Evict(1)
	require.Equal(t, 1, closed.count(1))
	c.Release(h)
	c.Close()
	require.Equal(t, 2, closed.count(1))

	// Evicting an unknown file is a no-op.
	c = newTestCache(t, 10, 1, closed)
	c.Evict(99)
	c.Close()
}

func TestReleaseTwicePanics(t *testing.T) {
	c := newTestCache(t, 10, 1, &testClosed{})
	h, err := c.FindOrCreate(context.Background(), fd(3))
	require.NoError(t, err)
	c.Release(h)
	require.Panics(t, func() { c.Release(h) })
	c.Close()
}

func TestClosePanicsWithOutstandingHandles(t *testing.T) {
	c := newTestCache(t, 10, 1, &testClosed{})
	_, err := c.FindOrCreate(context.Background(), fd(3))
	require.NoError(t, err)
	require.Panics(t, c.Close)
}

func TestOpenError(t *testing.T) {
	var calls int
	c, err := New(Options{
		Capacity: 10,
		Shards:   1,
		Open: func(_ context.Context, fd manifest.FileDescriptor) (Reader, error) {
			calls++
			if calls == 1 {
				return nil, errors.Newf("injected error for %s", fd.Number())
			}
			return &testReader{fileNum: fd.Number(), closed: &testClosed{}}, nil
		},
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.FindOrCreate(ctx, fd(5))
	require.ErrorContains(t, err, "injected error for 000005")
	require.ErrorContains(t, err, "opening reader for file 000005")
	require.Equal(t, int64(0), c.Metrics().Count)

	// The failure is not cached.
	h, err := c.FindOrCreate(ctx, fd(5))
	require.NoError(t, err)
	c.Release(h)
	require.Equal(t, 2, calls)
	c.Close()
}

func TestCloseErrorIsLogged(t *testing.T) {
	logger := &testLogger{}
	closed := &testClosed{}
	c, err := New(Options{
		Capacity: 4,
		Shards:   1,
		Logger:   logger,
		Open: func(_ context.Context, fd manifest.FileDescriptor) (Reader, error) {
			return &testReader{fileNum: fd.Number(), closed: closed, failErr: errors.New("disk gone")}, nil
		},
	})
	require.NoError(t, err)
	h, err := c.FindOrCreate(context.Background(), fd(7))
	require.NoError(t, err)
	c.Release(h)
	c.Evict(7)
	require.Equal(t, []string{"closing reader for file 000007: disk gone"}, logger.errors())
	c.Close()
}

type testLogger struct {
	mu   sync.Mutex
	errs []string
}

func (l *testLogger) Infof(string, ...interface{}) {}

func (l *testLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

func (l *testLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func (l *testLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}

func TestConcurrentFindOrCreate(t *testing.T) {
	closed := &testClosed{}
	c := newTestCache(t, 16, 4, closed)
	ctx := context.Background()

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(w), 7))
			for range 500 {
				n := base.FileNum(rng.IntN(40))
				h, err := c.FindOrCreate(ctx, fd(n))
				if err != nil {
					return err
				}
				if got := h.Reader().(*testReader).fileNum; got != n {
					return errors.Newf("reader for %s opened for %s", n, got)
				}
				c.Release(h)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	m := c.Metrics()
	c.Close()
	require.Equal(t, int(m.Misses), closed.len())
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(Options{
		Capacity:   4,
		Shards:     1,
		Registerer: reg,
		Open: func(_ context.Context, fd manifest.FileDescriptor) (Reader, error) {
			return &testReader{fileNum: fd.Number(), closed: &testClosed{}}, nil
		},
	})
	require.NoError(t, err)
	ctx := context.Background()
	for _, n := range []base.FileNum{1, 2, 1} {
		h, err := c.FindOrCreate(ctx, fd(n))
		require.NoError(t, err)
		c.Release(h)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			values[mf.GetName()] = m.GetCounter().GetValue()
		} else {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, map[string]float64{
		"vedit_reader_cache_hits_total":     1,
		"vedit_reader_cache_misses_total":   2,
		"vedit_reader_cache_releases_total": 3,
		"vedit_reader_cache_open_readers":   2,
	}, values)
	c.Close()

	// Registering a second cache with the same registry fails.
	_, err = New(Options{Registerer: reg, Open: c.open})
	require.Error(t, err)
}

// TestObsoleteFileRelease follows a file from creation through retirement:
// the handle attached to its metadata is released exactly once, by the
// obsolete files queue, after the last reference is dropped.
func TestObsoleteFileRelease(t *testing.T) {
	closed := &testClosed{}
	c := newTestCache(t, 10, 1, closed)
	ctx := context.Background()
	obsolete := manifest.NewObsoleteFiles(base.NoopLogger{})

	m := &manifest.FileMetadata{FD: fd(42)}
	m.Ref()
	h, err := c.FindOrCreate(ctx, m.FD)
	require.NoError(t, err)
	m.AttachReaderHandle(h)

	m.Ref()
	m.Unref(obsolete)
	require.Equal(t, 0, obsolete.Len())

	m.Unref(obsolete)
	require.Nil(t, m.ReaderHandle())
	require.Equal(t, 1, obsolete.Len())

	files := obsolete.Release(c)
	require.Len(t, files, 1)
	require.Equal(t, base.FileNum(42), files[0].FileNum)
	require.Nil(t, files[0].Handle)
	require.True(t, h.released.Load())

	// The reader stays resident until evicted.
	require.Equal(t, 0, closed.count(42))
	c.Evict(42)
	require.Equal(t, 1, closed.count(42))
	c.Close()
	require.Equal(t, 1, closed.count(42))
}

func TestMetricsRegistrationRollback(t *testing.T) {
	reg := prometheus.NewRegistry()
	conflict := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vedit",
		Subsystem: "reader_cache",
		Name:      "open_readers",
	})
	require.NoError(t, reg.Register(conflict))
	open := func(_ context.Context, fd manifest.FileDescriptor) (Reader, error) {
		return &testReader{fileNum: fd.Number(), closed: &testClosed{}}, nil
	}
	_, err := New(Options{Registerer: reg, Open: open})
	require.ErrorContains(t, err, "registering metrics")

	// The counters registered ahead of the conflict are gone again, so a
	// retry on the same registry succeeds.
	require.True(t, reg.Unregister(conflict))
	c, err := New(Options{Registerer: reg, Open: open})
	require.NoError(t, err)
	c.Close()
}
