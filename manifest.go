// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vedit

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/manifest"
	"github.com/lsmkit/vedit/record"
	"github.com/prometheus/client_golang/prometheus"
)

// Manifest appends version edits to a MANIFEST log. Edits are logged one at a
// time: LogAndApply serializes writers and runs the caller's apply step while
// the edit's record is the last one in the log.
type Manifest struct {
	opts       *Options
	serializer manifest.LogAndApplySerializer

	// The fields below are protected by serializer.
	w   *record.Writer
	buf []byte
	// err is set once a record write fails. The MANIFEST is then in an unknown
	// state and no further edits are accepted.
	err      error
	numEdits int

	metrics manifestMetrics
}

type manifestMetrics struct {
	edits        prometheus.Counter
	bytesWritten prometheus.Counter
}

func makeManifestMetrics() manifestMetrics {
	return manifestMetrics{
		edits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vedit",
			Subsystem: "manifest",
			Name:      "edits_total",
			Help:      "Number of version edits appended to the MANIFEST.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vedit",
			Subsystem: "manifest",
			Name:      "bytes_written_total",
			Help:      "Number of bytes appended to the MANIFEST.",
		}),
	}
}

// registerCollectors registers cs with reg. If any registration fails, the
// collectors registered so far are unregistered again.
func registerCollectors(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for i, c := range cs {
		if err := reg.Register(c); err != nil {
			for _, r := range cs[:i] {
				reg.Unregister(r)
			}
			return err
		}
	}
	return nil
}

// CreateManifest starts a new MANIFEST on w. The first record is the edit of a
// new store: the comparer name, log number 0, next file number 2 and last
// sequence number 0.
func CreateManifest(w io.Writer, opts *Options) (*Manifest, error) {
	opts = opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &Manifest{
		opts:    opts,
		w:       record.NewWriter(w),
		metrics: makeManifestMetrics(),
	}

	var ve VersionEdit
	ve.InitNewDB()
	ve.SetComparatorName(opts.Comparer.Name)
	if err := m.LogAndApply(&ve, nil); err != nil {
		return nil, err
	}
	// A failed create leaves the registry untouched.
	if opts.Registerer != nil {
		if err := registerCollectors(opts.Registerer, m.metrics.edits, m.metrics.bytesWritten); err != nil {
			return nil, errors.Wrap(err, "vedit: registering manifest metrics")
		}
	}
	opts.Logger.Infof("created MANIFEST with comparer %q", opts.Comparer.Name)
	return m, nil
}

// LogAndApply validates ve, appends it to the MANIFEST as a single record and
// then calls apply, if non-nil, before any other edit can be logged. The
// capability passed to apply grants access to file statistics.
//
// An edit that fails validation or encoding leaves the MANIFEST untouched. A
// failed write leaves the MANIFEST in an unknown state; the error is returned
// from this and every later call.
func (m *Manifest) LogAndApply(ve *VersionEdit, apply func(*ApplyCapability) error) error {
	return m.serializer.Do(func(c *manifest.ApplyCapability) error {
		if m.err != nil {
			return m.err
		}
		if err := ve.Validate(m.opts.Comparer.Compare, m.opts.Comparer.FormatKey); err != nil {
			return errors.Wrap(err, "vedit: invalid version edit")
		}
		buf, err := ve.AppendEncodedTo(m.buf[:0])
		if err != nil {
			return err
		}
		m.buf = buf
		before := m.w.Size()
		if _, err := m.w.WriteRecord(buf); err != nil {
			m.err = errors.Wrap(err, "vedit: MANIFEST write failed")
			m.opts.Logger.Errorf("%v", m.err)
			return m.err
		}
		if err := m.w.Flush(); err != nil {
			m.err = errors.Wrap(err, "vedit: MANIFEST flush failed")
			m.opts.Logger.Errorf("%v", m.err)
			return m.err
		}
		m.numEdits++
		m.metrics.edits.Inc()
		m.metrics.bytesWritten.Add(float64(m.w.Size() - before))

		if apply == nil {
			return nil
		}
		return apply(c)
	})
}

// Size returns the number of bytes written to the MANIFEST.
func (m *Manifest) Size() int64 {
	var size int64
	_ = m.serializer.Do(func(*manifest.ApplyCapability) error {
		size = m.w.Size()
		return nil
	})
	return size
}

// NumEdits returns the number of edits logged, including the initial one.
func (m *Manifest) NumEdits() int {
	var n int
	_ = m.serializer.Do(func(*manifest.ApplyCapability) error {
		n = m.numEdits
		return nil
	})
	return n
}

// Close flushes the MANIFEST. No edits may be logged afterwards.
func (m *Manifest) Close() error {
	return m.serializer.Do(func(*manifest.ApplyCapability) error {
		if m.err != nil {
			return m.err
		}
		m.err = errors.New("vedit: MANIFEST closed")
		return m.w.Close()
	})
}

// ReplayManifest decodes every edit in the MANIFEST read from r and passes it
// to fn, in order. Each edit is validated with cmp and the first edit's
// comparer name, if any, must match cmp.Name. A torn final record is reported
// as an error; callers recovering a crashed store may treat
// record.IsInvalidRecord errors as the end of the log.
//
// The edit passed to fn is only valid for the duration of the call.
func ReplayManifest(
	r io.Reader, cmp *Comparer, extractor BoundaryValuesExtractor, fn func(*VersionEdit) error,
) error {
	if cmp == nil {
		cmp = DefaultComparer
	}
	rr := record.NewReader(r)
	var ve VersionEdit
	for i := 0; ; i++ {
		rec, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "vedit: reading MANIFEST edit %d", i)
		}
		if err := ve.DecodeFrom(extractor, rec); err != nil {
			return errors.Wrapf(err, "vedit: decoding MANIFEST edit %d", i)
		}
		if err := ve.Validate(cmp.Compare, cmp.FormatKey); err != nil {
			return errors.Wrapf(err, "vedit: MANIFEST edit %d", i)
		}
		if name, ok := ve.ComparatorName.Get(); ok && name != cmp.Name {
			return errors.Errorf("vedit: MANIFEST comparer name %q != comparer name from Options %q",
				name, cmp.Name)
		}
		if err := fn(&ve); err != nil {
			return err
		}
	}
}
