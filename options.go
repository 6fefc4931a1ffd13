// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vedit

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/readercache"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

const (
	defaultReaderCacheCapacity = 1000
	defaultReaderCacheShards   = 4
)

// Options holds the optional parameters for a MANIFEST. The zero value is
// usable once EnsureDefaults has been called.
type Options struct {
	// Comparer defines the ordering of user keys. Its name is recorded in the
	// first edit of a new MANIFEST and checked on replay.
	//
	// The default value uses the same ordering as bytes.Compare.
	Comparer *Comparer `yaml:"-"`

	// ComparerName, if set, must match Comparer.Name. It allows a YAML
	// configuration to pin the comparer a MANIFEST is expected to use.
	ComparerName string `yaml:"comparer,omitempty"`

	// Extractor decodes user frontiers stored in file boundaries. It may be
	// nil if no file carries a frontier.
	Extractor BoundaryValuesExtractor `yaml:"-"`

	// Logger is used to write log messages.
	//
	// The default logger writes to stderr through zap.
	Logger Logger `yaml:"-"`

	// Registerer, if set, receives the prometheus collectors of the MANIFEST
	// and its reader cache.
	Registerer prometheus.Registerer `yaml:"-"`

	// ReaderCache configures the cache of open table readers.
	ReaderCache struct {
		// Capacity is the number of readers kept open.
		Capacity int `yaml:"capacity,omitempty"`
		// Shards is the number of independently locked shards.
		Shards int `yaml:"shards,omitempty"`
	} `yaml:"reader_cache"`

	// Verbose enables debug logging in the default logger.
	Verbose bool `yaml:"verbose,omitempty"`
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.Comparer == nil {
		o.Comparer = DefaultComparer
	}
	if o.ComparerName == "" {
		o.ComparerName = o.Comparer.Name
	}
	if o.Logger == nil {
		o.Logger = base.NewDefaultLogger(o.Verbose)
	}
	if o.ReaderCache.Capacity <= 0 {
		o.ReaderCache.Capacity = defaultReaderCacheCapacity
	}
	if o.ReaderCache.Shards <= 0 {
		o.ReaderCache.Shards = defaultReaderCacheShards
	}
	return o
}

// Validate verifies that the options are mutually consistent.
func (o *Options) Validate() error {
	if o.Comparer != nil && o.ComparerName != "" && o.ComparerName != o.Comparer.Name {
		return errors.Errorf("vedit: comparer %q does not match configured comparer name %q",
			o.Comparer.Name, o.ComparerName)
	}
	if o.ReaderCache.Shards > o.ReaderCache.Capacity {
		return errors.Errorf("vedit: reader cache has %d shards but a capacity of only %d",
			o.ReaderCache.Shards, o.ReaderCache.Capacity)
	}
	return nil
}

// String returns the YAML form of the options.
func (o *Options) String() string {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(o); err != nil {
		return err.Error()
	}
	_ = enc.Close()
	return buf.String()
}

// ParseOptions reads YAML-formatted options from r. Unknown keys are an error.
// Fields that cannot be expressed in YAML (the comparer, extractor, logger
// and registerer) are left unset for the caller to fill in before calling
// EnsureDefaults.
func ParseOptions(r io.Reader) (*Options, error) {
	o := &Options{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(o); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "vedit: parsing options")
	}
	return o, nil
}

// NewReaderCache returns a reader cache sized by the options, opening readers
// with open.
func (o *Options) NewReaderCache(open ReaderOpenFn) (*ReaderCache, error) {
	return readercache.New(readercache.Options{
		Capacity:   o.ReaderCache.Capacity,
		Shards:     o.ReaderCache.Shards,
		Open:       open,
		Logger:     o.Logger,
		Registerer: o.Registerer,
	})
}
