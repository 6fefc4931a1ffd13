// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// LogAndApplySerializer serializes state transitions: appending a VersionEdit
// to the MANIFEST and installing the resulting version. The file statistics
// in FileStats may only be touched inside Do, via the ApplyCapability it
// grants.
type LogAndApplySerializer struct {
	mu sync.Mutex
}

// ApplyCapability is granted by LogAndApplySerializer.Do and is valid only for
// the duration of that call.
type ApplyCapability struct {
	active bool
}

// Do runs fn while holding the serializer, passing it a capability that is
// revoked when fn returns.
func (s *LogAndApplySerializer) Do(fn func(c *ApplyCapability) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &ApplyCapability{active: true}
	defer func() { c.active = false }()
	return fn(c)
}

func (c *ApplyCapability) check() {
	if c == nil || !c.active {
		panic(errors.AssertionFailedf("vedit: file statistics accessed outside of log-and-apply"))
	}
}
