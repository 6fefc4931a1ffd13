// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants gates expensive consistency checks behind the
// "invariants" and "race" build tags.
package invariants

import "fmt"

// CheckNonNegative panics if v is negative and invariants are enabled. It is
// used to catch refcount underflows early in test builds.
func CheckNonNegative[T ~int32 | ~int64](what string, v T) {
	if Enabled && v < 0 {
		panic(fmt.Sprintf("%s is negative: %d", what, v))
	}
}
