// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types shared by the manifest packages:
// sequence numbers, internal keys, file numbers, replication positions, key
// comparison and formatting, logging and the corruption error class.
package base
