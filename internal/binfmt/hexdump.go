// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package binfmt renders binary data for debugging output.
package binfmt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
)

// HexDump returns a string representation of the data in a hex dump format.
// The width is the number of bytes per line.
func HexDump(data []byte, width int, includeOffsets bool) string {
	var buf bytes.Buffer
	FHexDump(&buf, data, width, includeOffsets)
	return buf.String()
}

// FHexDump writes data to w as rows of width bytes: an optional offset, the
// bytes in groups of four and their printable ASCII rendering.
func FHexDump(w io.Writer, data []byte, width int, includeOffsets bool) {
	offsetWidth := 2
	for n := len(data); n > 0xff && offsetWidth < 16; n >>= 8 {
		offsetWidth += 2
	}
	var line []byte
	for start := 0; start < len(data); start += width {
		row := data[start:min(start+width, len(data))]
		line = line[:0]
		if includeOffsets {
			line = fmt.Appendf(line, "%0*x: ", offsetWidth, start)
		}
		for j := 0; j < width; j++ {
			if j%4 == 0 {
				line = append(line, ' ')
			}
			if j < len(row) {
				line = hex.AppendEncode(line, row[j:j+1])
			} else {
				line = append(line, "  "...)
			}
		}
		line = append(line, " | "...)
		for j, b := range row {
			if j%4 == 0 {
				line = append(line, ' ')
			}
			if b < 32 || b > 126 {
				b = '.'
			}
			line = append(line, b)
		}
		line = append(line, '\n')
		_, _ = w.Write(line)
	}
}
