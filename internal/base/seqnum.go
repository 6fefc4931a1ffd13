// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// SeqNum is a sequence number defining precedence among identical keys. A key
// with a higher sequence number takes precedence over a key with an equal user
// key of a lower sequence number. Sequence numbers are stored durably within
// the internal key "trailer" as a 7-byte (uint56) uint, and the maximum
// sequence number is 2^56-1.
type SeqNum uint64

const (
	// SeqNumZero is the zero sequence number.
	SeqNumZero SeqNum = 0
	// SeqNumMax is the largest valid sequence number.
	SeqNumMax SeqNum = 1<<56 - 1
)

func (s SeqNum) String() string {
	if s == SeqNumMax {
		return "inf"
	}
	return strconv.FormatUint(uint64(s), 10)
}

// SafeFormat implements redact.SafeFormatter.
func (s SeqNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(s.String()))
}

// ParseSeqNum parses the string representation of a sequence number.
// "inf" is supported as the maximum sequence number.
func ParseSeqNum(s string) (SeqNum, error) {
	if s == "inf" {
		return SeqNumMax, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %q as seqnum", s)
	}
	return SeqNum(n), nil
}
