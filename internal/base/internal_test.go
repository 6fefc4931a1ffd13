// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternalKeyEncodeDecode(t *testing.T) {
	for _, k := range []InternalKey{
		MakeInternalKey(nil, 0, InternalKeyKindSet),
		MakeInternalKey([]byte("foo"), 7, InternalKeyKindDelete),
		MakeInternalKey([]byte("\x00\xff"), SeqNumMax, InternalKeyKindRangeDelete),
	} {
		buf := make([]byte, k.Size())
		k.Encode(buf)
		require.Equal(t, buf, k.AppendEncoded(nil))

		got := DecodeInternalKey(buf)
		require.Equal(t, string(k.UserKey), string(got.UserKey))
		require.Equal(t, k.SeqNum(), got.SeqNum())
		require.Equal(t, k.Kind(), got.Kind())
		require.True(t, got.Valid())
	}
}

func TestDecodeInternalKeyShort(t *testing.T) {
	k := DecodeInternalKey([]byte("short"))
	require.Nil(t, k.UserKey)
	require.Equal(t, InternalKeyKindInvalid, k.Kind())
	require.False(t, k.Valid())
	require.Equal(t, "#INVALID", fmt.Sprint(k.Pretty(DefaultFormatter)))
}

func TestInternalCompare(t *testing.T) {
	keys := []InternalKey{
		MakeInternalKey([]byte("b"), 1, InternalKeyKindSet),
		MakeInternalKey([]byte("a"), 1, InternalKeyKindSet),
		MakeInternalKey([]byte("a"), 5, InternalKeyKindDelete),
		MakeInternalKey([]byte("a"), 5, InternalKeyKindSet),
	}
	slices.SortFunc(keys, func(a, b InternalKey) int {
		return InternalCompare(DefaultComparer.Compare, a, b)
	})
	var got []string
	for _, k := range keys {
		got = append(got, k.String())
	}
	require.Equal(t, []string{"a#5,SET", "a#5,DEL", "a#1,SET", "b#1,SET"}, got)
}

func TestInternalKeyClone(t *testing.T) {
	buf := []byte("abc")
	k := MakeInternalKey(buf, 3, InternalKeyKindMerge)
	c := k.Clone()
	buf[0] = 'x'
	require.Equal(t, "abc", string(c.UserKey))
	require.Equal(t, k.Trailer, c.Trailer)
}

func TestParseInternalKey(t *testing.T) {
	k, err := ParseInternalKey("foo#12,SET")
	require.NoError(t, err)
	require.Equal(t, MakeInternalKey([]byte("foo"), 12, InternalKeyKindSet), k)

	k, err = ParseInternalKey("a#b#inf,SEPARATOR")
	require.NoError(t, err)
	require.Equal(t, "a#b", string(k.UserKey))
	require.Equal(t, SeqNumMax, k.SeqNum())
	require.Equal(t, InternalKeyKindSeparator, k.Kind())

	for _, s := range []string{"foo", "foo#12", "foo#x,SET", "foo#1,BOGUS"} {
		_, err := ParseInternalKey(s)
		require.Error(t, err, s)
	}
}

func TestInternalKeyFormatting(t *testing.T) {
	k := MakeInternalKey([]byte("a\x01"), 4, InternalKeyKindSingleDelete)
	require.Equal(t, `a\x01#4,SINGLEDEL`, k.String())
	require.Equal(t, "6101#4,SINGLEDEL", fmt.Sprint(k.Pretty(HexFormatter)))
	require.Equal(t, "UNKNOWN:99", InternalKeyKind(99).String())
}

func TestSeqNum(t *testing.T) {
	require.Equal(t, "inf", SeqNumMax.String())
	require.Equal(t, "42", SeqNum(42).String())

	s, err := ParseSeqNum("inf")
	require.NoError(t, err)
	require.Equal(t, SeqNumMax, s)
	s, err = ParseSeqNum("42")
	require.NoError(t, err)
	require.Equal(t, SeqNum(42), s)
	_, err = ParseSeqNum("-1")
	require.ErrorContains(t, err, `parsing "-1" as seqnum`)
}

func TestOpID(t *testing.T) {
	require.True(t, OpID{}.Empty())
	require.False(t, MakeOpID(0, 1).Empty())
	require.Equal(t, "3.14", MakeOpID(3, 14).String())

	require.Equal(t, 0, MakeOpID(1, 2).Compare(MakeOpID(1, 2)))
	require.Equal(t, -1, MakeOpID(1, 9).Compare(MakeOpID(2, 0)))
	require.Equal(t, 1, MakeOpID(2, 3).Compare(MakeOpID(2, 2)))
}

func TestFileNum(t *testing.T) {
	require.Equal(t, "000007", FileNum(7).String())
	require.Equal(t, "1234567", FileNum(1234567).String())
}

func TestCorruptionError(t *testing.T) {
	err := CorruptionErrorf("bad block %d", 3)
	require.True(t, IsCorruptionError(err))
	require.EqualError(t, err, "bad block 3")

	plain := fmt.Errorf("plain")
	require.False(t, IsCorruptionError(plain))
	marked := MarkCorruptionError(plain)
	require.True(t, IsCorruptionError(marked))
	require.Same(t, marked, MarkCorruptionError(marked))
}
