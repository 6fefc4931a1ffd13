// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"bufio"
	"bytes"
	"io"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, recs ...[]byte) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range recs {
		_, err := w.WriteRecord(rec)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readRecords(data []byte) ([][]byte, error) {
	r := NewReader(bytes.NewReader(data))
	var recs [][]byte
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return recs, err
		}
		recs = append(recs, append([]byte(nil), rec...))
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 1))
	recs := [][]byte{
		{},
		[]byte("a"),
		[]byte(strings.Repeat("manifest", 100)),
	}
	for range 20 {
		rec := make([]byte, rng.IntN(1<<16))
		for i := range rec {
			rec[i] = byte(rng.Uint32())
		}
		recs = append(recs, rec)
	}
	got, err := readRecords(writeRecords(t, recs...))
	require.NoError(t, err)
	require.Equal(t, len(recs), len(got))
	for i := range recs {
		require.True(t, bytes.Equal(recs[i], got[i]), "record %d", i)
	}
}

func TestEmptyStream(t *testing.T) {
	got, err := readRecords(nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestOffsets(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.Equal(t, int64(-1), w.LastRecordOffset())
	end, err := w.WriteRecord([]byte("abc"))
	require.NoError(t, err)
	// 1 byte of length, 3 of payload, 8 of checksum.
	require.Equal(t, int64(12), end)
	require.Equal(t, int64(0), w.LastRecordOffset())
	end, err = w.WriteRecord([]byte("de"))
	require.NoError(t, err)
	require.Equal(t, int64(23), end)
	require.Equal(t, int64(12), w.LastRecordOffset())
	require.Equal(t, int64(23), w.Size())
	require.Equal(t, 23, buf.Len())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	_, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, int64(12), r.Offset())
}

func TestTornTail(t *testing.T) {
	data := writeRecords(t, []byte("first"), []byte("second"))
	for n := len(data) - 1; n > 14; n-- {
		got, err := readRecords(data[:n])
		require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "truncated to %d: %v", n, err)
		require.True(t, IsInvalidRecord(err))
		require.Equal(t, [][]byte{[]byte("first")}, got)
	}
}

func TestChecksumMismatch(t *testing.T) {
	data := writeRecords(t, []byte("first"), []byte("second"))
	data[len(data)-10] ^= 0x01
	got, err := readRecords(data)
	require.True(t, errors.Is(err, ErrInvalidRecord), "%v", err)
	require.True(t, base.IsCorruptionError(err))
	require.ErrorContains(t, err, "checksum mismatch for record at offset 14")
	require.Equal(t, [][]byte{[]byte("first")}, got)
}

func TestOversizedLength(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0x0f}
	_, err := readRecords(data)
	require.True(t, errors.Is(err, ErrInvalidRecord), "%v", err)

	// A length that overflows a uint64.
	data = bytes.Repeat([]byte{0xff}, 11)
	_, err = readRecords(data)
	require.True(t, errors.Is(err, ErrInvalidRecord), "%v", err)
}

func TestStickyReaderError(t *testing.T) {
	data := writeRecords(t, []byte("first"))
	data[2] ^= 0x01
	r := NewReader(bytes.NewReader(data))
	_, err1 := r.Next()
	require.Error(t, err1)
	_, err2 := r.Next()
	require.Equal(t, err1, err2)
}

func TestWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := NewWriter(bw)
	_, err := w.WriteRecord([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len())
	require.NoError(t, w.Flush())
	require.Equal(t, 10, buf.Len())

	require.NoError(t, w.Close())
	_, err = w.WriteRecord([]byte("y"))
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("injected") }

func TestWriterErrorIsSticky(t *testing.T) {
	w := NewWriter(failingWriter{})
	_, err := w.WriteRecord([]byte("x"))
	require.ErrorContains(t, err, "injected")
	_, err = w.WriteRecord([]byte("y"))
	require.ErrorContains(t, err, "injected")
	require.Error(t, w.Flush())
}
