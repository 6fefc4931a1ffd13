// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package record reads and writes sequences of records, the framing of a
// manifest file. Each record is a complete encoded version edit.
//
// Neither Readers or Writers are safe to use concurrently.
//
// Example code:
//
//	func read(r io.Reader) ([][]byte, error) {
//		var recs [][]byte
//		records := record.NewReader(r)
//		for {
//			rec, err := records.Next()
//			if err == io.EOF {
//				break
//			} else if err != nil {
//				return nil, err
//			}
//			recs = append(recs, rec)
//		}
//		return recs, nil
//	}
//
//	func write(w io.Writer, recs [][]byte) error {
//		records := record.NewWriter(w)
//		for _, rec := range recs {
//			if _, err := records.WriteRecord(rec); err != nil {
//				return err
//			}
//		}
//		return records.Close()
//	}
//
// The wire format is a sequence of records, each of which is:
//
//	+--------------------+--- ... ---+---------------+
//	| Size (uvarint)     | Payload   | Checksum (8B) |
//	+--------------------+--- ... ---+---------------+
//
// Size is the length of the payload in bytes
// Checksum is the little-endian xxhash64 of the payload
//
// A stream that ends part way through a record yields io.ErrUnexpectedEOF. A
// record whose checksum does not match yields ErrInvalidRecord.
package record

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
)

const (
	checksumSize = 8
	// MaxRecordSize is the largest payload a record may carry.
	MaxRecordSize = 1 << 30
)

var (
	// ErrInvalidRecord is returned if a record is encountered with an invalid
	// length or checksum.
	ErrInvalidRecord = errors.New("vedit/record: invalid record")

	errClosedWriter = errors.New("vedit/record: closed Writer")
)

// IsInvalidRecord returns true if the error matches one of the error types
// returned for invalid or torn records. These are treated in a way similar to
// io.EOF in recovery code.
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrInvalidRecord) || errors.Is(err, io.ErrUnexpectedEOF)
}

type flusher interface {
	Flush() error
}

// Writer writes records to an underlying io.Writer.
type Writer struct {
	w io.Writer
	f flusher
	// size is the number of bytes written so far.
	size int64
	// lastRecordOffset is the offset of the most recently written record, or
	// -1 if none has been written.
	lastRecordOffset int64
	err              error
	buf              []byte
}

// NewWriter returns a new Writer.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(flusher)
	return &Writer{
		w:                w,
		f:                f,
		lastRecordOffset: -1,
	}
}

// WriteRecord writes a complete record. Returns the offset just past the end
// of the record.
func (w *Writer) WriteRecord(p []byte) (int64, error) {
	if w.err != nil {
		return -1, w.err
	}
	if len(p) > MaxRecordSize {
		return -1, errors.Newf("vedit/record: record of %d bytes exceeds maximum of %d", len(p), MaxRecordSize)
	}
	w.buf = binary.AppendUvarint(w.buf[:0], uint64(len(p)))
	w.buf = append(w.buf, p...)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, xxhash.Sum64(p))
	if _, w.err = w.w.Write(w.buf); w.err != nil {
		return -1, w.err
	}
	w.lastRecordOffset = w.size
	w.size += int64(len(w.buf))
	return w.size, nil
}

// Flush flushes the underlying writer if it implements
// interface{ Flush() error }.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.f != nil {
		w.err = w.f.Flush()
	}
	return w.err
}

// Close flushes the writer. Writing after Close returns an error.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	w.err = errClosedWriter
	return nil
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int64 {
	if w == nil {
		return 0
	}
	return w.size
}

// LastRecordOffset returns the offset of the most recently written record, or
// -1 if nothing was written.
func (w *Writer) LastRecordOffset() int64 {
	return w.lastRecordOffset
}

// Reader reads records from an underlying io.Reader.
type Reader struct {
	r *bufio.Reader
	// offset is the number of bytes consumed so far.
	offset int64
	err    error
	buf    []byte
}

// NewReader returns a new Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the payload of the next record. It returns io.EOF if there are
// no more records. The returned slice is only valid until the next call to
// Next. Once Next returns an error, every subsequent call returns it too.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
		return nil, err
	}
	return rec, nil
}

func (r *Reader) next() ([]byte, error) {
	start := r.offset
	n, err := binary.ReadUvarint(countingByteReader{r})
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, io.ErrUnexpectedEOF
	case err != nil:
		return nil, invalidRecord(errors.Wrapf(err, "vedit/record: record at offset %d", start))
	}
	if n > MaxRecordSize {
		return nil, invalidRecord(errors.Newf("vedit/record: record at offset %d has length %d", start, n))
	}
	if cap(r.buf) < int(n)+checksumSize {
		r.buf = make([]byte, int(n)+checksumSize)
	}
	r.buf = r.buf[:int(n)+checksumSize]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.offset += int64(len(r.buf))
	payload := r.buf[:n]
	if want := binary.LittleEndian.Uint64(r.buf[n:]); xxhash.Sum64(payload) != want {
		return nil, invalidRecord(errors.Newf("vedit/record: checksum mismatch for record at offset %d", start))
	}
	return payload, nil
}

// invalidRecord marks err as both an invalid record and a corruption error.
func invalidRecord(err error) error {
	return base.MarkCorruptionError(errors.Mark(err, ErrInvalidRecord))
}

// Offset returns the number of bytes consumed by the records returned so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

type countingByteReader struct {
	r *Reader
}

func (c countingByteReader) ReadByte() (byte, error) {
	b, err := c.r.r.ReadByte()
	if err == nil {
		c.r.offset++
	}
	return b, err
}
