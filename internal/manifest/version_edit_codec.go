// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"google.golang.org/protobuf/encoding/protowire"
)

// The MANIFEST record format is the protobuf encoding of the following proto2
// messages. Every scalar is optional so that presence survives a round trip.
//
//	message VersionEditPB {
//	  optional string comparator = 1;
//	  optional uint64 log_number = 2;
//	  optional uint64 prev_log_number = 3;
//	  optional uint64 next_file_number = 4;
//	  optional uint64 last_sequence = 5;
//	  optional uint32 max_column_family = 6;
//	  repeated DeletedFilePB deleted_files = 7;
//	  repeated NewFilePB new_files = 8;
//	  optional uint32 column_family = 9;
//	  optional string column_family_name = 10;
//	  optional bool is_column_family_drop = 11;
//	  optional OpIdPB flushed_op_id = 12;
//	}
//	message DeletedFilePB { optional uint32 level = 1; optional uint64 file_number = 2; }
//	message NewFilePB {
//	  optional uint32 level = 1;
//	  optional uint64 number = 2;
//	  optional uint32 path_id = 3;
//	  optional uint64 total_file_size = 4;
//	  optional uint64 base_file_size = 5;
//	  optional BoundaryValuesPB smallest = 6;
//	  optional BoundaryValuesPB largest = 7;
//	  optional OpIdPB last_op_id = 8;
//	  optional bool marked_for_compaction = 9;
//	  optional bool imported = 10;
//	}
//	message BoundaryValuesPB { optional bytes key = 1; optional uint64 seqno = 2; optional bytes user_frontier = 3; }
//	message OpIdPB { optional int64 term = 1; optional int64 index = 2; }
//
// Unknown fields are rejected: a MANIFEST is only ever read by the code that
// wrote it, and anything unexpected is treated as corruption.

// Field numbers of VersionEditPB.
const (
	fieldComparator         protowire.Number = 1
	fieldLogNumber          protowire.Number = 2
	fieldPrevLogNumber      protowire.Number = 3
	fieldNextFileNumber     protowire.Number = 4
	fieldLastSequence       protowire.Number = 5
	fieldMaxColumnFamily    protowire.Number = 6
	fieldDeletedFile        protowire.Number = 7
	fieldNewFile            protowire.Number = 8
	fieldColumnFamily       protowire.Number = 9
	fieldColumnFamilyName   protowire.Number = 10
	fieldIsColumnFamilyDrop protowire.Number = 11
	fieldFlushedOpID        protowire.Number = 12
)

// Field numbers of DeletedFilePB.
const (
	deletedFieldLevel   protowire.Number = 1
	deletedFieldFileNum protowire.Number = 2
)

// Field numbers of NewFilePB.
const (
	newFileFieldLevel               protowire.Number = 1
	newFileFieldNumber              protowire.Number = 2
	newFileFieldPathID              protowire.Number = 3
	newFileFieldTotalFileSize       protowire.Number = 4
	newFileFieldBaseFileSize        protowire.Number = 5
	newFileFieldSmallest            protowire.Number = 6
	newFileFieldLargest             protowire.Number = 7
	newFileFieldLastOpID            protowire.Number = 8
	newFileFieldMarkedForCompaction protowire.Number = 9
	newFileFieldImported            protowire.Number = 10
)

// Field numbers of BoundaryValuesPB.
const (
	boundaryFieldKey      protowire.Number = 1
	boundaryFieldSeqNum   protowire.Number = 2
	boundaryFieldFrontier protowire.Number = 3
)

// Field numbers of OpIdPB.
const (
	opIDFieldTerm  protowire.Number = 1
	opIDFieldIndex protowire.Number = 2
)

// ErrEncodingFault marks errors returned when an edit cannot be encoded. A
// failed encode never leaves a partial record behind.
var ErrEncodingFault = errors.New("vedit: version edit encoding fault")

func encodingFaultf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrEncodingFault)
}

// AppendEncodedTo appends the encoded edit to dst and returns the extended
// buffer. On error dst is returned unmodified.
func (v *VersionEdit) AppendEncodedTo(dst []byte) ([]byte, error) {
	var e versionEditEncoder
	if err := e.encodeEdit(v); err != nil {
		return dst, err
	}
	return append(dst, e.buf...), nil
}

// Encode encodes the edit to the specified writer.
func (v *VersionEdit) Encode(w io.Writer) error {
	buf, err := v.AppendEncodedTo(nil)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// DecodeFrom decodes an edit from data, replacing the receiver's contents.
// Frontiers are rebuilt with extractor, which may be nil if the MANIFEST holds
// no frontiers. Any malformed input returns an error marked as
// base.ErrCorruption.
func (v *VersionEdit) DecodeFrom(extractor BoundaryValuesExtractor, data []byte) error {
	v.Clear()
	d := versionEditDecoder{b: data, extractor: extractor}
	if err := d.decodeEdit(v); err != nil {
		v.Clear()
		return base.MarkCorruptionError(err)
	}
	return nil
}

// Decode reads r to the end and decodes the edit it holds.
func (v *VersionEdit) Decode(extractor BoundaryValuesExtractor, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return v.DecodeFrom(extractor, data)
}

type versionEditEncoder struct {
	buf []byte
}

func (e *versionEditEncoder) writeUvarint(num protowire.Number, u uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, u)
}

func (e *versionEditEncoder) writeBool(num protowire.Number, b bool) {
	e.writeUvarint(num, protowire.EncodeBool(b))
}

func (e *versionEditEncoder) writeBytes(num protowire.Number, p []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, p)
}

func (e *versionEditEncoder) writeString(num protowire.Number, s string) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

// writeMessage writes a length-delimited sub-message built by fn.
func (e *versionEditEncoder) writeMessage(num protowire.Number, fn func(*versionEditEncoder) error) error {
	var sub versionEditEncoder
	if err := fn(&sub); err != nil {
		return err
	}
	e.writeBytes(num, sub.buf)
	return nil
}

// writeSubMessage is writeMessage for sub-messages whose encoding cannot fail.
func (e *versionEditEncoder) writeSubMessage(num protowire.Number, fn func(*versionEditEncoder)) {
	var sub versionEditEncoder
	fn(&sub)
	e.writeBytes(num, sub.buf)
}

func (e *versionEditEncoder) writeOpID(num protowire.Number, id base.OpID) {
	e.writeSubMessage(num, func(sub *versionEditEncoder) {
		sub.writeUvarint(opIDFieldTerm, uint64(id.Term))
		sub.writeUvarint(opIDFieldIndex, uint64(id.Index))
	})
}

func (e *versionEditEncoder) encodeEdit(v *VersionEdit) error {
	if s, ok := v.ComparatorName.Get(); ok {
		e.writeString(fieldComparator, s)
	}
	if n, ok := v.LogNumber.Get(); ok {
		e.writeUvarint(fieldLogNumber, n)
	}
	if n, ok := v.PrevLogNumber.Get(); ok {
		e.writeUvarint(fieldPrevLogNumber, n)
	}
	if n, ok := v.NextFileNumber.Get(); ok {
		e.writeUvarint(fieldNextFileNumber, n)
	}
	if n, ok := v.LastSequence.Get(); ok {
		if n > base.SeqNumMax {
			return encodingFaultf("last sequence %d out of range", uint64(n))
		}
		e.writeUvarint(fieldLastSequence, uint64(n))
	}
	if n, ok := v.MaxColumnFamily.Get(); ok {
		e.writeUvarint(fieldMaxColumnFamily, uint64(n))
	}
	for _, df := range v.GetDeletedFiles() {
		if df.Level < 0 || df.Level >= NumLevels {
			return encodingFaultf("deleted file %s has invalid level %d", df.FileNum, df.Level)
		}
		if uint64(df.FileNum) > FileNumberMask {
			return encodingFaultf("deleted file number %d exceeds mask", uint64(df.FileNum))
		}
		e.writeSubMessage(fieldDeletedFile, func(sub *versionEditEncoder) {
			sub.writeUvarint(deletedFieldLevel, uint64(df.Level))
			sub.writeUvarint(deletedFieldFileNum, uint64(df.FileNum))
		})
	}
	for _, nf := range v.NewFiles {
		if err := e.writeMessage(fieldNewFile, func(sub *versionEditEncoder) error {
			return sub.encodeNewFile(nf)
		}); err != nil {
			return err
		}
	}
	if v.ColumnFamily != 0 {
		e.writeUvarint(fieldColumnFamily, uint64(v.ColumnFamily))
	}
	if name, ok := v.ColumnFamilyName.Get(); ok {
		e.writeString(fieldColumnFamilyName, name)
	}
	if v.IsColumnFamilyDrop {
		e.writeBool(fieldIsColumnFamilyDrop, true)
	}
	if !v.FlushedOpID.Empty() {
		e.writeOpID(fieldFlushedOpID, v.FlushedOpID)
	}
	return nil
}

func (e *versionEditEncoder) encodeNewFile(nf NewFileEntry) error {
	m := nf.Meta
	if nf.Level < 0 || nf.Level >= NumLevels {
		return encodingFaultf("new file %s has invalid level %d", m.FD.Number(), nf.Level)
	}
	if uint64(m.FD.Number()) > FileNumberMask {
		return encodingFaultf("new file number %d exceeds mask", uint64(m.FD.Number()))
	}
	if m.Smallest.SeqNum > m.Largest.SeqNum {
		return encodingFaultf("new file %s has smallest seqnum %s > largest seqnum %s",
			m.FD.Number(), m.Smallest.SeqNum, m.Largest.SeqNum)
	}
	e.writeUvarint(newFileFieldLevel, uint64(nf.Level))
	e.writeUvarint(newFileFieldNumber, uint64(m.FD.Number()))
	if pathID := m.FD.PathID(); pathID != 0 {
		e.writeUvarint(newFileFieldPathID, uint64(pathID))
	}
	e.writeUvarint(newFileFieldTotalFileSize, m.FD.TotalFileSize)
	e.writeUvarint(newFileFieldBaseFileSize, m.FD.BaseFileSize)
	if err := e.writeMessage(newFileFieldSmallest, func(sub *versionEditEncoder) error {
		return sub.encodeBoundary(&m.Smallest)
	}); err != nil {
		return errors.Wrapf(err, "file %s smallest", m.FD.Number())
	}
	if err := e.writeMessage(newFileFieldLargest, func(sub *versionEditEncoder) error {
		return sub.encodeBoundary(&m.Largest)
	}); err != nil {
		return errors.Wrapf(err, "file %s largest", m.FD.Number())
	}
	if !m.LastOpID.Empty() {
		e.writeOpID(newFileFieldLastOpID, m.LastOpID)
	}
	if m.MarkedForCompaction {
		e.writeBool(newFileFieldMarkedForCompaction, true)
	}
	if m.Imported {
		e.writeBool(newFileFieldImported, true)
	}
	return nil
}

func (e *versionEditEncoder) encodeBoundary(b *BoundaryValues) error {
	if b.SeqNum > base.SeqNumMax {
		return encodingFaultf("boundary seqnum %d out of range", uint64(b.SeqNum))
	}
	e.writeBytes(boundaryFieldKey, b.Key.AppendEncoded(nil))
	e.writeUvarint(boundaryFieldSeqNum, uint64(b.SeqNum))
	if b.Frontier != nil {
		data, err := b.Frontier.Encode()
		if err != nil {
			return errors.Mark(errors.Wrap(err, "encoding frontier"), ErrEncodingFault)
		}
		e.writeBytes(boundaryFieldFrontier, data)
	}
	return nil
}

type versionEditDecoder struct {
	b         []byte
	extractor BoundaryValuesExtractor
}

func (d *versionEditDecoder) done() bool {
	return len(d.b) == 0
}

func (d *versionEditDecoder) readTag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(d.b)
	if n < 0 {
		return 0, 0, errors.Wrap(protowire.ParseError(n), "reading field tag")
	}
	d.b = d.b[n:]
	return num, typ, nil
}

// fieldSet tracks the singular fields seen in a message. A singular field that
// appears twice means trailing data was appended to a well-formed message.
type fieldSet uint32

func (s *fieldSet) add(num protowire.Number) error {
	bit := fieldSet(1) << uint(num)
	if *s&bit != 0 {
		return errors.Newf("field %d repeated", num)
	}
	*s |= bit
	return nil
}

func (d *versionEditDecoder) readUvarint(num protowire.Number, typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, errors.Newf("field %d: unexpected wire type %d", num, typ)
	}
	u, n := protowire.ConsumeVarint(d.b)
	if n < 0 {
		return 0, errors.Wrapf(protowire.ParseError(n), "field %d", num)
	}
	d.b = d.b[n:]
	return u, nil
}

func (d *versionEditDecoder) readUint32(num protowire.Number, typ protowire.Type) (uint32, error) {
	u, err := d.readUvarint(num, typ)
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, errors.Newf("field %d: value %d out of range", num, u)
	}
	return uint32(u), nil
}

func (d *versionEditDecoder) readBool(num protowire.Number, typ protowire.Type) (bool, error) {
	u, err := d.readUvarint(num, typ)
	if err != nil {
		return false, err
	}
	return protowire.DecodeBool(u), nil
}

func (d *versionEditDecoder) readBytes(num protowire.Number, typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, errors.Newf("field %d: unexpected wire type %d", num, typ)
	}
	p, n := protowire.ConsumeBytes(d.b)
	if n < 0 {
		return nil, errors.Wrapf(protowire.ParseError(n), "field %d", num)
	}
	d.b = d.b[n:]
	return p, nil
}

// readMessage reads a length-delimited sub-message and returns a decoder over
// its contents.
func (d *versionEditDecoder) readMessage(num protowire.Number, typ protowire.Type) (versionEditDecoder, error) {
	p, err := d.readBytes(num, typ)
	if err != nil {
		return versionEditDecoder{}, err
	}
	return versionEditDecoder{b: p, extractor: d.extractor}, nil
}

func (d *versionEditDecoder) readLevel(num protowire.Number, typ protowire.Type) (int, error) {
	u, err := d.readUvarint(num, typ)
	if err != nil {
		return 0, err
	}
	if u >= NumLevels {
		return 0, errors.Newf("level %d out of range", u)
	}
	return int(u), nil
}

func (d *versionEditDecoder) readFileNum(num protowire.Number, typ protowire.Type) (base.FileNum, error) {
	u, err := d.readUvarint(num, typ)
	if err != nil {
		return 0, err
	}
	if u > FileNumberMask {
		return 0, errors.Newf("file number %d exceeds mask %#x", u, FileNumberMask)
	}
	return base.FileNum(u), nil
}

func (d *versionEditDecoder) readSeqNum(num protowire.Number, typ protowire.Type) (base.SeqNum, error) {
	u, err := d.readUvarint(num, typ)
	if err != nil {
		return 0, err
	}
	if base.SeqNum(u) > base.SeqNumMax {
		return 0, errors.Newf("sequence number %d out of range", u)
	}
	return base.SeqNum(u), nil
}

func (d *versionEditDecoder) decodeEdit(v *VersionEdit) error {
	var seen fieldSet
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return err
		}
		if num != fieldDeletedFile && num != fieldNewFile && num >= 1 && num <= fieldFlushedOpID {
			if err := seen.add(num); err != nil {
				return err
			}
		}
		switch num {
		case fieldComparator:
			s, err := d.readBytes(num, typ)
			if err != nil {
				return err
			}
			v.ComparatorName = Some(string(s))

		case fieldLogNumber, fieldPrevLogNumber, fieldNextFileNumber:
			n, err := d.readUvarint(num, typ)
			if err != nil {
				return err
			}
			switch num {
			case fieldLogNumber:
				v.LogNumber = Some(n)
			case fieldPrevLogNumber:
				v.PrevLogNumber = Some(n)
			default:
				v.NextFileNumber = Some(n)
			}

		case fieldLastSequence:
			seq, err := d.readSeqNum(num, typ)
			if err != nil {
				return err
			}
			v.LastSequence = Some(seq)

		case fieldMaxColumnFamily:
			n, err := d.readUint32(num, typ)
			if err != nil {
				return err
			}
			v.MaxColumnFamily = Some(n)

		case fieldDeletedFile:
			sub, err := d.readMessage(num, typ)
			if err != nil {
				return err
			}
			df, err := sub.decodeDeletedFile()
			if err != nil {
				return errors.Wrap(err, "deleted file")
			}
			if v.DeletedFiles == nil {
				v.DeletedFiles = make(map[DeletedFileEntry]struct{})
			}
			v.DeletedFiles[df] = struct{}{}

		case fieldNewFile:
			sub, err := d.readMessage(num, typ)
			if err != nil {
				return err
			}
			nf, err := sub.decodeNewFile()
			if err != nil {
				return errors.Wrap(err, "new file")
			}
			v.NewFiles = append(v.NewFiles, nf)

		case fieldColumnFamily:
			n, err := d.readUint32(num, typ)
			if err != nil {
				return err
			}
			v.ColumnFamily = n

		case fieldColumnFamilyName:
			s, err := d.readBytes(num, typ)
			if err != nil {
				return err
			}
			v.ColumnFamilyName = Some(string(s))

		case fieldIsColumnFamilyDrop:
			b, err := d.readBool(num, typ)
			if err != nil {
				return err
			}
			v.IsColumnFamilyDrop = b

		case fieldFlushedOpID:
			sub, err := d.readMessage(num, typ)
			if err != nil {
				return err
			}
			id, err := sub.decodeOpID()
			if err != nil {
				return errors.Wrap(err, "flushed op id")
			}
			v.FlushedOpID = id

		default:
			return errors.Newf("unknown field %d", num)
		}
	}
	if v.IsColumnFamilyAdd() && v.IsColumnFamilyDrop {
		return errors.Newf("edit both adds and drops column family %d", v.ColumnFamily)
	}
	return nil
}

func (d *versionEditDecoder) decodeDeletedFile() (DeletedFileEntry, error) {
	var df DeletedFileEntry
	var seen fieldSet
	var haveLevel, haveFileNum bool
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return df, err
		}
		if num >= 1 && num <= deletedFieldFileNum {
			if err := seen.add(num); err != nil {
				return df, err
			}
		}
		switch num {
		case deletedFieldLevel:
			if df.Level, err = d.readLevel(num, typ); err != nil {
				return df, err
			}
			haveLevel = true
		case deletedFieldFileNum:
			if df.FileNum, err = d.readFileNum(num, typ); err != nil {
				return df, err
			}
			haveFileNum = true
		default:
			return df, errors.Newf("unknown field %d", num)
		}
	}
	if !haveLevel || !haveFileNum {
		return df, errors.New("missing level or file number")
	}
	return df, nil
}

func (d *versionEditDecoder) decodeNewFile() (NewFileEntry, error) {
	var level int
	var fileNum base.FileNum
	var pathID uint32
	var totalSize, baseSize uint64
	m := &FileMetadata{}
	var seen fieldSet
	var haveLevel, haveFileNum, haveSmallest, haveLargest bool
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return NewFileEntry{}, err
		}
		if num >= 1 && num <= newFileFieldImported {
			if err := seen.add(num); err != nil {
				return NewFileEntry{}, err
			}
		}
		switch num {
		case newFileFieldLevel:
			if level, err = d.readLevel(num, typ); err != nil {
				return NewFileEntry{}, err
			}
			haveLevel = true
		case newFileFieldNumber:
			if fileNum, err = d.readFileNum(num, typ); err != nil {
				return NewFileEntry{}, err
			}
			haveFileNum = true
		case newFileFieldPathID:
			if pathID, err = d.readUint32(num, typ); err != nil {
				return NewFileEntry{}, err
			}
			if pathID > MaxPathID {
				return NewFileEntry{}, errors.Newf("path id %d out of range", pathID)
			}
		case newFileFieldTotalFileSize:
			if totalSize, err = d.readUvarint(num, typ); err != nil {
				return NewFileEntry{}, err
			}
		case newFileFieldBaseFileSize:
			if baseSize, err = d.readUvarint(num, typ); err != nil {
				return NewFileEntry{}, err
			}
		case newFileFieldSmallest, newFileFieldLargest:
			sub, err := d.readMessage(num, typ)
			if err != nil {
				return NewFileEntry{}, err
			}
			b, err := sub.decodeBoundary()
			if err != nil {
				return NewFileEntry{}, errors.Wrapf(err, "field %d", num)
			}
			if num == newFileFieldSmallest {
				m.Smallest, haveSmallest = b, true
			} else {
				m.Largest, haveLargest = b, true
			}
		case newFileFieldLastOpID:
			sub, err := d.readMessage(num, typ)
			if err != nil {
				return NewFileEntry{}, err
			}
			if m.LastOpID, err = sub.decodeOpID(); err != nil {
				return NewFileEntry{}, errors.Wrap(err, "last op id")
			}
		case newFileFieldMarkedForCompaction:
			if m.MarkedForCompaction, err = d.readBool(num, typ); err != nil {
				return NewFileEntry{}, err
			}
		case newFileFieldImported:
			if m.Imported, err = d.readBool(num, typ); err != nil {
				return NewFileEntry{}, err
			}
		default:
			return NewFileEntry{}, errors.Newf("unknown field %d", num)
		}
	}
	switch {
	case !haveLevel:
		return NewFileEntry{}, errors.New("missing level")
	case !haveFileNum:
		return NewFileEntry{}, errors.New("missing file number")
	case !haveSmallest || !haveLargest:
		return NewFileEntry{}, errors.Newf("file %s: missing boundaries", fileNum)
	}
	if m.Smallest.SeqNum > m.Largest.SeqNum {
		return NewFileEntry{}, errors.Newf("file %s: smallest seqnum %s > largest seqnum %s",
			fileNum, m.Smallest.SeqNum, m.Largest.SeqNum)
	}
	m.FD = MakeFileDescriptor(fileNum, pathID, totalSize, baseSize)
	m.boundsSet = true
	return NewFileEntry{Level: level, Meta: m}, nil
}

func (d *versionEditDecoder) decodeBoundary() (BoundaryValues, error) {
	var b BoundaryValues
	var seen fieldSet
	var haveKey bool
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return b, err
		}
		if num >= 1 && num <= boundaryFieldFrontier {
			if err := seen.add(num); err != nil {
				return b, err
			}
		}
		switch num {
		case boundaryFieldKey:
			p, err := d.readBytes(num, typ)
			if err != nil {
				return b, err
			}
			if len(p) < base.InternalTrailerLen {
				return b, errors.Newf("boundary key of length %d is too short", len(p))
			}
			b.Key = base.DecodeInternalKey(append([]byte(nil), p...))
			if len(b.Key.UserKey) == 0 {
				b.Key.UserKey = nil
			}
			haveKey = true
		case boundaryFieldSeqNum:
			if b.SeqNum, err = d.readSeqNum(num, typ); err != nil {
				return b, err
			}
		case boundaryFieldFrontier:
			p, err := d.readBytes(num, typ)
			if err != nil {
				return b, err
			}
			if d.extractor == nil {
				return b, errors.New("boundary has a frontier but no extractor was provided")
			}
			if b.Frontier, err = d.extractor.DecodeFrontier(p); err != nil {
				return b, errors.Wrap(err, "decoding frontier")
			}
		default:
			return b, errors.Newf("unknown field %d", num)
		}
	}
	if !haveKey {
		return b, errors.New("missing boundary key")
	}
	return b, nil
}

func (d *versionEditDecoder) decodeOpID() (base.OpID, error) {
	var id base.OpID
	var seen fieldSet
	var haveTerm, haveIndex bool
	for !d.done() {
		num, typ, err := d.readTag()
		if err != nil {
			return id, err
		}
		if num >= 1 && num <= opIDFieldIndex {
			if err := seen.add(num); err != nil {
				return id, err
			}
		}
		u, err := d.readUvarint(num, typ)
		if err != nil {
			return id, err
		}
		switch num {
		case opIDFieldTerm:
			id.Term, haveTerm = int64(u), true
		case opIDFieldIndex:
			id.Index, haveIndex = int64(u), true
		default:
			return id, errors.Newf("unknown field %d", num)
		}
	}
	if !haveTerm || !haveIndex {
		return id, errors.New("missing term or index")
	}
	return id, nil
}
