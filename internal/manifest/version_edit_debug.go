// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lsmkit/vedit/internal/base"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// String implements fmt.Stringer.
func (v *VersionEdit) String() string {
	return v.DebugString(false)
}

func keyFormatter(hexKey bool) base.FormatKey {
	if hexKey {
		return base.HexFormatter
	}
	return base.DefaultFormatter
}

// DebugString returns a multi-line description of the edit. If hexKey is set,
// user keys are printed in hexadecimal.
func (v *VersionEdit) DebugString(hexKey bool) string {
	format := keyFormatter(hexKey)
	var b strings.Builder
	b.WriteString("VersionEdit {\n")
	if s, ok := v.ComparatorName.Get(); ok {
		fmt.Fprintf(&b, "  Comparator: %s\n", s)
	}
	if n, ok := v.LogNumber.Get(); ok {
		fmt.Fprintf(&b, "  LogNumber: %d\n", n)
	}
	if n, ok := v.PrevLogNumber.Get(); ok {
		fmt.Fprintf(&b, "  PrevLogNumber: %d\n", n)
	}
	if n, ok := v.NextFileNumber.Get(); ok {
		fmt.Fprintf(&b, "  NextFileNumber: %d\n", n)
	}
	if n, ok := v.MaxColumnFamily.Get(); ok {
		fmt.Fprintf(&b, "  MaxColumnFamily: %d\n", n)
	}
	if n, ok := v.LastSequence.Get(); ok {
		fmt.Fprintf(&b, "  LastSeq: %s\n", n)
	}
	if !v.FlushedOpID.Empty() {
		fmt.Fprintf(&b, "  FlushedOpId: %s\n", v.FlushedOpID)
	}
	for _, df := range v.GetDeletedFiles() {
		fmt.Fprintf(&b, "  DeleteFile: %d %s\n", df.Level, df.FileNum)
	}
	for _, nf := range v.NewFiles {
		fmt.Fprintf(&b, "  AddFile: %d %s\n", nf.Level, nf.Meta.DebugString(format))
	}
	fmt.Fprintf(&b, "  ColumnFamily: %d\n", v.ColumnFamily)
	if name, ok := v.ColumnFamilyName.Get(); ok {
		fmt.Fprintf(&b, "  ColumnFamilyAdd: %s\n", name)
	}
	if v.IsColumnFamilyDrop {
		b.WriteString("  ColumnFamilyDrop\n")
	}
	b.WriteString("}\n")
	return b.String()
}

type jsonDeletedFile struct {
	Level      int    `json:"Level"`
	FileNumber uint64 `json:"FileNumber"`
}

type jsonBoundary struct {
	Key      string `json:"Key"`
	SeqNum   uint64 `json:"SeqNo"`
	Frontier string `json:"Frontier,omitempty"`
}

type jsonNewFile struct {
	Level               int          `json:"Level"`
	FileNumber          uint64       `json:"FileNumber"`
	PathID              uint32       `json:"PathId"`
	TotalFileSize       uint64       `json:"TotalFileSize"`
	BaseFileSize        uint64       `json:"BaseFileSize"`
	Smallest            jsonBoundary `json:"Smallest"`
	Largest             jsonBoundary `json:"Largest"`
	LastOpID            string       `json:"LastOpId,omitempty"`
	MarkedForCompaction bool         `json:"MarkedForCompaction,omitempty"`
	Imported            bool         `json:"Imported,omitempty"`
}

type jsonVersionEdit struct {
	EditNumber       int               `json:"EditNumber"`
	Comparator       *string           `json:"Comparator,omitempty"`
	LogNumber        *uint64           `json:"LogNumber,omitempty"`
	PrevLogNumber    *uint64           `json:"PrevLogNumber,omitempty"`
	NextFileNumber   *uint64           `json:"NextFileNumber,omitempty"`
	MaxColumnFamily  *uint32           `json:"MaxColumnFamily,omitempty"`
	LastSeq          *uint64           `json:"LastSeq,omitempty"`
	FlushedOpID      string            `json:"FlushedOpId,omitempty"`
	DeletedFiles     []jsonDeletedFile `json:"DeletedFiles,omitempty"`
	AddedFiles       []jsonNewFile     `json:"AddedFiles,omitempty"`
	ColumnFamily     uint32            `json:"ColumnFamily"`
	ColumnFamilyAdd  *string           `json:"ColumnFamilyAdd,omitempty"`
	ColumnFamilyDrop bool              `json:"ColumnFamilyDrop,omitempty"`
}

func optionalPtr[T any](o Optional[T]) *T {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}

func makeJSONBoundary(b *BoundaryValues, format base.FormatKey) jsonBoundary {
	jb := jsonBoundary{
		Key:    fmt.Sprint(b.Key.Pretty(format)),
		SeqNum: uint64(b.SeqNum),
	}
	if b.Frontier != nil {
		jb.Frontier = b.Frontier.String()
	}
	return jb
}

// DebugJSON returns a single-line JSON description of the edit, tagged with
// editNum (the position of the edit in its MANIFEST). If hexKey is set, user
// keys are printed in hexadecimal.
func (v *VersionEdit) DebugJSON(editNum int, hexKey bool) string {
	format := keyFormatter(hexKey)
	je := jsonVersionEdit{
		EditNumber:       editNum,
		Comparator:       optionalPtr(v.ComparatorName),
		LogNumber:        optionalPtr(v.LogNumber),
		PrevLogNumber:    optionalPtr(v.PrevLogNumber),
		NextFileNumber:   optionalPtr(v.NextFileNumber),
		MaxColumnFamily:  optionalPtr(v.MaxColumnFamily),
		ColumnFamily:     v.ColumnFamily,
		ColumnFamilyAdd:  optionalPtr(v.ColumnFamilyName),
		ColumnFamilyDrop: v.IsColumnFamilyDrop,
	}
	if n, ok := v.LastSequence.Get(); ok {
		seq := uint64(n)
		je.LastSeq = &seq
	}
	if !v.FlushedOpID.Empty() {
		je.FlushedOpID = v.FlushedOpID.String()
	}
	for _, df := range v.GetDeletedFiles() {
		je.DeletedFiles = append(je.DeletedFiles, jsonDeletedFile{
			Level:      df.Level,
			FileNumber: uint64(df.FileNum),
		})
	}
	for _, nf := range v.NewFiles {
		m := nf.Meta
		jf := jsonNewFile{
			Level:               nf.Level,
			FileNumber:          uint64(m.FD.Number()),
			PathID:              m.FD.PathID(),
			TotalFileSize:       m.FD.TotalFileSize,
			BaseFileSize:        m.FD.BaseFileSize,
			Smallest:            makeJSONBoundary(&m.Smallest, format),
			Largest:             makeJSONBoundary(&m.Largest, format),
			MarkedForCompaction: m.MarkedForCompaction,
			Imported:            m.Imported,
		}
		if !m.LastOpID.Empty() {
			jf.LastOpID = m.LastOpID.String()
		}
		je.AddedFiles = append(je.AddedFiles, jf)
	}
	out, err := json.Marshal(&je)
	if err != nil {
		// Only plain strings and integers are marshaled.
		panic(base.AssertionFailedf("vedit: marshaling version edit: %v", err))
	}
	return string(out)
}
