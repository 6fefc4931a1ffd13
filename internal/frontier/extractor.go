// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package frontier

import (
	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/manifest"
	"google.golang.org/protobuf/encoding/protowire"
)

// Extractor decodes frontiers written by Frontier.Encode. It is stateless and
// safe for concurrent use.
type Extractor struct{}

var _ manifest.BoundaryValuesExtractor = Extractor{}

// DecodeFrontier implements manifest.BoundaryValuesExtractor.
func (Extractor) DecodeFrontier(data []byte) (manifest.UserFrontier, error) {
	f := &Frontier{}
	var haveOpID, haveHybridTime bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "frontier")
		}
		data = data[n:]
		switch {
		case num == fieldOpID && typ == protowire.BytesType && !haveOpID:
			p, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "frontier op id")
			}
			data = data[n:]
			id, err := decodeOpID(p)
			if err != nil {
				return nil, err
			}
			f.OpID, haveOpID = id, true
		case num == fieldHybridTime && typ == protowire.VarintType && !haveHybridTime:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "frontier hybrid time")
			}
			data = data[n:]
			f.HybridTime, haveHybridTime = HybridTime(v), true
		default:
			return nil, errors.Newf("frontier: unexpected field %d (wire type %d)", num, typ)
		}
	}
	return f, nil
}

func decodeOpID(data []byte) (base.OpID, error) {
	var id base.OpID
	var seen [3]bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return id, errors.Wrap(protowire.ParseError(n), "frontier op id")
		}
		data = data[n:]
		if typ != protowire.VarintType || (num != opIDFieldTerm && num != opIDFieldIndex) || seen[num] {
			return id, errors.Newf("frontier op id: unexpected field %d (wire type %d)", num, typ)
		}
		seen[num] = true
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return id, errors.Wrap(protowire.ParseError(n), "frontier op id")
		}
		data = data[n:]
		if num == opIDFieldTerm {
			id.Term = int64(v)
		} else {
			id.Index = int64(v)
		}
	}
	if !seen[opIDFieldTerm] || !seen[opIDFieldIndex] {
		return id, errors.New("frontier op id: missing term or index")
	}
	return id, nil
}
