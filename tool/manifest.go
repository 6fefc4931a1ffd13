// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/binfmt"
	"github.com/lsmkit/vedit/internal/manifest"
	"github.com/lsmkit/vedit/record"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// manifestT implements manifest-level tools, including both configuration
// state and the commands themselves.
type manifestT struct {
	Root      *cobra.Command
	Dump      *cobra.Command
	Summarize *cobra.Command
	Check     *cobra.Command

	comparers map[string]*Comparer
	extractor manifest.BoundaryValuesExtractor
	verbose   bool
	json      bool
	hexKeys   bool

	parallelism int
}

func newManifest(
	comparers map[string]*Comparer, extractor manifest.BoundaryValuesExtractor,
) *manifestT {
	m := &manifestT{
		comparers: comparers,
		extractor: extractor,
	}

	m.Root = &cobra.Command{
		Use:   "manifest",
		Short: "manifest introspection tools",
	}
	m.Root.PersistentFlags().BoolVarP(&m.verbose, "verbose", "v", false, "verbose output")

	// Add dump command
	m.Dump = &cobra.Command{
		Use:   "dump <manifest-files>",
		Short: "print manifest contents",
		Long: `
Print the contents of the MANIFEST files.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  m.runDump,
	}
	m.Dump.Flags().BoolVar(&m.json, "json", false, "print one JSON object per version edit")
	m.Dump.Flags().BoolVar(&m.hexKeys, "hex", false, "print keys as hex")
	m.Root.AddCommand(m.Dump)

	// Add summarize command
	m.Summarize = &cobra.Command{
		Use:   "summarize <manifest-files>",
		Short: "summarize manifest contents",
		Long: `
Summarize the edits to the MANIFEST files: the final log state and the files
added and deleted per level.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  m.runSummarize,
	}
	m.Root.AddCommand(m.Summarize)

	// Add check command
	m.Check = &cobra.Command{
		Use:   "check <manifest-files>",
		Short: "check manifest contents",
		Long: `
Check the contents of the MANIFEST files: every edit must decode and validate,
the comparer must be known, files must not be added twice and deleted files
must be live. Files are checked concurrently.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  m.runCheck,
	}
	m.Check.Flags().IntVar(&m.parallelism, "parallelism", 4, "number of files checked concurrently")
	m.Root.AddCommand(m.Check)

	return m
}

// forEachEdit decodes the edits of the MANIFEST at path in order, calling fn
// with the offset of each record. The edit is only valid for the duration of
// the call.
func (m *manifestT) forEachEdit(
	path string, fn func(offset int64, idx int, rec []byte, ve *manifest.VersionEdit) error,
) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rr := record.NewReader(f)
	var ve manifest.VersionEdit
	for idx := 0; ; idx++ {
		offset := rr.Offset()
		rec, err := rr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := ve.DecodeFrom(m.extractor, rec); err != nil {
			return errors.Wrapf(err, "edit %d at offset %d", idx, offset)
		}
		if err := fn(offset, idx, rec, &ve); err != nil {
			return err
		}
	}
}

func (m *manifestT) runDump(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	for _, arg := range args {
		if !m.json {
			fmt.Fprintf(stdout, "%s\n", arg)
		}
		err := m.forEachEdit(arg, func(offset int64, idx int, rec []byte, ve *manifest.VersionEdit) error {
			if name, ok := ve.ComparatorName.Get(); ok && m.comparers[name] == nil {
				fmt.Fprintf(stderr, "comparer %q unknown\n", name)
			}
			if m.json {
				fmt.Fprintln(stdout, ve.DebugJSON(idx, m.hexKeys))
				return nil
			}
			fmt.Fprintf(stdout, "%d/%d\n", offset, idx)
			// If verbose, dump the binary encoding of the version edit.
			if m.verbose {
				binfmt.FHexDump(stdout, rec, 16, true)
			}
			fmt.Fprint(stdout, ve.DebugString(m.hexKeys))
			return nil
		})
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", arg, err)
		}
	}
}

type levelSummary struct {
	added, deleted int
	addedBytes     uint64
}

type manifestSummary struct {
	edits      int
	comparator string
	logNumber  manifest.Optional[uint64]
	nextFile   manifest.Optional[uint64]
	lastSeq    manifest.Optional[base.SeqNum]
	flushedOp  base.OpID
	cfAdded    []string
	cfDropped  []uint32
	levels     [manifest.NumLevels]levelSummary
	live       map[base.FileNum]liveFile
}

type liveFile struct {
	level int
	size  uint64
}

func (s *manifestSummary) accumulate(ve *manifest.VersionEdit) {
	s.edits++
	if name, ok := ve.ComparatorName.Get(); ok {
		s.comparator = name
	}
	if ve.LogNumber.IsSet() {
		s.logNumber = ve.LogNumber
	}
	if ve.NextFileNumber.IsSet() {
		s.nextFile = ve.NextFileNumber
	}
	if ve.LastSequence.IsSet() {
		s.lastSeq = ve.LastSequence
	}
	if !ve.FlushedOpID.Empty() {
		s.flushedOp = ve.FlushedOpID
	}
	if name, ok := ve.ColumnFamilyName.Get(); ok {
		s.cfAdded = append(s.cfAdded, name)
	}
	if ve.IsColumnFamilyDrop {
		s.cfDropped = append(s.cfDropped, ve.ColumnFamily)
	}
	for _, df := range ve.GetDeletedFiles() {
		s.levels[df.Level].deleted++
		delete(s.live, df.FileNum)
	}
	for _, nf := range ve.GetNewFiles() {
		size := nf.Meta.FD.TotalFileSize
		s.levels[nf.Level].added++
		s.levels[nf.Level].addedBytes += size
		s.live[nf.Meta.FD.Number()] = liveFile{level: nf.Level, size: size}
	}
}

func formatOptional[T any](o manifest.Optional[T]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprint(v)
	}
	return "-"
}

func (s *manifestSummary) write(w io.Writer) {
	fmt.Fprintf(w, "edits: %d\n", s.edits)
	fmt.Fprintf(w, "comparator: %s\n", s.comparator)
	fmt.Fprintf(w, "log number: %s\n", formatOptional(s.logNumber))
	fmt.Fprintf(w, "next file: %s\n", formatOptional(s.nextFile))
	fmt.Fprintf(w, "last sequence: %s\n", formatOptional(s.lastSeq))
	fmt.Fprintf(w, "flushed op id: %s\n", s.flushedOp)
	for _, name := range s.cfAdded {
		fmt.Fprintf(w, "column family added: %s\n", name)
	}
	for _, id := range s.cfDropped {
		fmt.Fprintf(w, "column family dropped: %d\n", id)
	}

	var liveCount [manifest.NumLevels]int
	var liveBytes [manifest.NumLevels]uint64
	for _, f := range s.live {
		liveCount[f.level]++
		liveBytes[f.level] += f.size
	}
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Level", "Added", "Added Bytes", "Deleted", "Live", "Live Bytes"})
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	var total levelSummary
	var totalLive int
	var totalLiveBytes uint64
	for level, l := range s.levels {
		tbl.Append([]string{
			fmt.Sprintf("L%d", level),
			strconv.Itoa(l.added),
			strconv.FormatUint(l.addedBytes, 10),
			strconv.Itoa(l.deleted),
			strconv.Itoa(liveCount[level]),
			strconv.FormatUint(liveBytes[level], 10),
		})
		total.added += l.added
		total.addedBytes += l.addedBytes
		total.deleted += l.deleted
		totalLive += liveCount[level]
		totalLiveBytes += liveBytes[level]
	}
	tbl.Append([]string{
		"total",
		strconv.Itoa(total.added),
		strconv.FormatUint(total.addedBytes, 10),
		strconv.Itoa(total.deleted),
		strconv.Itoa(totalLive),
		strconv.FormatUint(totalLiveBytes, 10),
	})
	tbl.Render()
}

func (m *manifestT) runSummarize(cmd *cobra.Command, args []string) {
	for _, arg := range args {
		err := m.runSummarizeOne(cmd.OutOrStdout(), arg)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", arg, err)
		}
	}
}

func (m *manifestT) runSummarizeOne(stdout io.Writer, arg string) error {
	s := manifestSummary{live: make(map[base.FileNum]liveFile)}
	err := m.forEachEdit(arg, func(_ int64, _ int, _ []byte, ve *manifest.VersionEdit) error {
		s.accumulate(ve)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", arg)
	s.write(stdout)
	return nil
}

func (m *manifestT) runCheck(cmd *cobra.Command, args []string) {
	results := make([]error, len(args))
	numEdits := make([]int, len(args))
	var g errgroup.Group
	g.SetLimit(max(1, m.parallelism))
	for i, arg := range args {
		g.Go(func() error {
			numEdits[i], results[i] = m.checkOne(arg)
			return nil
		})
	}
	_ = g.Wait()

	stdout := cmd.OutOrStdout()
	for i, arg := range args {
		if results[i] != nil {
			fmt.Fprintf(stdout, "%s: %s\n", arg, results[i])
			continue
		}
		fmt.Fprintf(stdout, "%s: OK (%d edits)\n", arg, numEdits[i])
	}
}

// checkOne checks a single MANIFEST, returning the number of edits it holds.
func (m *manifestT) checkOne(path string) (int, error) {
	var cmp *Comparer
	live := make(map[base.FileNum]int)
	var n int
	err := m.forEachEdit(path, func(offset int64, idx int, _ []byte, ve *manifest.VersionEdit) error {
		n++
		if name, ok := ve.ComparatorName.Get(); ok {
			if cmp = m.comparers[name]; cmp == nil {
				return errors.Errorf("edit %d: comparer %q unknown", idx, name)
			}
		}
		if cmp == nil {
			return errors.Errorf("edit %d: MANIFEST does not begin with a comparer name", idx)
		}
		if err := ve.Validate(cmp.Compare, cmp.FormatKey); err != nil {
			return errors.Wrapf(err, "edit %d at offset %d", idx, offset)
		}
		for _, df := range ve.GetDeletedFiles() {
			level, ok := live[df.FileNum]
			if !ok {
				return errors.Errorf("edit %d: deleted file %s is not live", idx, df.FileNum)
			}
			if level != df.Level {
				return errors.Errorf("edit %d: deleted file %s from L%d but it is in L%d",
					idx, df.FileNum, df.Level, level)
			}
			delete(live, df.FileNum)
		}
		for _, nf := range ve.GetNewFiles() {
			num := nf.Meta.FD.Number()
			if _, ok := live[num]; ok {
				return errors.Errorf("edit %d: file %s added twice", idx, num)
			}
			live[num] = nf.Level
		}
		return nil
	})
	return n, err
}
