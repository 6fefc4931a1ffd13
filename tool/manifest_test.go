// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/lsmkit/vedit"
	"github.com/lsmkit/vedit/internal/base"
	"github.com/lsmkit/vedit/internal/frontier"
	"github.com/lsmkit/vedit/record"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func testFile(num vedit.FileNum, size uint64, smallest, largest string, seq vedit.SeqNum) *vedit.FileMetadata {
	m := &vedit.FileMetadata{FD: vedit.MakeFileDescriptor(num, 0, size, size)}
	for i, k := range []string{smallest, largest} {
		s := seq + vedit.SeqNum(i)
		m.UpdateBoundaries(vedit.DefaultComparer.Compare, vedit.MakeInternalKey([]byte(k), s, vedit.InternalKeyKindSet),
			vedit.BoundaryValues{SeqNum: s, Frontier: frontier.Make(vedit.MakeOpID(1, int64(s)), 0)})
	}
	return m
}

// writeTestManifest writes a MANIFEST that flushes two files into L0 and then
// compacts them into a single L1 file.
func writeTestManifest(t *testing.T, dir string) string {
	path := filepath.Join(dir, "MANIFEST-000001")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := vedit.CreateManifest(f, &vedit.Options{Logger: base.NoopLogger{}})
	require.NoError(t, err)

	var ve vedit.VersionEdit
	ve.SetLogNumber(3)
	ve.SetNextFile(6)
	ve.SetLastSequence(10)
	ve.AddFile(0, testFile(4, 100, "a", "c", 1))
	ve.AddFile(0, testFile(5, 200, "b", "d", 5))
	require.NoError(t, m.LogAndApply(&ve, nil))

	ve = vedit.VersionEdit{}
	ve.SetNextFile(7)
	ve.SetLastSequence(10)
	ve.SetFlushedOpID(vedit.MakeOpID(1, 10))
	ve.DeleteFile(0, 4)
	ve.DeleteFile(0, 5)
	ve.AddFile(1, testFile(6, 250, "a", "d", 1))
	require.NoError(t, m.LogAndApply(&ve, nil))
	require.NoError(t, m.Close())
	return path
}

func runTool(t *testing.T, args ...string) (stdout, stderr string) {
	tool := New()
	root := &cobra.Command{Use: "vedit"}
	root.AddCommand(tool.Commands...)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String(), errOut.String()
}

func TestManifestDump(t *testing.T) {
	path := writeTestManifest(t, t.TempDir())
	stdout, stderr := runTool(t, "manifest", "dump", path)
	require.Empty(t, stderr)

	lines := crstrings.Lines(stdout)
	require.Equal(t, path, lines[0])
	require.Equal(t, "0/0", lines[1])
	require.Equal(t, "VersionEdit {", lines[2])
	require.Contains(t, stdout, "  Comparator: leveldb.BytewiseComparator\n")
	require.Contains(t, stdout, "  DeleteFile: 0 000004\n")
	require.Contains(t, stdout, "  DeleteFile: 0 000005\n")
	require.Contains(t, stdout, "  AddFile: 1 000006:[a#1,SET-d#2,SET]")
	require.Contains(t, stdout, "  FlushedOpId: 1.10\n")
	require.Equal(t, 3, strings.Count(stdout, "VersionEdit {"))

	stdout, _ = runTool(t, "manifest", "dump", "--hex", path)
	require.Contains(t, stdout, "  AddFile: 1 000006:[61#1,SET-64#2,SET]")

	stdout, _ = runTool(t, "manifest", "dump", "-v", path)
	require.Contains(t, stdout, "00:  ")
}

func TestManifestDumpJSON(t *testing.T) {
	path := writeTestManifest(t, t.TempDir())
	stdout, stderr := runTool(t, "manifest", "dump", "--json", path)
	require.Empty(t, stderr)

	lines := crstrings.Lines(stdout)
	require.Len(t, lines, 3)
	for i, l := range lines {
		require.True(t, strings.HasPrefix(l, `{"EditNumber":`), "line %d: %s", i, l)
	}
	require.Contains(t, lines[0], `"Comparator":"leveldb.BytewiseComparator"`)
	require.Contains(t, lines[2], `"DeletedFiles":[{"Level":0,"FileNumber":4},{"Level":0,"FileNumber":5}]`)
}

func TestManifestSummarize(t *testing.T) {
	path := writeTestManifest(t, t.TempDir())
	stdout, stderr := runTool(t, "manifest", "summarize", path)
	require.Empty(t, stderr)

	for _, s := range []string{
		"edits: 3\n",
		"comparator: leveldb.BytewiseComparator\n",
		"log number: 3\n",
		"next file: 7\n",
		"last sequence: 10\n",
		"flushed op id: 1.10\n",
	} {
		require.Contains(t, stdout, s)
	}
	require.Contains(t, stdout, "LIVE BYTES")
	l0 := tableRow(t, stdout, "L0")
	require.Equal(t, []string{"L0", "2", "300", "2", "0", "0"}, l0)
	l1 := tableRow(t, stdout, "L1")
	require.Equal(t, []string{"L1", "1", "250", "0", "1", "250"}, l1)
	total := tableRow(t, stdout, "total")
	require.Equal(t, []string{"total", "3", "550", "2", "1", "250"}, total)
}

// tableRow returns the cells of the table row whose first cell is name.
func tableRow(t *testing.T, out, name string) []string {
	for _, l := range crstrings.Lines(out) {
		if !strings.HasPrefix(l, "|") {
			continue
		}
		var cells []string
		for _, c := range strings.Split(strings.Trim(l, "|"), "|") {
			cells = append(cells, strings.TrimSpace(c))
		}
		if len(cells) > 0 && cells[0] == name {
			return cells
		}
	}
	t.Fatalf("no row %q in:\n%s", name, out)
	return nil
}

func TestManifestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeTestManifest(t, dir)

	// A MANIFEST that deletes a file it never added.
	badPath := filepath.Join(dir, "MANIFEST-000002")
	f, err := os.Create(badPath)
	require.NoError(t, err)
	m, err := vedit.CreateManifest(f, &vedit.Options{Logger: base.NoopLogger{}})
	require.NoError(t, err)
	var ve vedit.VersionEdit
	ve.DeleteFile(2, 9)
	require.NoError(t, m.LogAndApply(&ve, nil))
	require.NoError(t, m.Close())
	require.NoError(t, f.Close())

	// A MANIFEST with a torn tail.
	data, err := os.ReadFile(good)
	require.NoError(t, err)
	tornPath := filepath.Join(dir, "MANIFEST-000003")
	require.NoError(t, os.WriteFile(tornPath, data[:len(data)-1], 0644))

	// A MANIFEST whose first edit does not name a comparer.
	noCmpPath := filepath.Join(dir, "MANIFEST-000004")
	var buf bytes.Buffer
	w := record.NewWriter(&buf)
	ve = vedit.VersionEdit{}
	ve.SetLastSequence(1)
	enc, err := ve.AppendEncodedTo(nil)
	require.NoError(t, err)
	_, err = w.WriteRecord(enc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(noCmpPath, buf.Bytes(), 0644))

	stdout, _ := runTool(t, "manifest", "check", "--parallelism", "2",
		good, badPath, tornPath, noCmpPath, filepath.Join(dir, "missing"))
	lines := crstrings.Lines(stdout)
	require.Len(t, lines, 5)
	require.Equal(t, good+": OK (3 edits)", lines[0])
	require.Equal(t, badPath+": edit 1: deleted file 000009 is not live", lines[1])
	require.True(t, strings.HasPrefix(lines[2], tornPath+": "), lines[2])
	require.Contains(t, lines[2], "unexpected EOF")
	require.Equal(t, noCmpPath+": edit 0: MANIFEST does not begin with a comparer name", lines[3])
	require.Contains(t, lines[4], "no such file or directory")
}
