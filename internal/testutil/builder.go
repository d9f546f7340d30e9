package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

// Append pairs an operation with the actor that writes it
type Append struct {
	Actor string
	Op    entry.Operation
}

// BuildWAL creates a WAL under dataDir, appends the given operations in
// order, and closes it. Returns the assigned sequence numbers.
func BuildWAL(t *testing.T, dataDir string, opts wal.Options, appends []Append) []uint64 {
	t.Helper()

	w, err := wal.Open(dataDir, opts, nil)
	tst.RequireNoError(t, err)

	seqs := make([]uint64, 0, len(appends))
	for _, a := range appends {
		seq, err := w.Append(a.Actor, a.Op)
		tst.RequireNoError(t, err)
		seqs = append(seqs, seq)
	}
	tst.RequireNoError(t, w.Close())
	return seqs
}

// SegmentPaths returns the segment file paths under dataDir in index order.
func SegmentPaths(t *testing.T, dataDir string) []string {
	t.Helper()

	walDir := filepath.Join(dataDir, wal.WALDirName)
	entries, err := os.ReadDir(walDir)
	tst.RequireNoError(t, err)

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		paths = append(paths, filepath.Join(walDir, e.Name()))
	}
	sort.Strings(paths)
	return paths
}
