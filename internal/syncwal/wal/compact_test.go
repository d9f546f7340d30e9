package wal_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
	"github.com/syncwal/syncwal/internal/testutil"
)

// openSmallSegments opens a WAL whose 64-byte threshold rotates after roughly
// every second append, so compaction tests get many sealed segments to work
// with.
func openSmallSegments(t *testing.T, n int) (*wal.WAL, string) {
	t.Helper()
	dir := t.TempDir()

	w, err := wal.Open(dir, wal.Options{SegmentMaxBytes: 64}, nil)
	tst.RequireNoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	for i := 1; i <= n; i++ {
		_, err := w.Append("a", entry.PutOp(fmt.Sprintf("n%02d", i), []byte(`{}`)))
		tst.RequireNoError(t, err)
	}
	return w, dir
}

func survivingSeqs(t *testing.T, w *wal.WAL) []uint64 {
	t.Helper()
	entries, err := w.ReadAll()
	tst.RequireNoError(t, err)
	seqs := make([]uint64, len(entries))
	for i, e := range entries {
		seqs[i] = e.Seq
	}
	return seqs
}

func TestCompactRemovesObsoleteSegments(t *testing.T) {
	w, _ := openSmallSegments(t, 30)

	segsBefore := len(w.Segments())
	tst.AssertGreaterThan(t, segsBefore, 2)

	res, err := w.Compact(11, wal.CompactConservative)
	tst.RequireNoError(t, err)

	tst.AssertEqual(t, res.RequestedSeq, uint64(11))
	tst.AssertEqual(t, res.EffectiveSeq, uint64(11))
	tst.AssertGreaterThan(t, len(res.RemovedSegments), 0)
	tst.AssertFalse(t, res.RewroteBoundary, "")
	tst.AssertEqual(t, res.AuditSeq, uint64(31))

	seqs := survivingSeqs(t, w)
	// Entries 11..30 survive, plus the audit entry.
	tst.AssertEqual(t, seqs[0], uint64(11))
	tst.AssertEqual(t, seqs[len(seqs)-1], uint64(31))
	tst.AssertEqual(t, len(seqs), 21)

	tst.AssertEqual(t, len(w.Segments()), segsBefore-len(res.RemovedSegments))
}

func TestCompactConservativeClampsBoundary(t *testing.T) {
	w, _ := openSmallSegments(t, 30)

	// Seq 12 sits mid-segment; conservative compaction keeps the whole
	// boundary segment and reports the clamped point.
	res, err := w.Compact(12, wal.CompactConservative)
	tst.RequireNoError(t, err)

	tst.AssertEqual(t, res.RequestedSeq, uint64(12))
	tst.AssertTrue(t, res.EffectiveSeq < 12, "")
	tst.AssertFalse(t, res.RewroteBoundary, "")

	seqs := survivingSeqs(t, w)
	tst.AssertEqual(t, seqs[0], res.EffectiveSeq)
	for _, seq := range seqs {
		tst.AssertTrue(t, seq >= res.EffectiveSeq, "")
	}
}

func TestCompactAggressiveRewritesBoundary(t *testing.T) {
	w, dir := openSmallSegments(t, 30)

	res, err := w.Compact(12, wal.CompactAggressive)
	tst.RequireNoError(t, err)

	tst.AssertEqual(t, res.EffectiveSeq, uint64(12))
	tst.AssertTrue(t, res.RewroteBoundary, "")
	tst.AssertGreaterThan(t, len(res.RemovedSegments), 0)

	seqs := survivingSeqs(t, w)
	tst.AssertEqual(t, seqs[0], uint64(12))
	tst.AssertEqual(t, seqs[len(seqs)-1], uint64(31)) // audit entry

	// No rewrite temp file may survive the rename.
	files, err := os.ReadDir(filepath.Join(dir, wal.WALDirName))
	tst.RequireNoError(t, err)
	for _, fi := range files {
		tst.AssertTrue(t, filepath.Ext(fi.Name()) == ".log", "")
	}
}

func TestCompactAggressiveNeverRewritesActive(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.Open(dir, wal.Options{}, nil)
	tst.RequireNoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 1; i <= 5; i++ {
		_, err := w.Append("a", entry.PutOp(fmt.Sprintf("n%d", i), []byte(`{}`)))
		tst.RequireNoError(t, err)
	}

	// The single segment is active; the aggressive request degrades to a
	// conservative clamp and nothing is removed.
	res, err := w.Compact(3, wal.CompactAggressive)
	tst.RequireNoError(t, err)

	tst.AssertEqual(t, res.EffectiveSeq, uint64(1))
	tst.AssertFalse(t, res.RewroteBoundary, "")
	tst.AssertEqual(t, len(res.RemovedSegments), 0)

	seqs := survivingSeqs(t, w)
	tst.AssertEqual(t, len(seqs), 6)
	tst.AssertEqual(t, seqs[0], uint64(1))
}

func TestCompactWritesAuditEntry(t *testing.T) {
	w, _ := openSmallSegments(t, 10)

	res, err := w.Compact(5, wal.CompactConservative)
	tst.RequireNoError(t, err)

	entries, err := w.ReadAll()
	tst.RequireNoError(t, err)

	audit := entries[len(entries)-1]
	tst.AssertEqual(t, audit.Seq, res.AuditSeq)
	tst.AssertEqual(t, audit.Actor, wal.AuditActor)
	tst.AssertEqual(t, audit.Op.Kind, entry.OpCompact)
	tst.AssertEqual(t, audit.Op.ThroughSeq, res.EffectiveSeq)
}

func TestCompactPastEndIsUsageError(t *testing.T) {
	w, _ := openSmallSegments(t, 3)

	_, err := w.Compact(4, wal.CompactConservative)
	tst.AssertTrue(t, errors.Is(err, wal.ErrCompactPastEnd), "")

	// Compacting exactly through the highest assigned seq is allowed.
	_, err = w.Compact(3, wal.CompactConservative)
	tst.RequireNoError(t, err)
}

func TestCompactOnClosedWAL(t *testing.T) {
	w, _ := openSmallSegments(t, 3)
	tst.RequireNoError(t, w.Close())

	_, err := w.Compact(2, wal.CompactConservative)
	tst.AssertTrue(t, errors.Is(err, wal.ErrWALClosed), "")
}

func TestCompactSurvivesReopen(t *testing.T) {
	w, dir := openSmallSegments(t, 20)

	res, err := w.Compact(9, wal.CompactConservative)
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, w.Close())

	re, err := wal.Open(dir, wal.Options{SegmentMaxBytes: 64}, nil)
	tst.RequireNoError(t, err)
	defer func() { _ = re.Close() }()

	// nextSeq resumes past the audit entry; the removed prefix stays gone.
	tst.AssertEqual(t, re.NextSeq(), res.AuditSeq+1)
	seqs := survivingSeqs(t, re)
	tst.AssertEqual(t, seqs[0], res.EffectiveSeq)
}

func TestOpenRemovesStaleRewriteTemp(t *testing.T) {
	dir := t.TempDir()
	testutil.BuildWAL(t, dir, wal.Options{}, []testutil.Append{
		{Actor: "a", Op: entry.PutOp("n1", []byte(`{}`))},
	})

	stale := filepath.Join(dir, wal.WALDirName, "000000000001.log.compact")
	tst.RequireNoError(t, os.WriteFile(stale, []byte("leftover"), 0o600))

	w, err := wal.Open(dir, wal.Options{}, nil)
	tst.RequireNoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = os.Stat(stale)
	tst.AssertTrue(t, os.IsNotExist(err), "")
}
