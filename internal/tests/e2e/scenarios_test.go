package e2e_test

import (
	"fmt"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/syncwal/syncwal/internal/syncwal/replay"
	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
	"github.com/syncwal/syncwal/internal/testutil"
)

// corruptNthFrame flips one payload byte in the n-th frame (zero-based)
// counted across all segments in index order.
func corruptNthFrame(t *testing.T, dataDir string, n int) {
	t.Helper()

	for _, path := range testutil.SegmentPaths(t, dataDir) {
		spans := testutil.FrameSpans(t, path)
		if n < len(spans) {
			testutil.CorruptFramePayload(t, path, n)
			return
		}
		n -= len(spans)
	}
	t.Fatalf("frame index out of range by %d", n)
}

// TestBasicRoundTrip appends two puts and a delete, then rebuilds state
// from disk: the deleted node is gone and the stats account for every entry.
func TestBasicRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.Open(dir, wal.Options{Durability: wal.DurabilitySync}, nil)
	tst.RequireNoError(t, err)

	seq, err := w.Append("x", entry.PutOp("a", []byte(`{"v":1}`)))
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, seq, uint64(1))

	seq, err = w.Append("y", entry.PutOp("b", []byte(`{"v":2}`)))
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, seq, uint64(2))

	seq, err = w.Append("x", entry.DeleteOp("a"))
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, seq, uint64(3))

	entries, err := w.ReadAll()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(entries), 3)
	for i, e := range entries {
		tst.AssertEqual(t, e.Seq, uint64(i+1))
	}
	tst.RequireNoError(t, w.Close())

	st, stats, err := replay.RebuildFromWAL(dir, true, nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, stats.Puts, 2)
	tst.AssertEqual(t, stats.Deletes, 1)
	tst.AssertEqual(t, stats.Errors, 0)
	tst.AssertEqual(t, stats.FinalNodeCount, 1)
	tst.AssertEqual(t, stats.SuccessRate(), 1.0)

	doc, ok := st.Get("b")
	tst.AssertTrue(t, ok, "")
	tst.AssertDeepEqual(t, doc.Data, []byte(`{"v":2}`))
	_, ok = st.Get("a")
	tst.AssertFalse(t, ok, "")
}

// TestCrashMidWrite simulates a crash that leaves a half-written frame at
// the tail of the active segment: reopening recovers everything before it.
func TestCrashMidWrite(t *testing.T) {
	dir := t.TempDir()

	appends := make([]testutil.Append, 100)
	for i := range appends {
		appends[i] = testutil.Append{
			Actor: "w",
			Op:    entry.PutOp(fmt.Sprintf("n%03d", i), []byte(`{"v":0}`)),
		}
	}
	testutil.BuildWAL(t, dir, wal.Options{}, appends)

	paths := testutil.SegmentPaths(t, dir)
	tst.AssertEqual(t, len(paths), 1)
	testutil.TruncateTail(t, paths[0], 1)

	w, err := wal.Open(dir, wal.Options{}, nil)
	tst.RequireNoError(t, err)
	defer func() { _ = w.Close() }()

	entries, err := w.ReadAll()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(entries), 99)
	tst.AssertEqual(t, w.NextSeq(), uint64(100))

	_, stats, err := replay.ReplayWAL(dir, "", nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, stats.Errors, 0, "a truncated tail is not corruption")
	tst.AssertEqual(t, stats.Puts, 99)

	// Writing resumes cleanly after the crash; the reissued seq reads back.
	seq, err := w.Append("w", entry.PutOp("n099", []byte(`{"v":1}`)))
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, seq, uint64(100))

	entries, err = w.ReadAll()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(entries), 100)
	tst.AssertEqual(t, entries[99].Seq, uint64(100))

	rep, err := w.Validate()
	tst.RequireNoError(t, err)
	tst.AssertTrue(t, rep.IsHealthy(), "post-crash appends must not read as corruption")
	tst.RequireNoError(t, w.Close())

	st, stats, err := replay.RebuildFromWAL(dir, true, nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, stats.Errors, 0)
	tst.AssertEqual(t, stats.Puts, 100)
	doc, ok := st.Get("n099")
	tst.AssertTrue(t, ok, "")
	tst.AssertDeepEqual(t, doc.Data, []byte(`{"v":1}`))
}

// TestCorruptionInSealedSegment flips one payload byte in the 50th frame
// of a multi-segment log: exactly one entry is reported corrupt and replay
// builds state from the rest.
func TestCorruptionInSealedSegment(t *testing.T) {
	dir := t.TempDir()

	appends := make([]testutil.Append, 200)
	for i := range appends {
		appends[i] = testutil.Append{
			Actor: "w",
			Op:    entry.PutOp(fmt.Sprintf("n%03d", i), []byte(`{"v":0}`)),
		}
	}
	testutil.BuildWAL(t, dir, wal.Options{SegmentMaxBytes: 64}, appends)
	tst.AssertGreaterThan(t, len(testutil.SegmentPaths(t, dir)), 1)

	corruptNthFrame(t, dir, 49)

	r, err := wal.OpenReader(dir, nil)
	tst.RequireNoError(t, err)
	report, err := r.Validate()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, report.CorruptedEntries, 1)
	tst.AssertEqual(t, report.CorruptedSegments, 1)
	tst.AssertEqual(t, report.ValidEntries, 199)
	tst.AssertFalse(t, report.IsHealthy(), "")

	st, stats, err := replay.ReplayWAL(dir, "", nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, stats.Errors, 1)
	tst.AssertEqual(t, stats.Puts, 199)
	tst.AssertEqual(t, stats.TotalEntries, 200)
	tst.AssertEqual(t, st.Len(), 199)
}

// TestConservativeCompaction compacts a 1000-entry log through seq 500 and
// checks the surviving prefix, the audit trail, and replay consistency.
func TestConservativeCompaction(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.Open(dir, wal.Options{SegmentMaxBytes: 1024, Durability: wal.DurabilityFlush}, nil)
	tst.RequireNoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 1; i <= 1000; i++ {
		_, err := w.Append("w", entry.PutOp(fmt.Sprintf("n%04d", i), []byte(`{"v":0}`)))
		tst.RequireNoError(t, err)
	}

	before, _, err := replay.Replay(w, "", nil)
	tst.RequireNoError(t, err)

	res, err := w.Compact(500, wal.CompactConservative)
	tst.RequireNoError(t, err)
	tst.AssertTrue(t, res.EffectiveSeq <= 500, "")

	entries, err := w.ReadAll()
	tst.RequireNoError(t, err)
	for _, e := range entries {
		tst.AssertTrue(t, e.Seq >= res.EffectiveSeq, "")
	}

	audit := entries[len(entries)-1]
	tst.AssertEqual(t, audit.Op.Kind, entry.OpCompact)
	tst.AssertEqual(t, audit.Actor, wal.AuditActor)
	tst.AssertEqual(t, audit.Op.ThroughSeq, res.EffectiveSeq)

	// Replay after compaction matches the original state restricted to the
	// surviving entries; every put used a distinct id, so the surviving ids
	// are exactly those written at seq >= the effective point.
	after, stats, err := replay.Replay(w, "", nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, stats.Errors, 0)
	tst.AssertEqual(t, after.Len(), 1000-int(res.EffectiveSeq)+1)
	for id, doc := range after.Snapshot() {
		orig, ok := before.Get(id)
		tst.AssertTrue(t, ok, "")
		tst.AssertEqual(t, orig.Seq, doc.Seq)
	}
}

// TestActorFilteredReplay alternates two writers and replays only one.
func TestActorFilteredReplay(t *testing.T) {
	dir := t.TempDir()

	appends := make([]testutil.Append, 10)
	for i := range appends {
		actor := "p"
		if i%2 == 1 {
			actor = "q"
		}
		appends[i] = testutil.Append{
			Actor: actor,
			Op:    entry.PutOp(fmt.Sprintf("%s%d", actor, i), []byte(`{"v":0}`)),
		}
	}
	testutil.BuildWAL(t, dir, wal.Options{}, appends)

	st, stats, err := replay.ReplayWAL(dir, "p", nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, stats.Puts, 5)
	tst.AssertEqual(t, stats.Skipped, 5)
	tst.AssertEqual(t, stats.FinalNodeCount, 5)

	for id := range st.Snapshot() {
		tst.AssertEqual(t, id[0], byte('p'))
	}
}

// TestRotationPreservesSequence forces several rotations over 500 appends
// and checks that reads come back seq 1..500 from consecutively numbered
// segment files.
func TestRotationPreservesSequence(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.Open(dir, wal.Options{SegmentMaxBytes: 4 << 10}, nil)
	tst.RequireNoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 1; i <= 500; i++ {
		_, err := w.Append("w", entry.PutOp(fmt.Sprintf("n%04d", i), []byte(`{"v":0}`)))
		tst.RequireNoError(t, err)
	}

	segs := w.Segments()
	tst.AssertGreaterThan(t, len(segs), 3)
	for i, si := range segs {
		tst.AssertEqual(t, si.Index, uint64(i+1), "segment indexes start at 1 and are consecutive")
	}

	entries, err := w.ReadAll()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(entries), 500)
	for i, e := range entries {
		tst.AssertEqual(t, e.Seq, uint64(i+1))
	}
}
