package wal

import (
	"bufio"
	"io"
	"os"

	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

// CompactStrategy selects how the boundary segment is treated when a
// compaction point falls inside it.
type CompactStrategy uint8

const (
	// CompactConservative never rewrites the boundary segment; the compaction
	// point is clamped down to the boundary segment's first seq.
	CompactConservative CompactStrategy = iota
	// CompactAggressive rewrites the boundary segment to a temp file holding
	// only entries with seq >= throughSeq, fsyncs it, and atomically renames
	// it into place.
	CompactAggressive
)

func (s CompactStrategy) String() string {
	switch s {
	case CompactConservative:
		return "conservative"
	case CompactAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// CompactResult reports what a compaction actually did.
type CompactResult struct {
	// RequestedSeq is the throughSeq the caller asked for.
	RequestedSeq uint64 `json:"requested_seq"`
	// EffectiveSeq is the compaction point after any conservative clamping;
	// every surviving entry has seq >= EffectiveSeq or lives in the boundary
	// segment.
	EffectiveSeq uint64 `json:"effective_seq"`
	// RemovedSegments lists the indexes of unlinked segments.
	RemovedSegments []uint64 `json:"removed_segments"`
	// RewroteBoundary is true when the aggressive path rewrote the boundary.
	RewroteBoundary bool `json:"rewrote_boundary"`
	// AuditSeq is the seq of the Compact audit entry appended afterwards.
	AuditSeq uint64 `json:"audit_seq"`
}

// Compact discards the log prefix below throughSeq. Fully obsolete segments
// are unlinked; a boundary segment straddling throughSeq is clamped
// (conservative) or rewritten via temp-file-then-rename (aggressive). A
// Compact audit entry is appended and fsynced last, so a crash between rename
// and audit leaves a completed compaction without its trail, which the next
// open observes as a gap in first seqs. nextSeq is never changed.
//
// Compacting past the highest assigned seq is a usage error.
func (w *WAL) Compact(throughSeq uint64, strategy CompactStrategy) (CompactResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := CompactResult{RequestedSeq: throughSeq, EffectiveSeq: throughSeq}

	if w.closed {
		return res, logClosed(w.dir)
	}
	highest := w.nextSeq - 1
	if throughSeq > highest {
		return res, wrapLogErr("compact", ErrCompactPastEnd, w.dir, w.activeIndex, nil)
	}

	// Locate the boundary segment: the one whose range straddles throughSeq.
	// A segment whose first seq equals throughSeq is not a boundary; nothing
	// inside it is discardable.
	boundary := -1
	for i := range w.segments {
		si := w.segments[i]
		if si.FirstSeq != 0 && si.FirstSeq < throughSeq && throughSeq <= si.LastSeq {
			boundary = i
			break
		}
	}

	if boundary >= 0 {
		si := &w.segments[boundary]
		if strategy == CompactAggressive && si.Index != w.activeIndex {
			if err := w.rewriteBoundaryLocked(si, throughSeq); err != nil {
				return res, err
			}
			res.RewroteBoundary = true
		} else {
			// Conservative clamp. The active segment is never rewritten, so an
			// aggressive request whose boundary is active clamps too.
			res.EffectiveSeq = si.FirstSeq
		}
	}

	// Unlink fully obsolete segments: every entry below the effective point.
	kept := w.segments[:0]
	for _, si := range w.segments {
		obsolete := si.Index != w.activeIndex && si.LastSeq != 0 && si.LastSeq < res.EffectiveSeq
		if !obsolete {
			kept = append(kept, si)
			continue
		}
		if err := os.Remove(si.Path); err != nil {
			w.segments = kept
			return res, wrapLogErr("unlink_segment", ErrSegmentUnlink, w.dir, si.Index, err)
		}
		res.RemovedSegments = append(res.RemovedSegments, si.Index)
	}
	w.segments = kept

	if len(res.RemovedSegments) > 0 || res.RewroteBoundary {
		if err := syncDir(w.dir); err != nil {
			return res, wrapLogErr("sync_dir", ErrSegmentSync, w.dir, w.activeIndex, err)
		}
	}

	audit, err := w.appendLocked(AuditActor, entry.CompactOp(res.EffectiveSeq), true)
	if err != nil {
		return res, err
	}
	res.AuditSeq = audit.Seq

	w.log.Info("compaction complete",
		"requested_seq", res.RequestedSeq,
		"effective_seq", res.EffectiveSeq,
		"removed_segments", len(res.RemovedSegments),
		"rewrote_boundary", res.RewroteBoundary,
	)
	return res, nil
}

// rewriteBoundaryLocked streams the boundary segment into a temp file keeping
// only entries with seq >= throughSeq, fsyncs, and renames it into place.
// A failure before the rename deletes the temp file and leaves the original
// untouched, so recovery always sees either the pre- or post-compaction file.
func (w *WAL) rewriteBoundaryLocked(si *SegmentInfo, throughSeq uint64) error {
	src, err := os.Open(si.Path) //nolint:gosec
	if err != nil {
		return wrapLogErr("rewrite_segment", ErrSegmentRewrite, w.dir, si.Index, err)
	}
	defer func() { _ = src.Close() }()

	tmpPath := si.Path + compactTempSuffix
	_ = os.Remove(tmpPath)
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600) //nolint:gosec
	if err != nil {
		return wrapLogErr("rewrite_segment", ErrSegmentRewrite, w.dir, si.Index, err)
	}

	fail := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return wrapLogErr("rewrite_segment", ErrSegmentRewrite, w.dir, si.Index, cause)
	}

	bw := bufio.NewWriterSize(tmp, segmentWriterBufferSize)
	var firstSeq, lastSeq uint64
	var size int64

	sc := NewScanner(src)
	for {
		e, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(err)
		}
		if e.Seq < throughSeq {
			continue
		}

		frame, err := entry.EncodeEntry(e)
		if err != nil {
			return fail(err)
		}
		if _, err := bw.Write(frame); err != nil {
			return fail(err)
		}
		if firstSeq == 0 {
			firstSeq = e.Seq
		}
		lastSeq = e.Seq
		size += int64(len(frame))
	}

	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return wrapLogErr("rewrite_segment", ErrSegmentRewrite, w.dir, si.Index, err)
	}

	if err := os.Rename(tmpPath, si.Path); err != nil {
		_ = os.Remove(tmpPath)
		return wrapLogErr("rewrite_segment", ErrSegmentRewrite, w.dir, si.Index, err)
	}

	si.FirstSeq = firstSeq
	si.LastSeq = lastSeq
	si.Size = size
	return nil
}
