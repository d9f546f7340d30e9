package wal

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/julianstephens/go-utils/helpers"

	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

const (
	// DefaultSegmentMaxBytes is the rotation threshold when none is configured.
	DefaultSegmentMaxBytes int64 = 64 * 1024 * 1024

	// AuditActor stamps entries the WAL writes on its own behalf (compaction
	// audit records).
	AuditActor = "_wal"
)

// Options configures an opened WAL.
type Options struct {
	// SegmentMaxBytes is the size at which the active segment is sealed and a
	// successor opened. 0 selects DefaultSegmentMaxBytes; negative disables
	// rotation (single segment).
	SegmentMaxBytes int64
	// Durability is the persistence contract applied after each append.
	Durability Durability
}

func (o Options) segmentMaxBytes() int64 {
	if o.SegmentMaxBytes == 0 {
		return DefaultSegmentMaxBytes
	}
	return o.SegmentMaxBytes
}

// WAL owns one data directory: the segment files under <dataDir>/wal/, the
// sequence counter, and the active appender. One WAL instance is the single
// writer for its directory; appends are serialized by an internal mutex.
type WAL struct {
	mu sync.Mutex

	dir  string // <dataDir>/wal
	opts Options
	log  logger.Logger

	// segments is kept sorted ascending by index and includes the active one.
	segments    []SegmentInfo
	active      *SegmentAppender
	activeIndex uint64

	// nextSeq is the sequence number the next successful append receives.
	nextSeq uint64

	lock   *dirLock
	closed bool
}

func logClosed(dir string) error {
	return &LogError{Err: ErrWALClosed, Dir: dir, Op: "log"}
}

func wrapLogErr(op string, sentinel error, dir string, segment uint64, cause error) error {
	return &LogError{
		Err:     sentinel,
		Dir:     dir,
		Segment: segment,
		Op:      op,
		Cause:   cause,
	}
}

// Open opens or creates the WAL under dataDir, discovers existing segments,
// scans them to recover sequence ranges, and prepares the highest-index
// segment for append. A partially written frame at the tail of the active
// segment (a crash mid-write) is trimmed off so appends resume at a clean
// frame boundary. nextSeq resumes at (max seen seq) + 1, or 1 when empty.
func Open(dataDir string, opts Options, lg logger.Logger) (*WAL, error) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	if dataDir == "" {
		return nil, wrapLogErr("open", ErrInvalidWALDir, dataDir, 0, nil)
	}

	dir := filepath.Join(dataDir, WALDirName)
	if err := helpers.Ensure(dir, true); err != nil {
		return nil, wrapLogErr("ensure_wal_dir", ErrInvalidWALDir, dir, 0, err)
	}

	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, wrapLogErr("lock_wal_dir", ErrDirLocked, dir, 0, err)
	}

	w := &WAL{
		dir:  dir,
		opts: opts,
		log:  lg,
		lock: lock,
	}

	if err := removeStaleTempFiles(dir); err != nil {
		_ = lock.release()
		return nil, wrapLogErr("remove_temp_files", ErrSegmentList, dir, 0, err)
	}

	infos, err := listSegments(dir)
	if err != nil {
		_ = lock.release()
		return nil, wrapLogErr("list_segments", ErrSegmentList, dir, 0, err)
	}

	var maxSeq uint64
	for i := range infos {
		last := i == len(infos)-1
		trimAt, trim, err := scanSegmentInfo(&infos[i], last, lg)
		if err != nil {
			_ = lock.release()
			return nil, wrapLogErr("scan_segment", ErrSegmentOpen, dir, infos[i].Index, err)
		}
		if trim {
			// The active segment ends in a partially written frame. It must be
			// cut back to the last frame boundary before the appender resumes,
			// or the next append lands after the garbage and the stale length
			// prefix makes every later scan misparse the new frame.
			if err := trimSegmentTail(infos[i].Path, trimAt); err != nil {
				_ = lock.release()
				return nil, wrapLogErr("trim_segment", ErrSegmentOpen, dir, infos[i].Index, err)
			}
			infos[i].Size = trimAt
			lg.Warn("trimmed partial frame from active segment",
				"segment", infos[i].Index, "offset", trimAt)
		}
		if infos[i].LastSeq > maxSeq {
			maxSeq = infos[i].LastSeq
		}
	}
	w.segments = infos
	w.nextSeq = maxSeq + 1

	if len(w.segments) == 0 {
		if err := w.createSegmentLocked(FirstSegmentIndex); err != nil {
			_ = lock.release()
			return nil, err
		}
	} else {
		active := w.segments[len(w.segments)-1]
		file, err := os.OpenFile(active.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600) //nolint:gosec
		if err != nil {
			_ = lock.release()
			return nil, wrapLogErr("open_segment", ErrSegmentOpen, dir, active.Index, err)
		}
		appender, err := NewSegmentAppender(file)
		if err != nil {
			_ = file.Close()
			_ = lock.release()
			return nil, wrapLogErr("open_segment", ErrSegmentOpen, dir, active.Index, err)
		}
		w.active = appender
		w.activeIndex = active.Index
	}

	lg.Info("wal opened",
		"dir", dir,
		"segments", len(w.segments),
		"next_seq", w.nextSeq,
		"durability", opts.Durability.String(),
	)
	return w, nil
}

// scanSegmentInfo fills FirstSeq, LastSeq, and Size by scanning the segment.
// A truncated tail on the last segment is reported back with the safe trim
// offset so the caller can cut it; on sealed ones it is logged as a warning,
// since nothing will ever append there. Corrupt frames are skipped either way.
func scanSegmentInfo(info *SegmentInfo, last bool, lg logger.Logger) (trimAt int64, trim bool, err error) {
	file, err := os.Open(info.Path) //nolint:gosec
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = file.Close() }()

	st, err := file.Stat()
	if err != nil {
		return 0, false, err
	}
	info.Size = st.Size()

	sc := NewScanner(file)
	for {
		e, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false, err
		}
		if info.FirstSeq == 0 {
			info.FirstSeq = e.Seq
		}
		info.LastSeq = e.Seq
	}

	if sc.Truncated() {
		if last {
			trimAt, trim = sc.TruncatedAt(), true
		} else {
			lg.Warn("truncated frame in sealed segment",
				"segment", info.Index, "safe_offset", sc.TruncatedAt())
		}
	}
	if sc.Corrupted() > 0 {
		lg.Warn("corrupt frames skipped during open",
			"segment", info.Index, "count", sc.Corrupted())
	}
	return trimAt, trim, nil
}

// createSegmentLocked creates the segment file for index and makes it active.
func (w *WAL) createSegmentLocked(index uint64) error {
	path := filepath.Join(w.dir, segmentFileName(index))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o600) //nolint:gosec
	if err != nil {
		return wrapLogErr("create_segment", ErrSegmentCreate, w.dir, index, err)
	}
	appender, err := NewSegmentAppender(file)
	if err != nil {
		_ = file.Close()
		return wrapLogErr("create_segment", ErrSegmentCreate, w.dir, index, err)
	}

	w.segments = append(w.segments, SegmentInfo{Index: index, Path: path})
	w.active = appender
	w.activeIndex = index
	return nil
}

// Append assigns the next sequence number to op, stamps the wall clock,
// frames and appends the entry, applies the durability policy, and rotates
// when the active segment has reached the threshold. Failed appends do not
// consume a sequence number.
func (w *WAL) Append(actor string, op entry.Operation) (uint64, error) {
	e, err := w.AppendEntry(actor, op)
	return e.Seq, err
}

// AppendEntry is Append returning the full entry as written, so callers can
// reuse the seq and timestamp the log actually recorded.
func (w *WAL) AppendEntry(actor string, op entry.Operation) (entry.Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(actor, op, false)
}

func (w *WAL) appendLocked(actor string, op entry.Operation, forceSync bool) (entry.Entry, error) {
	if w.closed {
		return entry.Entry{}, logClosed(w.dir)
	}

	e := entry.Entry{
		Seq:       w.nextSeq,
		Timestamp: time.Now().UnixMilli(),
		Actor:     actor,
		Op:        op,
	}

	frame, err := entry.EncodeEntry(e)
	if err != nil {
		return entry.Entry{}, wrapLogErr("encode_entry", ErrInvalidFrame, w.dir, w.activeIndex, err)
	}

	if _, err := w.active.Append(frame); err != nil {
		return entry.Entry{}, wrapLogErr("append_entry", ErrAppendFailed, w.dir, w.activeIndex, err)
	}

	if err := w.applyDurabilityLocked(forceSync); err != nil {
		return entry.Entry{}, err
	}

	w.nextSeq++
	w.noteAppendedLocked(e.Seq)

	if err := w.maybeRotateLocked(); err != nil {
		// The entry is already appended and durable per policy; the seq stays
		// consumed so it is never reused.
		return entry.Entry{}, wrapLogErr("rotate_segment", ErrSegmentRotate, w.dir, w.activeIndex, err)
	}
	return e, nil
}

// AppendBatch appends one entry per operation with consecutive sequence
// numbers and applies the durability policy once for the whole batch (group
// commit). On a mid-batch write failure, sequence numbers of entries already
// written stay consumed and the error is returned.
func (w *WAL) AppendBatch(actor string, ops []entry.Operation) ([]uint64, error) {
	ents, err := w.AppendBatchEntries(actor, ops)
	if err != nil || ents == nil {
		return nil, err
	}
	seqs := make([]uint64, len(ents))
	for i, e := range ents {
		seqs[i] = e.Seq
	}
	return seqs, nil
}

// AppendBatchEntries is AppendBatch returning the full entries as written,
// including the shared wall-clock timestamp stamped into the log.
func (w *WAL) AppendBatchEntries(actor string, ops []entry.Operation) ([]entry.Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, logClosed(w.dir)
	}
	if len(ops) == 0 {
		return nil, nil
	}

	now := time.Now().UnixMilli()

	// Encode everything first so a malformed operation fails the batch before
	// any bytes reach the segment.
	frames := make([][]byte, len(ops))
	ents := make([]entry.Entry, len(ops))
	for i, op := range ops {
		ents[i] = entry.Entry{
			Seq:       w.nextSeq + uint64(i), //nolint:gosec
			Timestamp: now,
			Actor:     actor,
			Op:        op,
		}
		frame, err := entry.EncodeEntry(ents[i])
		if err != nil {
			return nil, wrapLogErr("encode_entry", ErrInvalidFrame, w.dir, w.activeIndex, err)
		}
		frames[i] = frame
	}

	for i, frame := range frames {
		if _, err := w.active.Append(frame); err != nil {
			w.nextSeq += uint64(i) //nolint:gosec
			for _, e := range ents[:i] {
				w.noteAppendedLocked(e.Seq)
			}
			return nil, wrapLogErr("append_entry", ErrAppendFailed, w.dir, w.activeIndex, err)
		}
	}

	if err := w.applyDurabilityLocked(false); err != nil {
		return nil, err
	}

	w.nextSeq += uint64(len(ops)) //nolint:gosec
	for _, e := range ents {
		w.noteAppendedLocked(e.Seq)
	}

	if err := w.maybeRotateLocked(); err != nil {
		return nil, wrapLogErr("rotate_segment", ErrSegmentRotate, w.dir, w.activeIndex, err)
	}
	return ents, nil
}

func (w *WAL) applyDurabilityLocked(forceSync bool) error {
	switch {
	case forceSync || w.opts.Durability == DurabilitySync:
		if err := w.active.FSync(); err != nil {
			return wrapLogErr("fsync_segment", ErrSegmentSync, w.dir, w.activeIndex, err)
		}
	case w.opts.Durability == DurabilityFlush:
		if err := w.active.Flush(); err != nil {
			return wrapLogErr("flush_segment", ErrSegmentFlush, w.dir, w.activeIndex, err)
		}
	}
	return nil
}

// noteAppendedLocked records seq against the active segment's info.
func (w *WAL) noteAppendedLocked(seq uint64) {
	info := &w.segments[len(w.segments)-1]
	if info.FirstSeq == 0 {
		info.FirstSeq = seq
	}
	if seq > info.LastSeq {
		info.LastSeq = seq
	}
	info.Size = w.active.CurrentOffset()
}

// maybeRotateLocked seals the active segment and opens its successor once the
// post-append size has reached the threshold. The successor is created before
// the append is acknowledged, so a crash right after rotation leaves a valid
// empty segment behind.
func (w *WAL) maybeRotateLocked() error {
	max := w.opts.segmentMaxBytes()
	if max <= 0 || w.active.CurrentOffset() < max {
		return nil
	}

	if err := w.active.Seal(); err != nil {
		return err
	}
	if err := w.active.Close(); err != nil {
		return err
	}

	next := w.activeIndex + 1
	if err := w.createSegmentLocked(next); err != nil {
		return err
	}
	if err := syncDir(w.dir); err != nil {
		return err
	}

	w.log.Debug("rotated segment", "sealed", next-1, "active", next)
	return nil
}

// ReadAll returns every decodable entry across all segments in index order,
// ascending by seq. Tail truncation is silently tolerated on the last segment
// and reported as a warning on sealed ones; corrupt frames are skipped.
func (w *WAL) ReadAll() ([]entry.Entry, error) {
	w.mu.Lock()
	if !w.closed && w.active != nil {
		if err := w.active.Flush(); err != nil {
			w.mu.Unlock()
			return nil, wrapLogErr("flush_segment", ErrSegmentFlush, w.dir, w.activeIndex, err)
		}
	}
	infos := slices.Clone(w.segments)
	w.mu.Unlock()

	return readAllSegments(infos, w.log)
}

// Validate runs a full integrity scan over every segment, counting valid and
// corrupt entries. It never fails on frame damage; only I/O errors that
// prevent reading a segment at all are returned.
func (w *WAL) Validate() (ValidationReport, error) {
	w.mu.Lock()
	if !w.closed && w.active != nil {
		if err := w.active.Flush(); err != nil {
			w.mu.Unlock()
			return ValidationReport{}, wrapLogErr("flush_segment", ErrSegmentFlush, w.dir, w.activeIndex, err)
		}
	}
	infos := slices.Clone(w.segments)
	w.mu.Unlock()

	return validateSegments(infos, w.log)
}

// NextSeq returns the sequence number the next successful append will receive.
func (w *WAL) NextSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq
}

// Segments returns a snapshot of the known segment set, ascending by index.
func (w *WAL) Segments() []SegmentInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.segments)
}

// SegmentIndexes returns the known segment indexes in ascending order.
func (w *WAL) SegmentIndexes() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uint64, len(w.segments))
	for i, si := range w.segments {
		out[i] = si.Index
	}
	return out
}

// OpenSegment opens a read handle for the given segment index.
func (w *WAL) OpenSegment(index uint64) (SegmentReader, error) {
	w.mu.Lock()
	var path string
	for _, si := range w.segments {
		if si.Index == index {
			path = si.Path
			break
		}
	}
	w.mu.Unlock()

	if path == "" {
		return nil, wrapLogErr("open_segment", ErrSegmentNotFound, w.dir, index, nil)
	}
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, wrapLogErr("open_segment", ErrSegmentOpen, w.dir, index, err)
	}
	return NewFileSegmentReader(index, file), nil
}

// Close seals the active segment and releases the directory lock. Appends
// after Close fail with ErrWALClosed.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.active.Seal(); err != nil {
		return wrapLogErr("close_segment", ErrSegmentClose, w.dir, w.activeIndex, err)
	}
	if err := w.active.Close(); err != nil {
		return wrapLogErr("close_segment", ErrSegmentClose, w.dir, w.activeIndex, err)
	}
	if err := w.lock.release(); err != nil {
		return wrapLogErr("unlock_wal_dir", ErrCloseFailed, w.dir, w.activeIndex, err)
	}

	w.log.Info("wal closed", "dir", w.dir, "next_seq", w.nextSeq)
	return nil
}

var _ SegmentProvider = (*WAL)(nil)
