package wal

import (
	"errors"
	"fmt"
)

var (
	// Programmer / caller errors
	ErrInvalidFrame   = errors.New("wal: invalid frame")
	ErrCompactPastEnd = errors.New("wal: compact past highest assigned seq")

	// I/O layer failures
	ErrAppendFailed = errors.New("wal: append failed")
	ErrShortWrite   = errors.New("wal: short write")
	ErrFlushFailed  = errors.New("wal: flush failed")
	ErrSyncFailed   = errors.New("wal: fsync failed")
	ErrCloseFailed  = errors.New("wal: close failed")

	// Construction / lifecycle errors
	ErrNilSegmentFile = errors.New("wal: nil segment file")
	ErrClosedAppender = errors.New("wal: segment appender closed")
	ErrSealedSegment  = errors.New("wal: segment sealed")

	ErrWALClosed       = errors.New("wal: log closed")
	ErrNoSegments      = errors.New("wal: no segments")
	ErrSegmentNotFound = errors.New("wal: segment not found")
	ErrSegmentList     = errors.New("wal: list segments failed")
	ErrSegmentOpen     = errors.New("wal: open segment failed")
	ErrSegmentCreate   = errors.New("wal: create segment failed")
	ErrSegmentRotate   = errors.New("wal: rotate segment failed")
	ErrSegmentClose    = errors.New("wal: close segment failed")
	ErrSegmentFlush    = errors.New("wal: flush segment failed")
	ErrSegmentSync     = errors.New("wal: fsync segment failed")
	ErrSegmentRewrite  = errors.New("wal: rewrite segment failed")
	ErrSegmentUnlink   = errors.New("wal: unlink segment failed")
	ErrInvalidWALDir   = errors.New("wal: invalid wal dir")
	ErrDirLocked       = errors.New("wal: directory locked by another writer")
)

// LogError wraps manager-level failures with context.
// It preserves a stable sentinel in Err so callers can errors.Is against it.
type LogError struct {
	Err error

	Dir     string
	Segment uint64

	// Op is a short label for where the error occurred:
	// "open", "append", "flush", "fsync", "rotate", "compact", "close", etc.
	Op string

	Cause error
}

func (e *LogError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *LogError) Unwrap() error {
	return e.Err
}

// CauseErr returns the underlying cause (not used by errors.Is).
func (e *LogError) CauseErr() error { return e.Cause }

// SegmentAppendError carries the write position of a failed append.
type SegmentAppendError struct {
	Err    error
	Cause  error // underlying error, if any
	Offset int64 // offset where the write was attempted
	Have   int   // bytes written (if short write)
	Want   int   // bytes expected
}

func (e *SegmentAppendError) Error() string { return e.Err.Error() }
func (e *SegmentAppendError) Unwrap() error { return e.Err }
