package wal

import (
	"bufio"
	"io"
	"os"
)

const segmentWriterBufferSize = 64 << 10 // 64KiB

// SegmentAppender appends framed entries to a single segment file through a
// buffered writer, tracking the segment's byte length as it grows.
type SegmentAppender struct {
	file       *os.File
	currOffset int64
	writer     *bufio.Writer
	sealed     bool
	closed     bool
}

// NewSegmentAppender creates a SegmentAppender positioned at the end of file.
func NewSegmentAppender(file *os.File) (*SegmentAppender, error) {
	if file == nil {
		return nil, ErrNilSegmentFile
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}

	return &SegmentAppender{
		file:       file,
		currOffset: size,
		writer:     bufio.NewWriterSize(file, segmentWriterBufferSize),
	}, nil
}

// Append writes one framed entry and returns the offset of the start of its
// header within the segment. The bytes may still be buffered; call Flush or
// FSync per the durability policy.
func (sa *SegmentAppender) Append(frame []byte) (int64, error) {
	if sa.closed {
		return 0, &SegmentAppendError{Err: ErrClosedAppender, Offset: sa.currOffset}
	}
	if sa.sealed {
		return 0, &SegmentAppendError{Err: ErrSealedSegment, Offset: sa.currOffset}
	}
	if len(frame) == 0 {
		return 0, &SegmentAppendError{Err: ErrInvalidFrame, Offset: sa.currOffset}
	}

	offset := sa.currOffset
	n, err := sa.writer.Write(frame)
	if err != nil {
		return 0, &SegmentAppendError{
			Err:    ErrAppendFailed,
			Cause:  err,
			Offset: offset,
			Have:   n,
			Want:   len(frame),
		}
	}
	if n != len(frame) {
		return 0, &SegmentAppendError{
			Err:    ErrShortWrite,
			Offset: offset,
			Have:   n,
			Want:   len(frame),
		}
	}

	sa.currOffset += int64(n)
	return offset, nil
}

// Flush pushes buffered bytes to the OS.
func (sa *SegmentAppender) Flush() error {
	if sa.closed {
		return ErrClosedAppender
	}
	if err := sa.writer.Flush(); err != nil {
		return &SegmentAppendError{Err: ErrFlushFailed, Cause: err, Offset: sa.currOffset}
	}
	return nil
}

// FSync flushes then fsyncs, guaranteeing durability to the device's reported
// boundary.
func (sa *SegmentAppender) FSync() error {
	if err := sa.Flush(); err != nil {
		return err
	}
	if err := sa.file.Sync(); err != nil {
		return &SegmentAppendError{Err: ErrSyncFailed, Cause: err, Offset: sa.currOffset}
	}
	return nil
}

// Seal flushes and fsyncs; the segment is read-only from the WAL's perspective
// afterwards and further appends fail.
func (sa *SegmentAppender) Seal() error {
	if sa.sealed {
		return nil
	}
	if err := sa.FSync(); err != nil {
		return err
	}
	sa.sealed = true
	return nil
}

// Close flushes buffered bytes and closes the file descriptor.
func (sa *SegmentAppender) Close() error {
	if sa.closed {
		return nil
	}
	if err := sa.writer.Flush(); err != nil {
		return &SegmentAppendError{Err: ErrFlushFailed, Cause: err, Offset: sa.currOffset}
	}
	sa.closed = true
	if err := sa.file.Close(); err != nil {
		return &SegmentAppendError{Err: ErrCloseFailed, Cause: err, Offset: sa.currOffset}
	}
	return nil
}

// CurrentOffset returns the byte length of the segment including buffered
// writes.
func (sa *SegmentAppender) CurrentOffset() int64 {
	return sa.currOffset
}

var _ LogAppender = (*SegmentAppender)(nil)
