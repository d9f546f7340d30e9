package wal

import "io"

const (
	// FirstSegmentIndex is the index of the first segment ever created in a
	// WAL directory. Indexes grow by one per rotation and are never reused.
	FirstSegmentIndex uint64 = 1
)

// Durability is the persistence contract applied after each append.
type Durability uint8

const (
	// DurabilityNone flushes to OS buffers only on rotation or close.
	DurabilityNone Durability = iota
	// DurabilityFlush flushes to the OS after every append; survives process
	// crash but not power loss.
	DurabilityFlush
	// DurabilitySync fsyncs after every append; survives power loss to the
	// device's durability boundary.
	DurabilitySync
)

// ParseDurability maps a config string to a Durability level.
func ParseDurability(s string) (Durability, bool) {
	switch s {
	case "none", "":
		return DurabilityNone, true
	case "flush":
		return DurabilityFlush, true
	case "sync":
		return DurabilitySync, true
	default:
		return DurabilityNone, false
	}
}

func (d Durability) String() string {
	switch d {
	case DurabilityNone:
		return "none"
	case DurabilityFlush:
		return "flush"
	case DurabilitySync:
		return "sync"
	default:
		return "unknown"
	}
}

// SegmentInfo describes one segment file on disk.
// FirstSeq and LastSeq are zero while the segment holds no decodable entries.
type SegmentInfo struct {
	Index    uint64 `json:"index"`
	Path     string `json:"path"`
	FirstSeq uint64 `json:"first_seq"`
	LastSeq  uint64 `json:"last_seq"`
	Size     int64  `json:"size"`
}

// LogAppender is the write surface of a single segment file.
type LogAppender interface {
	// Append writes one framed entry and returns the offset of the start of
	// the frame header within the segment. No persistence is guaranteed yet.
	Append(frame []byte) (offset int64, err error)
	Flush() error
	FSync() error
	// Seal flushes and fsyncs; the segment is read-only from then on.
	Seal() error
	Close() error
	// CurrentOffset is the byte length of the segment including buffered writes.
	CurrentOffset() int64
}

// SegmentReader is a positioned read handle over one segment.
type SegmentReader interface {
	Index() uint64
	SeekTo(offset int64) error // seek to absolute byte offset within the segment
	Reader() io.Reader         // stream starting at the current position
	Close() error
}

// SegmentProvider enumerates and opens segments for scanning.
type SegmentProvider interface {
	// SegmentIndexes returns WAL segment indexes in ascending order.
	SegmentIndexes() []uint64
	// OpenSegment opens a reader for the given segment index.
	OpenSegment(index uint64) (SegmentReader, error)
}
