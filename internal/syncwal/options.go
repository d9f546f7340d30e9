package syncwal

import "github.com/syncwal/syncwal/internal/syncwal/wal"

// OpenOptions configures opening a syncwal store or WAL.
type OpenOptions struct {
	// Durability is applied after each append: none, flush, or sync.
	Durability wal.Durability
	// SegmentMaxBytes is the rotation threshold; 0 selects the WAL default.
	SegmentMaxBytes int64

	// File-based logging configuration
	LogDir     string // directory for rotating log files
	LogMaxSize int    // max size per log file in MB
	LogMaxBak  int    // max number of backup log files
}

// WALOptions converts the open options to the WAL layer's option struct.
func (o OpenOptions) WALOptions() wal.Options {
	return wal.Options{
		SegmentMaxBytes: o.SegmentMaxBytes,
		Durability:      o.Durability,
	}
}
