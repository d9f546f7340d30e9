package wal

import (
	"io"

	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

// Scanner produces the decoded entries of one segment in order, containing
// frame-level damage so a single bad frame never fails the scan.
//
// Corrupt frames (checksum mismatch, implausible length, undecodable payload)
// are counted and skipped; on an implausible length prefix the scanner resyncs
// one byte at a time hunting for the next frame boundary. Truncation halts the
// scan: Next reports io.EOF and Truncated returns true.
type Scanner struct {
	fr *entry.FrameReader

	corrupted   int
	resyncing   bool
	truncated   bool
	truncatedAt int64
}

// NewScanner creates a Scanner over r, which must be positioned at a frame
// boundary (normally offset 0 of a segment).
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{fr: entry.NewFrameReader(r)}
}

// Next returns the next decodable entry, or io.EOF when the segment is
// exhausted (cleanly or by a truncated tail). I/O failures are returned as-is.
func (s *Scanner) Next() (entry.Entry, error) {
	for {
		f, err := s.fr.Next()
		if err != nil {
			if err == io.EOF {
				return entry.Entry{}, io.EOF
			}

			pe, ok := entry.AsParseError(err)
			if !ok {
				return entry.Entry{}, err
			}

			switch pe.Kind {
			case entry.KindTruncated:
				s.truncated = true
				s.truncatedAt = pe.SafeTruncateOffset
				return entry.Entry{}, io.EOF
			case entry.KindInvalidLength, entry.KindTooLarge:
				// The stream is still at the suspect length prefix. A run of
				// byte-by-byte resyncs over one damaged region counts as a
				// single corruption, not one per byte hunted past.
				if !s.resyncing {
					s.corrupted++
					s.resyncing = true
				}
				if err := s.fr.Resync(); err != nil {
					return entry.Entry{}, io.EOF
				}
				continue
			case entry.KindChecksumMismatch:
				// Whole frame consumed; continue at the next boundary.
				s.resyncing = false
				s.corrupted++
				continue
			default:
				return entry.Entry{}, err
			}
		}

		s.resyncing = false
		e, err := entry.Decode(f.Payload)
		if err != nil {
			s.corrupted++
			continue
		}
		return e, nil
	}
}

// Corrupted returns the count of corrupt regions skipped so far. A contiguous
// stretch of resync steps counts once.
func (s *Scanner) Corrupted() int { return s.corrupted }

// Truncated reports whether the scan halted on a partially written tail.
func (s *Scanner) Truncated() bool { return s.truncated }

// TruncatedAt returns the byte offset where the segment may safely be trimmed.
// Only meaningful when Truncated is true.
func (s *Scanner) TruncatedAt() int64 { return s.truncatedAt }

// Offset returns the byte offset the scanner has consumed through.
func (s *Scanner) Offset() int64 { return s.fr.Offset() }
