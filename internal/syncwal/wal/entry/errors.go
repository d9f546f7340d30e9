package entry

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncated     = errors.New("entry: truncated")
	ErrCorrupt       = errors.New("entry: corrupt")
	ErrTooLarge      = errors.New("entry: too large")
	ErrInvalidLength = errors.New("entry: invalid length (must be > 0)")
)

type ParseErrorKind uint8

const (
	KindTruncated ParseErrorKind = iota
	KindInvalidLength
	KindTooLarge
	KindChecksumMismatch
	KindCorrupt
	KindIO
)

func (k ParseErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindInvalidLength:
		return "invalid_length"
	case KindTooLarge:
		return "too_large"
	case KindChecksumMismatch:
		return "checksum_mismatch"
	case KindCorrupt:
		return "corrupt"
	case KindIO:
		return "io_error"
	default:
		return "unknown"
	}
}

type ParseError struct {
	Kind ParseErrorKind
	// Offset is the starting byte offset of the frame (at the length prefix).
	Offset int64
	// SafeTruncateOffset is the byte offset where the segment may be trimmed to
	// remove the invalid tail. For frame-level failures this equals Offset.
	SafeTruncateOffset int64
	DeclaredLen        uint32
	// Consumed is the number of bytes the reader advanced past for this frame.
	// Zero when the stream is still positioned at the length prefix.
	Consumed int64
	Want     int
	Have     int
	Err      error
}

func (e *ParseError) Error() string {
	cause := "<nil>"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return fmt.Sprintf("entry parse error kind=%s offset=%d safe=%d len=%d want=%d have=%d: %s",
		e.Kind.String(), e.Offset, e.SafeTruncateOffset, e.DeclaredLen, e.Want, e.Have, cause)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrTruncated:
		return e.Kind == KindTruncated
	case ErrInvalidLength:
		return e.Kind == KindInvalidLength
	case ErrTooLarge:
		return e.Kind == KindTooLarge
	case ErrCorrupt:
		return e.Kind == KindChecksumMismatch || e.Kind == KindCorrupt
	}
	return false
}

func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func IsCleanEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

func IsTruncation(err error) bool {
	return errors.Is(err, ErrTruncated)
}

// IsCorruption reports whether err should be counted as frame corruption:
// a checksum mismatch, an implausible length prefix, or a payload that fails
// to deserialize. Truncation is deliberately excluded.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupt) || errors.Is(err, ErrInvalidLength) || errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrCodecCorrupt) || errors.Is(err, ErrCodecTruncated) || errors.Is(err, ErrCodecInvalid)
}

var (
	ErrCodecTruncated = errors.New("entry: codec truncated payload")
	ErrCodecCorrupt   = errors.New("entry: codec corrupt payload")
	ErrCodecInvalid   = errors.New("entry: codec invalid payload")
)

type CodecErrorKind uint8

const (
	CodecTruncated CodecErrorKind = iota
	CodecCorrupt
	CodecInvalid
)

func (k CodecErrorKind) String() string {
	switch k {
	case CodecTruncated:
		return "truncated"
	case CodecCorrupt:
		return "corrupt"
	case CodecInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type CodecError struct {
	Kind  CodecErrorKind
	Field string // "version", "kind", "actor_len", "node_id", etc.
	At    int    // byte offset within the payload where the failure occurred
	Want  int
	Have  int
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("entry: codec %s field=%s at=%d want=%d have=%d: %v",
		e.Kind.String(), e.Field, e.At, e.Want, e.Have, e.Err,
	)
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Is(target error) bool {
	switch target {
	case ErrCodecTruncated:
		return e.Kind == CodecTruncated
	case ErrCodecCorrupt:
		return e.Kind == CodecCorrupt
	case ErrCodecInvalid:
		return e.Kind == CodecInvalid
	default:
		return false
	}
}
