package entry

import (
	"encoding/binary"
	"io"
)

const (
	FrameHeaderSize = 4                // length prefix (uint32le)
	FrameCRCSize    = 4                // CRC32 (uint32le)
	MaxPayloadSize  = 16 * 1024 * 1024 // 16 MB
)

// EncodedFrameSize returns the on-disk footprint of a frame for the given
// payload length: header + payload + checksum.
func EncodedFrameSize(payloadLen int) int64 {
	return int64(FrameHeaderSize + payloadLen + FrameCRCSize)
}

// ValidatePayloadLength rejects length prefixes that cannot belong to a real frame.
func ValidatePayloadLength(length uint32) error {
	if length < 1 {
		return &ParseError{
			Kind:        KindInvalidLength,
			DeclaredLen: length,
			Err:         ErrInvalidLength,
		}
	}

	if length > MaxPayloadSize {
		return &ParseError{
			Kind:        KindTooLarge,
			DeclaredLen: length,
			Want:        MaxPayloadSize,
			Have:        int(length),
			Err:         ErrTooLarge,
		}
	}
	return nil
}

// EncodeFrame wraps a payload in the on-disk envelope:
// [len (4, u32le)][payload][crc32 (4, u32le)], CRC over the payload only.
func EncodeFrame(payload []byte) ([]byte, error) {
	payloadLen := uint32(len(payload)) //nolint:gosec
	if err := ValidatePayloadLength(payloadLen); err != nil {
		return nil, err
	}

	data := make([]byte, FrameHeaderSize+len(payload)+FrameCRCSize)
	binary.LittleEndian.PutUint32(data[:FrameHeaderSize], payloadLen)
	copy(data[FrameHeaderSize:], payload)
	binary.LittleEndian.PutUint32(data[FrameHeaderSize+len(payload):], Checksum(payload))

	return data, nil
}

// DecodeFrame parses one complete frame from data and verifies its checksum.
// The slice must contain exactly one frame.
func DecodeFrame(data []byte) (Framed, error) {
	if len(data) < FrameHeaderSize+FrameCRCSize {
		return Framed{}, &ParseError{
			Kind: KindTruncated,
			Want: FrameHeaderSize + FrameCRCSize,
			Have: len(data),
			Err:  io.ErrUnexpectedEOF,
		}
	}

	payloadLen := binary.LittleEndian.Uint32(data[:FrameHeaderSize])
	if err := ValidatePayloadLength(payloadLen); err != nil {
		return Framed{}, err
	}

	wantTotal := FrameHeaderSize + int(payloadLen) + FrameCRCSize
	if len(data) < wantTotal {
		return Framed{}, &ParseError{
			Kind:        KindTruncated,
			DeclaredLen: payloadLen,
			Want:        wantTotal,
			Have:        len(data),
			Err:         io.ErrUnexpectedEOF,
		}
	}
	if len(data) != wantTotal {
		return Framed{}, &ParseError{
			Kind:        KindCorrupt,
			DeclaredLen: payloadLen,
			Want:        wantTotal,
			Have:        len(data),
			Err:         ErrCorrupt,
		}
	}

	f := Framed{
		Payload: data[FrameHeaderSize : FrameHeaderSize+payloadLen],
		CRC:     binary.LittleEndian.Uint32(data[FrameHeaderSize+payloadLen : wantTotal]),
		Size:    EncodedFrameSize(int(payloadLen)),
	}

	if !VerifyChecksum(f.Payload, f.CRC) {
		return Framed{}, &ParseError{
			Kind:        KindChecksumMismatch,
			DeclaredLen: payloadLen,
			Consumed:    f.Size,
			Err:         ErrCorrupt,
		}
	}

	return f, nil
}

// EncodeEntry serializes an entry and wraps it in a frame, yielding the exact
// bytes to append to a segment.
func EncodeEntry(e Entry) ([]byte, error) {
	payload, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(payload)
}

// DecodeEntry parses one complete frame and deserializes the entry it carries.
func DecodeEntry(data []byte) (Entry, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return Entry{}, err
	}
	return Decode(f.Payload)
}
