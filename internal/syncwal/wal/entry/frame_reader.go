package entry

import (
	"bufio"
	"encoding/binary"
	"io"
)

const frameReaderBufferSize = 64 << 10 // 64KiB

// FrameReader reads frames sequentially from an io.Reader, tracking the byte
// offset of every frame so callers can report positions and trim tails.
type FrameReader struct {
	br     *bufio.Reader
	offset int64
}

// NewFrameReader creates a FrameReader positioned at offset 0 of r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		br:     bufio.NewReaderSize(r, frameReaderBufferSize),
		offset: 0,
	}
}

// Next reads the next frame and verifies its checksum.
// It returns io.EOF on a clean end of stream. A ParseError with KindTruncated
// means the stream ended mid-frame; KindInvalidLength and KindTooLarge leave the
// stream positioned at the suspect length prefix so Resync can hunt forward;
// KindChecksumMismatch is returned after the whole frame has been consumed, so
// the caller may simply continue at the next frame boundary.
func (fr *FrameReader) Next() (Framed, error) {
	frameStart := fr.offset

	hdr, err := fr.br.Peek(FrameHeaderSize)
	if err != nil {
		if err == io.EOF && len(hdr) == 0 {
			return Framed{}, io.EOF
		}
		// Partial length prefix at end of stream. Consume it so a subsequent
		// Next reports a clean EOF.
		n, _ := fr.br.Discard(len(hdr))
		fr.offset += int64(n)
		return Framed{}, &ParseError{
			Kind:               KindTruncated,
			Offset:             frameStart,
			SafeTruncateOffset: frameStart,
			Consumed:           int64(n),
			Want:               FrameHeaderSize,
			Have:               len(hdr),
			Err:                io.ErrUnexpectedEOF,
		}
	}

	payloadLen := binary.LittleEndian.Uint32(hdr)
	if err := ValidatePayloadLength(payloadLen); err != nil {
		// Stream still positioned at the length prefix; nothing consumed.
		if pe, ok := AsParseError(err); ok {
			pe.Offset = frameStart
			pe.SafeTruncateOffset = frameStart
			return Framed{}, pe
		}
		return Framed{}, err
	}

	if _, err := fr.br.Discard(FrameHeaderSize); err != nil {
		return Framed{}, &ParseError{
			Kind:               KindIO,
			Offset:             frameStart,
			SafeTruncateOffset: frameStart,
			Err:                err,
		}
	}
	fr.offset += FrameHeaderSize

	body := make([]byte, int(payloadLen)+FrameCRCSize)
	n, err := io.ReadFull(fr.br, body)
	fr.offset += int64(n)
	if err != nil {
		return Framed{}, &ParseError{
			Kind:               KindTruncated,
			Offset:             frameStart,
			SafeTruncateOffset: frameStart,
			DeclaredLen:        payloadLen,
			Consumed:           int64(FrameHeaderSize + n),
			Want:               int(payloadLen) + FrameCRCSize,
			Have:               n,
			Err:                io.ErrUnexpectedEOF,
		}
	}

	f := Framed{
		Payload: body[:payloadLen],
		CRC:     binary.LittleEndian.Uint32(body[payloadLen:]),
		Offset:  frameStart,
		Size:    EncodedFrameSize(int(payloadLen)),
	}

	if !VerifyChecksum(f.Payload, f.CRC) {
		return Framed{}, &ParseError{
			Kind:               KindChecksumMismatch,
			Offset:             frameStart,
			SafeTruncateOffset: frameStart,
			DeclaredLen:        payloadLen,
			Consumed:           f.Size,
			Err:                ErrCorrupt,
		}
	}

	return f, nil
}

// Resync advances a single byte. Used after an implausible length prefix to
// search forward for the next decodable frame boundary.
func (fr *FrameReader) Resync() error {
	n, err := fr.br.Discard(1)
	fr.offset += int64(n)
	return err
}

// Offset returns the byte offset the reader has consumed through.
func (fr *FrameReader) Offset() int64 {
	return fr.offset
}
