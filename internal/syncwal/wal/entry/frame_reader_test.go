package entry_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

func mustFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	frame, err := entry.EncodeFrame(payload)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return frame
}

func TestFrameReaderStream(t *testing.T) {
	payloads := [][]byte{
		[]byte("first"),
		[]byte("second-frame"),
		[]byte("third"),
	}

	var stream []byte
	var wantOffsets []int64
	for _, p := range payloads {
		wantOffsets = append(wantOffsets, int64(len(stream)))
		stream = append(stream, mustFrame(t, p)...)
	}

	fr := entry.NewFrameReader(bytes.NewReader(stream))
	for i, p := range payloads {
		f, err := fr.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if !bytes.Equal(f.Payload, p) {
			t.Errorf("frame %d: payload mismatch", i)
		}
		if f.Offset != wantOffsets[i] {
			t.Errorf("frame %d: expected offset %d, got %d", i, wantOffsets[i], f.Offset)
		}
	}

	if _, err := fr.Next(); err != io.EOF {
		t.Errorf("expected clean EOF, got %v", err)
	}
	if fr.Offset() != int64(len(stream)) {
		t.Errorf("expected final offset %d, got %d", len(stream), fr.Offset())
	}
}

func TestFrameReaderEmptyStream(t *testing.T) {
	fr := entry.NewFrameReader(bytes.NewReader(nil))
	if _, err := fr.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestFrameReaderTruncatedTail(t *testing.T) {
	full := mustFrame(t, []byte("complete"))
	partial := mustFrame(t, []byte("cut-off"))

	testCases := []struct {
		name string
		keep int // bytes of the second frame to keep
	}{
		{"partial_header", 2},
		{"header_only", 4},
		{"partial_payload", 7},
		{"missing_crc", len(partial) - 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stream := append(append([]byte(nil), full...), partial[:tc.keep]...)
			fr := entry.NewFrameReader(bytes.NewReader(stream))

			if _, err := fr.Next(); err != nil {
				t.Fatalf("first frame should decode: %v", err)
			}

			_, err := fr.Next()
			pe, ok := entry.AsParseError(err)
			if !ok {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Kind != entry.KindTruncated {
				t.Errorf("expected KindTruncated, got %v", pe.Kind)
			}
			if pe.SafeTruncateOffset != int64(len(full)) {
				t.Errorf("expected safe offset %d, got %d", len(full), pe.SafeTruncateOffset)
			}
		})
	}
}

func TestFrameReaderZeroLengthLeavesStreamAtPrefix(t *testing.T) {
	fr := entry.NewFrameReader(bytes.NewReader([]byte{0, 0, 0, 0, 1, 2, 3}))

	_, err := fr.Next()
	if !errors.Is(err, entry.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if fr.Offset() != 0 {
		t.Errorf("expected reader to stay at offset 0, got %d", fr.Offset())
	}
}

func TestFrameReaderResyncRecoversFrame(t *testing.T) {
	// Payload sized so that a one-byte-misaligned header reads as an
	// implausible length (the third length byte lands in the top position),
	// making the stray prefix byte detectable instead of swallowing the frame.
	payload := bytes.Repeat([]byte{0x5A}, 70000)
	valid := mustFrame(t, payload)
	stream := append([]byte{0xAA}, valid...)

	fr := entry.NewFrameReader(bytes.NewReader(stream))

	_, err := fr.Next()
	if !errors.Is(err, entry.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge at the stray byte, got %v", err)
	}
	if fr.Offset() != 0 {
		t.Fatalf("expected reader to stay at offset 0, got %d", fr.Offset())
	}

	if err := fr.Resync(); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	f, err := fr.Next()
	if err != nil {
		t.Fatalf("expected frame after resync: %v", err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Error("recovered payload does not match")
	}
	if f.Offset != 1 {
		t.Errorf("expected frame offset 1, got %d", f.Offset)
	}
}

func TestFrameReaderOversizeLength(t *testing.T) {
	var stream [8]byte
	binary.LittleEndian.PutUint32(stream[:4], entry.MaxPayloadSize+1)

	fr := entry.NewFrameReader(bytes.NewReader(stream[:]))
	_, err := fr.Next()
	if !errors.Is(err, entry.ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
	if fr.Offset() != 0 {
		t.Errorf("expected reader to stay at offset 0, got %d", fr.Offset())
	}
}

func TestFrameReaderChecksumMismatchConsumesFrame(t *testing.T) {
	bad := mustFrame(t, []byte("damaged"))
	bad[5] ^= 0xFF
	good := mustFrame(t, []byte("intact"))
	stream := append(bad, good...)

	fr := entry.NewFrameReader(bytes.NewReader(stream))

	_, err := fr.Next()
	pe, ok := entry.AsParseError(err)
	if !ok || pe.Kind != entry.KindChecksumMismatch {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if pe.Consumed != int64(len(bad)) {
		t.Errorf("expected full frame consumed (%d), got %d", len(bad), pe.Consumed)
	}

	// The next frame decodes without any resync
	f, err := fr.Next()
	if err != nil {
		t.Fatalf("expected next frame to decode: %v", err)
	}
	if !bytes.Equal(f.Payload, []byte("intact")) {
		t.Errorf("expected intact payload, got %q", f.Payload)
	}
}
