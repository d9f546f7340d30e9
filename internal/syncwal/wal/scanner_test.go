package wal_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

func buildStream(t *testing.T, entries ...entry.Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range entries {
		frame, err := entry.EncodeEntry(e)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestScannerReadsOrderedEntries(t *testing.T) {
	stream := buildStream(t,
		entry.Entry{Seq: 1, Actor: "a", Op: entry.PutOp("n1", []byte(`{"v":1}`))},
		entry.Entry{Seq: 2, Actor: "a", Op: entry.DeleteOp("n1")},
		entry.Entry{Seq: 3, Actor: "b", Op: entry.CheckpointOp(2)},
	)

	sc := wal.NewScanner(bytes.NewReader(stream))
	var seqs []uint64
	for {
		e, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		seqs = append(seqs, e.Seq)
	}

	if len(seqs) != 3 || seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 3 {
		t.Errorf("expected seqs [1 2 3], got %v", seqs)
	}
	if sc.Corrupted() != 0 {
		t.Errorf("expected no corruption, got %d", sc.Corrupted())
	}
	if sc.Truncated() {
		t.Error("expected no truncation")
	}
	if sc.Offset() != int64(len(stream)) {
		t.Errorf("expected final offset %d, got %d", len(stream), sc.Offset())
	}
}

func TestScannerSkipsChecksumMismatch(t *testing.T) {
	first, err := entry.EncodeEntry(entry.Entry{Seq: 1, Actor: "a", Op: entry.PutOp("n1", []byte(`{}`))})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	second, err := entry.EncodeEntry(entry.Entry{Seq: 2, Actor: "a", Op: entry.PutOp("n2", []byte(`{}`))})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Flip one payload byte in the first frame; its CRC no longer matches.
	bad := append([]byte(nil), first...)
	bad[entry.FrameHeaderSize] ^= 0xFF
	stream := append(bad, second...)

	sc := wal.NewScanner(bytes.NewReader(stream))
	e, err := sc.Next()
	if err != nil {
		t.Fatalf("expected the scan to skip to frame two, got %v", err)
	}
	if e.Seq != 2 {
		t.Errorf("expected seq 2, got %d", e.Seq)
	}
	if _, err := sc.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if sc.Corrupted() != 1 {
		t.Errorf("expected 1 corrupt frame, got %d", sc.Corrupted())
	}
}

func TestScannerHaltsOnTruncatedTail(t *testing.T) {
	stream := buildStream(t,
		entry.Entry{Seq: 1, Actor: "a", Op: entry.PutOp("n1", []byte(`{}`))},
		entry.Entry{Seq: 2, Actor: "a", Op: entry.PutOp("n2", []byte(`{}`))},
	)
	firstLen := len(buildStream(t,
		entry.Entry{Seq: 1, Actor: "a", Op: entry.PutOp("n1", []byte(`{}`))},
	))
	// Cut the second frame in half.
	cut := firstLen + (len(stream)-firstLen)/2

	sc := wal.NewScanner(bytes.NewReader(stream[:cut]))
	e, err := sc.Next()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if e.Seq != 1 {
		t.Errorf("expected seq 1, got %d", e.Seq)
	}
	if _, err := sc.Next(); err != io.EOF {
		t.Fatalf("expected EOF on truncated tail, got %v", err)
	}
	if !sc.Truncated() {
		t.Fatal("expected truncation to be reported")
	}
	if sc.TruncatedAt() != int64(firstLen) {
		t.Errorf("expected safe truncate offset %d, got %d", firstLen, sc.TruncatedAt())
	}
	if sc.Corrupted() != 0 {
		t.Errorf("truncation is not corruption, got %d corrupt frames", sc.Corrupted())
	}
}

func TestScannerResyncsPastImplausibleLength(t *testing.T) {
	// A large payload gives a length prefix whose misaligned read, with a
	// stray byte prepended, exceeds the payload limit. The scanner rejects
	// the bogus header without consuming it and hunts for the real frame.
	big := bytes.Repeat([]byte("x"), 70000)
	frame, err := entry.EncodeEntry(entry.Entry{Seq: 7, Actor: "a", Op: entry.PutOp("n1", big)})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	stream := append([]byte{0xAA}, frame...)

	sc := wal.NewScanner(bytes.NewReader(stream))
	e, err := sc.Next()
	if err != nil {
		t.Fatalf("expected resync to recover the frame, got %v", err)
	}
	if e.Seq != 7 {
		t.Errorf("expected seq 7, got %d", e.Seq)
	}
	if sc.Corrupted() != 1 {
		t.Errorf("expected 1 corrupt frame from the stray byte, got %d", sc.Corrupted())
	}
}

func TestScannerCountsResyncRunOnce(t *testing.T) {
	// Several junk bytes before a frame force one resync per byte, but a
	// contiguous damaged region is a single corruption, not one per byte.
	big := bytes.Repeat([]byte("x"), 70000)
	first, err := entry.EncodeEntry(entry.Entry{Seq: 7, Actor: "a", Op: entry.PutOp("n1", big)})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	second, err := entry.EncodeEntry(entry.Entry{Seq: 8, Actor: "a", Op: entry.PutOp("n2", big)})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	junk := []byte{0xAA, 0xAA, 0xAA}
	var stream []byte
	stream = append(stream, junk...)
	stream = append(stream, first...)
	stream = append(stream, junk...)
	stream = append(stream, second...)

	sc := wal.NewScanner(bytes.NewReader(stream))
	var seqs []uint64
	for {
		e, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		seqs = append(seqs, e.Seq)
	}

	if len(seqs) != 2 || seqs[0] != 7 || seqs[1] != 8 {
		t.Errorf("expected seqs [7 8], got %v", seqs)
	}
	if sc.Corrupted() != 2 {
		t.Errorf("expected 2 corrupt regions, got %d", sc.Corrupted())
	}
}

func TestScannerEmptyStream(t *testing.T) {
	sc := wal.NewScanner(bytes.NewReader(nil))
	if _, err := sc.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}
