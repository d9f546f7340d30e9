package testutil

import (
	"io"
	"os"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

// FrameSpans locates every frame in a segment file and returns their
// header offsets and total sizes, for targeted corruption.
func FrameSpans(t *testing.T, path string) []entry.Framed {
	t.Helper()

	f, err := os.Open(path) // nolint:gosec
	tst.RequireNoError(t, err)
	defer func() { _ = f.Close() }()

	var spans []entry.Framed
	fr := entry.NewFrameReader(f)
	for {
		framed, err := fr.Next()
		if err == io.EOF {
			break
		}
		tst.RequireNoError(t, err)
		spans = append(spans, framed)
	}
	return spans
}

// FlipByte XORs the byte at offset with 0xFF
func FlipByte(t *testing.T, path string, offset int64) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0o600) // nolint:gosec
	tst.RequireNoError(t, err)
	defer func() { _ = f.Close() }()

	b := make([]byte, 1)
	_, err = f.ReadAt(b, offset)
	tst.RequireNoError(t, err)

	b[0] ^= 0xFF
	_, err = f.WriteAt(b, offset)
	tst.RequireNoError(t, err)
}

// CorruptFramePayload flips one byte inside the payload of the n-th
// frame (zero-based) of a segment file.
func CorruptFramePayload(t *testing.T, path string, n int) {
	t.Helper()

	spans := FrameSpans(t, path)
	if n >= len(spans) {
		t.Fatalf("segment has %d frames, cannot corrupt frame %d", len(spans), n)
	}
	FlipByte(t, path, spans[n].Offset+entry.FrameHeaderSize)
}

// TruncateTail cuts n bytes off the end of a file
func TruncateTail(t *testing.T, path string, n int64) {
	t.Helper()

	info, err := os.Stat(path)
	tst.RequireNoError(t, err)
	if info.Size() < n {
		t.Fatalf("file is %d bytes, cannot truncate %d", info.Size(), n)
	}
	tst.RequireNoError(t, os.Truncate(path, info.Size()-n))
}
