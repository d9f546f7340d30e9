package entry_test

import (
	"hash/crc32"
	"testing"

	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

func TestChecksumIsIEEE(t *testing.T) {
	payload := []byte("stable-wire-format")
	if got, want := entry.Checksum(payload), crc32.ChecksumIEEE(payload); got != want {
		t.Errorf("expected IEEE polynomial checksum %d, got %d", want, got)
	}
}

func TestVerifyChecksum(t *testing.T) {
	payload := []byte("some-payload")
	crc := entry.Checksum(payload)

	if !entry.VerifyChecksum(payload, crc) {
		t.Error("expected checksum to verify")
	}
	if entry.VerifyChecksum(payload, crc+1) {
		t.Error("expected mismatched checksum to fail")
	}

	payload[0] ^= 0xFF
	if entry.VerifyChecksum(payload, crc) {
		t.Error("expected altered payload to fail verification")
	}
}

func TestChecksumEmptyPayload(t *testing.T) {
	if entry.Checksum(nil) != entry.Checksum([]byte{}) {
		t.Error("expected nil and empty payloads to hash identically")
	}
}
