package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSegmentFileName(t *testing.T) {
	testCases := []struct {
		index uint64
		want  string
	}{
		{1, "000000000001.log"},
		{42, "000000000042.log"},
		{999999999999, "999999999999.log"},
	}
	for _, tc := range testCases {
		if got := segmentFileName(tc.index); got != tc.want {
			t.Errorf("segmentFileName(%d) = %q, want %q", tc.index, got, tc.want)
		}
	}
}

func TestParseSegmentFileName(t *testing.T) {
	testCases := []struct {
		name  string
		index uint64
		ok    bool
	}{
		{"000000000001.log", 1, true},
		{"000000000042.log", 42, true},
		{"000000000000.log", 0, false}, // index zero is never assigned
		{"00000000001.log", 0, false},  // 11 digits
		{"0000000000001.log", 0, false},
		{"000000000001.txt", 0, false},
		{"00000000000a.log", 0, false},
		{"000000000001.log.compact", 0, false},
		{"LOCK", 0, false},
	}
	for _, tc := range testCases {
		index, ok := parseSegmentFileName(tc.name)
		if ok != tc.ok || index != tc.index {
			t.Errorf("parseSegmentFileName(%q) = (%d, %v), want (%d, %v)",
				tc.name, index, ok, tc.index, tc.ok)
		}
	}
}

func TestListSegmentsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"000000000003.log",
		"000000000001.log",
		"000000000002.log",
		"000000000002.log.compact",
		"LOCK",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	infos, err := listSegments(dir)
	if err != nil {
		t.Fatalf("listSegments failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(infos))
	}
	for i, want := range []uint64{1, 2, 3} {
		if infos[i].Index != want {
			t.Errorf("position %d: expected index %d, got %d", i, want, infos[i].Index)
		}
	}
}

func TestRemoveStaleTempFiles(t *testing.T) {
	dir := t.TempDir()

	seg := filepath.Join(dir, "000000000001.log")
	tmp := seg + compactTempSuffix
	for _, path := range []string{seg, tmp} {
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if err := removeStaleTempFiles(dir); err != nil {
		t.Fatalf("removeStaleTempFiles failed: %v", err)
	}

	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("expected temp file to be removed")
	}
	if _, err := os.Stat(seg); err != nil {
		t.Error("expected segment file to survive")
	}
}
