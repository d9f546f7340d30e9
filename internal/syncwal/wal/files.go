package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	// WALDirName is the subdirectory of the data directory that holds segments.
	WALDirName = "wal"

	segmentIndexDigits = 12
	segmentSuffix      = ".log"
	compactTempSuffix  = ".compact"
)

// segmentFileName renders a segment index as a zero-padded 12-digit filename,
// so lexicographic order equals numeric order.
func segmentFileName(index uint64) string {
	return fmt.Sprintf("%0*d%s", segmentIndexDigits, index, segmentSuffix)
}

// parseSegmentFileName reports the index encoded in a segment filename, or
// false when the name does not match ^[0-9]{12}\.log$.
func parseSegmentFileName(name string) (uint64, bool) {
	if len(name) != segmentIndexDigits+len(segmentSuffix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	digits := name[:segmentIndexDigits]
	index, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || index == 0 {
		return 0, false
	}
	return index, true
}

// listSegments enumerates segment files in dir, sorted ascending by index.
// Only Index and Path are populated; callers scan to learn seq ranges.
func listSegments(dir string) ([]SegmentInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var infos []SegmentInfo
	for _, fi := range files {
		if fi.IsDir() {
			continue
		}
		index, ok := parseSegmentFileName(fi.Name())
		if !ok {
			continue
		}
		infos = append(infos, SegmentInfo{
			Index: index,
			Path:  filepath.Join(dir, fi.Name()),
		})
	}

	slices.SortFunc(infos, func(a, b SegmentInfo) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})
	return infos, nil
}

// removeStaleTempFiles unlinks leftover compaction temp files. A crash between
// temp creation and rename leaves one behind; the original segment is intact.
func removeStaleTempFiles(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, fi := range files {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), compactTempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, fi.Name())); err != nil {
			return err
		}
	}
	return nil
}

// trimSegmentTail cuts a segment file back to size and fsyncs it, discarding
// a partially written frame so the next append lands at a frame boundary.
func trimSegmentTail(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(size); err != nil {
		return err
	}
	return f.Sync()
}

// syncDir fsyncs a directory so renames and unlinks within it are durable.
func syncDir(dir string) error {
	f, err := os.Open(dir) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Sync()
}
