package wal

import (
	"io"
	"os"
)

type fileSegmentReader struct {
	index uint64
	file  *os.File
}

// NewFileSegmentReader wraps an open segment file in a SegmentReader.
func NewFileSegmentReader(index uint64, file *os.File) SegmentReader {
	return &fileSegmentReader{
		index: index,
		file:  file,
	}
}

func (sr *fileSegmentReader) Index() uint64 {
	return sr.index
}

func (sr *fileSegmentReader) SeekTo(offset int64) error {
	_, err := sr.file.Seek(offset, io.SeekStart)
	return err
}

func (sr *fileSegmentReader) Reader() io.Reader {
	return sr.file
}

func (sr *fileSegmentReader) Close() error {
	return sr.file.Close()
}
